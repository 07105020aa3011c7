package server

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	notebook "github.com/pedrocostadev/ai-notebook-sub000"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/scheduler"
)

type metadataView struct {
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type conceptRefView struct {
	ConceptId  core.ID `json:"conceptId"`
	Importance int     `json:"importance"`
}

type DocumentReply struct {
	Id         core.ID          `json:"id"`
	Title      string           `json:"title"`
	SourcePath string           `json:"sourcePath"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	PageCount  int              `json:"pageCount"`
	Metadata   metadataView     `json:"metadata"`
	Concepts   []conceptRefView `json:"concepts,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func (DocumentReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newDocumentReply(d *core.Document) DocumentReply {
	reply := DocumentReply{
		Id:         d.Id,
		Title:      d.Title,
		SourcePath: d.SourcePath,
		Status:     d.Status.String(),
		Error:      d.Error,
		PageCount:  d.PageCount,
		Metadata: metadataView{
			Title:    d.Metadata.Title,
			Author:   d.Metadata.Author,
			Summary:  d.Metadata.Summary,
			Keywords: d.Metadata.Keywords,
		},
		Concepts:  conceptRefs(d.Concepts),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	return reply
}

type ChapterReply struct {
	Id        core.ID          `json:"id"`
	Index     int              `json:"index"`
	Title     string           `json:"title"`
	PageStart int              `json:"pageStart"`
	PageEnd   int              `json:"pageEnd"`
	Status    string           `json:"status"`
	Error     string           `json:"error,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Concepts  []conceptRefView `json:"concepts,omitempty"`
}

func (ChapterReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newChapterReply(c *core.Chapter) ChapterReply {
	return ChapterReply{
		Id:        c.Id,
		Index:     c.Index,
		Title:     c.Title,
		PageStart: c.PageStart,
		PageEnd:   c.PageEnd,
		Status:    c.Status.String(),
		Error:     c.Error,
		Summary:   c.Summary,
		Concepts:  conceptRefs(c.Concepts),
	}
}

type JobReply struct {
	Id        core.ID   `json:"id"`
	ChapterId core.ID   `json:"chapterId,omitempty"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (JobReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newJobReply(j *core.Job) JobReply {
	return JobReply{
		Id:        j.Id,
		ChapterId: j.ChapterId,
		Type:      j.Type.String(),
		Status:    j.Status.String(),
		Attempts:  j.Attempts,
		LastError: j.LastError,
		UpdatedAt: j.UpdatedAt,
	}
}

type MessageReply struct {
	Id        core.ID   `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (MessageReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type SourceReply struct {
	ChunkId   core.ID `json:"chunkId"`
	Heading   string  `json:"heading,omitempty"`
	PageStart int     `json:"pageStart"`
	PageEnd   int     `json:"pageEnd"`
	Score     float64 `json:"score"`
}

type AnswerReply struct {
	Text      string        `json:"text"`
	Sources   []SourceReply `json:"sources"`
	NoContext bool          `json:"noContext,omitempty"`
	Refused   bool          `json:"refused,omitempty"`
}

func (AnswerReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func newAnswerReply(a *notebook.Answer) AnswerReply {
	reply := AnswerReply{
		Text:      a.Text,
		Sources:   make([]SourceReply, len(a.Sources)),
		NoContext: a.NoContext,
		Refused:   a.Refused,
	}
	for i, source := range a.Sources {
		reply.Sources[i] = SourceReply{
			ChunkId:   source.Id,
			Heading:   source.Heading,
			PageStart: source.PageStart,
			PageEnd:   source.PageEnd,
			Score:     source.Score,
		}
	}
	return reply
}

type ProgressReply struct {
	DocumentId core.ID `json:"documentId"`
	ChapterId  core.ID `json:"chapterId,omitempty"`
	Stage      string  `json:"stage"`
	Percent    int     `json:"percent"`
}

func newProgressReply(p scheduler.Progress) ProgressReply {
	return ProgressReply{
		DocumentId: p.DocumentId,
		ChapterId:  p.ChapterId,
		Stage:      p.Stage,
		Percent:    p.Percent,
	}
}

// ErrorReply is the body of every failed request.
type ErrorReply struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"error"`
}

func (e ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func conceptRefs(refs []core.ConceptRef) []conceptRefView {
	if len(refs) == 0 {
		return nil
	}
	out := make([]conceptRefView, len(refs))
	for i, ref := range refs {
		out[i] = conceptRefView{ConceptId: ref.ConceptId, Importance: ref.Importance}
	}
	return out
}

func renderList[T render.Renderer](items []T) []render.Renderer {
	list := make([]render.Renderer, len(items))
	for i, item := range items {
		list[i] = item
	}
	return list
}
