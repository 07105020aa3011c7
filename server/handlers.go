package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
	"github.com/pedrocostadev/ai-notebook-sub000/ingestion"
	"github.com/pedrocostadev/ai-notebook-sub000/retrieval"
	"github.com/pedrocostadev/ai-notebook-sub000/storage"
)

type ingestRequest struct {
	Path string `json:"path"`
}

type askRequest struct {
	Question  string  `json:"question"`
	ChapterId core.ID `json:"chapterId,omitempty"`
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := s.notebook.Documents(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	replies := make([]DocumentReply, len(documents))
	for i, d := range documents {
		replies[i] = newDocumentReply(d)
	}
	_ = render.RenderList(w, r, renderList(replies))
}

func (s *Server) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		_ = render.Render(w, r, ErrorReply{HTTPStatusCode: http.StatusBadRequest, Message: "must pass a path"})
		return
	}

	document, err := s.notebook.Ingest(r.Context(), req.Path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	_ = render.Render(w, r, newDocumentReply(document))
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	document, err := s.notebook.Document(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, newDocumentReply(document))
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	if err := s.notebook.DeleteDocument(r.Context(), id); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	if err := s.notebook.Cancel(r.Context(), id); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listChapters(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	chapters, err := s.notebook.Chapters(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	replies := make([]ChapterReply, len(chapters))
	for i, c := range chapters {
		replies[i] = newChapterReply(c)
	}
	_ = render.RenderList(w, r, renderList(replies))
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	jobs, err := s.notebook.Jobs(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	replies := make([]JobReply, len(jobs))
	for i, j := range jobs {
		replies[i] = newJobReply(j)
	}
	_ = render.RenderList(w, r, renderList(replies))
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	scope := core.DocumentScope(id)
	if chapter := r.URL.Query().Get("chapter"); chapter != "" {
		chapterID, err := strconv.ParseUint(chapter, 10, 64)
		if err != nil {
			_ = render.Render(w, r, ErrorReply{HTTPStatusCode: http.StatusBadRequest, Message: "invalid chapter id"})
			return
		}
		scope = core.ChapterScope(id, core.ID(chapterID))
	}

	messages, err := s.notebook.Messages(r.Context(), scope)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	replies := make([]MessageReply, len(messages))
	for i, m := range messages {
		replies[i] = MessageReply{Id: m.Id, Role: strings.ToLower(m.Role.String()), Content: m.Content, CreatedAt: m.CreatedAt}
	}
	_ = render.RenderList(w, r, renderList(replies))
}

// ask answers a question. With "Accept: text/event-stream" the answer is
// streamed as token events followed by a final answer event.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = render.Render(w, r, ErrorReply{HTTPStatusCode: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	scope := core.ChapterScope(id, req.ChapterId)

	if strings.Contains(r.Header.Get("Accept"), eventStreamType) {
		s.streamAnswer(w, r, scope, req.Question)
		return
	}

	answer, err := s.notebook.Ask(r.Context(), scope, req.Question, nil)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	_ = render.Render(w, r, newAnswerReply(answer))
}

func (s *Server) documentID(w http.ResponseWriter, r *http.Request) (core.ID, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil || id == 0 {
		_ = render.Render(w, r, ErrorReply{HTTPStatusCode: http.StatusBadRequest, Message: "invalid document id"})
		return 0, false
	}
	return core.ID(id), true
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	_ = render.Render(w, r, ErrorReply{HTTPStatusCode: status, Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, retrieval.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrUnsupportedFormat), errors.Is(err, ingestion.ErrInsufficientText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
