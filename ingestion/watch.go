package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

const DefaultSettleDelay = 500 * time.Millisecond

// DocumentIngester is the part of Ingester a Watcher needs.
type DocumentIngester interface {
	Supports(path string) bool
	Ingest(ctx context.Context, path string) (*core.Document, error)
}

// WatchResult reports the outcome of ingesting one watched file.
type WatchResult struct {
	Path     string
	Document *core.Document
	Err      error
}

// Watcher ingests supported files that appear in a directory. Each path is
// ingested at most once per Watcher, after its writes have settled.
type Watcher struct {
	dir      string
	ingester DocumentIngester
	settle   time.Duration
	results  chan WatchResult
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
	seen    map[string]bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher) error

// WithSettleDelay sets how long a file must go without writes before it is
// ingested. Default is 500ms.
func WithSettleDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) error {
		if d <= 0 {
			return fmt.Errorf("settle delay must be positive, got %s", d)
		}
		w.settle = d
		return nil
	}
}

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, ingester DocumentIngester, opts ...WatcherOption) (*Watcher, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	w := &Watcher{
		dir:      dir,
		ingester: ingester,
		settle:   DefaultSettleDelay,
		results:  make(chan WatchResult, 16),
		logger:   slog.Default(),
		pending:  make(map[string]time.Time),
		seen:     make(map[string]bool),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "watcher", "dir", dir)
	return w, nil
}

// Results delivers one result per ingested file. It is closed when Run returns.
// Results are dropped when nobody reads them.
func (w *Watcher) Results() <-chan WatchResult {
	return w.results
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.results)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching for documents")

	ticker := time.NewTicker(max(w.settle/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				w.ingest(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") || !w.ingester.Supports(event.Name) {
		return
	}
	if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[event.Name] {
		return
	}
	w.pending[event.Name] = time.Now()
}

// settled removes and returns the pending paths that have been quiet for
// the settle delay.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var paths []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			delete(w.pending, path)
			w.seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	document, err := w.ingester.Ingest(ctx, path)
	if err != nil {
		w.logger.Error("failed to ingest watched file", "path", path, "err", err)
	} else {
		w.logger.Info("ingested watched file", "path", path, "documentId", document.Id)
	}

	select {
	case w.results <- WatchResult{Path: path, Document: document, Err: err}:
	default:
	}
}
