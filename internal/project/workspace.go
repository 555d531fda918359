// Package project holds the documents open in a session and persists their
// tag graphs to SQLite or to JSON project files.
package project

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/a3tai/mcp-pid-tagger/internal/pdf"
	"github.com/a3tai/mcp-pid-tagger/internal/pid"
	"github.com/a3tai/mcp-pid-tagger/internal/pipeline"
)

// Source is an opened drawing's text layer
type Source interface {
	pipeline.TextProvider
	Close() error
}

// OpenFunc opens the drawing at path
type OpenFunc func(path string) (Source, pdf.DocumentInfo, error)

// ServiceOpener adapts a drawing service to OpenFunc
func ServiceOpener(svc *pdf.Service) OpenFunc {
	return func(path string) (Source, pdf.DocumentInfo, error) {
		layer, info, err := svc.Open(path)
		if err != nil {
			return nil, pdf.DocumentInfo{}, err
		}
		return layer, info, nil
	}
}

// Document is one drawing open in the workspace. Graph is safe for
// concurrent use; the other fields are fixed once the document is added.
type Document struct {
	ID       string           `json:"id"`
	Source   string           `json:"source"`
	Info     pdf.DocumentInfo `json:"info"`
	Graph    *pid.Graph       `json:"-"`
	Warnings []*pid.Error     `json:"warnings,omitempty"`
	Partial  bool             `json:"partial,omitempty"` // extraction was cancelled before the last page
	OpenedAt time.Time        `json:"openedAt"`
}

// Summary is a short description of an open document
type Summary struct {
	ID            string               `json:"id"`
	Source        string               `json:"source"`
	PageCount     int                  `json:"pageCount"`
	Tags          int                  `json:"tags"`
	RawTextItems  int                  `json:"rawTextItems"`
	Relationships int                  `json:"relationships"`
	ByCategory    map[pid.Category]int `json:"byCategory"`
	Partial       bool                 `json:"partial,omitempty"`
	OpenedAt      time.Time            `json:"openedAt"`
}

// Summary counts the document's current graph
func (d *Document) Summary() Summary {
	view := d.Graph.View()
	snap := d.Graph.Snapshot()
	return Summary{
		ID:            d.ID,
		Source:        d.Source,
		PageCount:     d.Info.PageCount,
		Tags:          len(snap.Tags),
		RawTextItems:  len(snap.RawTextItems),
		Relationships: len(snap.Relationships),
		ByCategory:    view.Counts(),
		Partial:       d.Partial,
		OpenedAt:      d.OpenedAt,
	}
}

// Workspace owns the documents of one session
type Workspace struct {
	mu        sync.RWMutex
	docs      map[string]*Document
	open      OpenFunc
	extractor *pipeline.Extractor
	settings  pid.Settings
	newID     pid.IDFunc
	logger    *log.Logger
}

// Option configures a Workspace
type Option func(*Workspace)

// WithSettings sets the settings used when an extraction names none
func WithSettings(s pid.Settings) Option {
	return func(w *Workspace) {
		w.settings = s.Clone()
	}
}

// WithIDFunc sets the generator for document and entity ids
func WithIDFunc(f pid.IDFunc) Option {
	return func(w *Workspace) {
		if f != nil {
			w.newID = f
		}
	}
}

// WithLogger sets the workspace logger
func WithLogger(l *log.Logger) Option {
	return func(w *Workspace) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorkspace creates an empty workspace that opens drawings with open
func NewWorkspace(open OpenFunc, opts ...Option) *Workspace {
	w := &Workspace{
		docs:     make(map[string]*Document),
		open:     open,
		settings: pid.DefaultSettings(),
		newID:    pid.NewID,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.extractor = pipeline.New(pipeline.WithLogger(w.logger), pipeline.WithIDFunc(w.newID))
	return w
}

// Settings returns the workspace default settings
func (w *Workspace) Settings() pid.Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings.Clone()
}

// Extract opens the drawing at path, runs the extraction pipeline over every
// page and adds the result as a new document. settings overrides the
// workspace defaults when non-nil. The drawing is closed before returning.
//
// When ctx is cancelled after at least one page finished, the finished pages
// are still added as a partial document, which is returned together with the
// context error.
func (w *Workspace) Extract(ctx context.Context, path string, settings *pid.Settings, onProgress pipeline.ProgressFunc) (*Document, *pipeline.Result, error) {
	s := w.Settings()
	if settings != nil {
		if err := settings.Validate(); err != nil {
			return nil, nil, err
		}
		s = settings.Clone()
	}

	src, info, err := w.open(path)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	result, err := w.extractor.ProcessDocument(ctx, info.PageCount, src, s, onProgress)
	if err != nil && (result == nil || result.PagesDone == 0) {
		return nil, result, err
	}

	graph := pid.NewGraph(pid.WithIDFunc(w.newID), pid.WithSettings(s))
	graph.AddPageResults(result.PageResults()...)

	doc := &Document{
		ID:       w.newID(),
		Source:   info.Path,
		Info:     info,
		Graph:    graph,
		Warnings: result.Warnings,
		Partial:  err != nil,
		OpenedAt: time.Now(),
	}
	w.add(doc)
	w.logger.Info("document extracted", "id", doc.ID, "path", info.Path, "partial", doc.Partial,
		"pages", result.PagesDone, "tags", len(result.Tags), "raw", len(result.RawTextItems))
	return doc, result, err
}

// Import adds a previously saved project document to the workspace
func (w *Workspace) Import(doc pid.Document, source string) (*Document, error) {
	graph := pid.NewGraph(pid.WithIDFunc(w.newID), pid.WithSettings(w.Settings()))
	if err := graph.Load(doc); err != nil {
		return nil, err
	}
	d := &Document{
		ID:       w.newID(),
		Source:   source,
		Graph:    graph,
		OpenedAt: time.Now(),
	}
	w.add(d)
	w.logger.Info("project imported", "id", d.ID, "source", source, "tags", len(doc.Tags))
	return d, nil
}

// Get returns the open document with id
func (w *Workspace) Get(id string) (*Document, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.docs[id]
	if !ok {
		return nil, pid.ValidationError("no open document %q", id)
	}
	return d, nil
}

// Close drops the document with id from the workspace
func (w *Workspace) Close(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[id]; !ok {
		return pid.ValidationError("no open document %q", id)
	}
	delete(w.docs, id)
	w.logger.Debug("document closed", "id", id)
	return nil
}

// List summarizes the open documents, oldest first
func (w *Workspace) List() []Summary {
	w.mu.RLock()
	docs := make([]*Document, 0, len(w.docs))
	for _, d := range w.docs {
		docs = append(docs, d)
	}
	w.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].OpenedAt.Equal(docs[j].OpenedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].OpenedAt.Before(docs[j].OpenedAt)
	})
	out := make([]Summary, len(docs))
	for i, d := range docs {
		out[i] = d.Summary()
	}
	return out
}

// Len returns the number of open documents
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.docs)
}

func (w *Workspace) add(d *Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs[d.ID] = d
}
