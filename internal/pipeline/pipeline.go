// Package pipeline drives the fragment merger across the pages of one
// document, pulling text runs from a provider one page at a time.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

const tracerName = "github.com/a3tai/mcp-pid-tagger/internal/pipeline"

// TextProvider returns the ordered text runs of one page
type TextProvider interface {
	PageText(ctx context.Context, page int) ([]pid.TextRun, error)
}

// ProviderFunc adapts a function to TextProvider
type ProviderFunc func(ctx context.Context, page int) ([]pid.TextRun, error)

// PageText implements TextProvider
func (f ProviderFunc) PageText(ctx context.Context, page int) ([]pid.TextRun, error) {
	return f(ctx, page)
}

// Progress is emitted after each processed page
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressFunc receives progress observations
type ProgressFunc func(Progress)

// PageOutcome is one element of the lazy page sequence
type PageOutcome struct {
	pid.PageResult
	Progress Progress
}

// Result is the aggregate of a document extraction
type Result struct {
	PageCount    int               `json:"pageCount"`
	PagesDone    int               `json:"pagesDone"`
	Tags         []pid.Tag         `json:"tags"`
	RawTextItems []pid.RawTextItem `json:"rawTextItems"`
	Warnings     []*pid.Error      `json:"warnings,omitempty"`
	Duration     time.Duration     `json:"duration"`

	pageResults []pid.PageResult
}

// PageResults returns the per-page results in page order
func (r *Result) PageResults() []pid.PageResult {
	return r.pageResults
}

// Extractor runs extraction over documents. It holds no per-document state
// and may be shared.
type Extractor struct {
	logger *log.Logger
	tracer trace.Tracer
	ids    pid.IDFunc
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger; nil keeps log.Default()
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDFunc sets the id source handed to the merger
func WithIDFunc(f pid.IDFunc) Option {
	return func(e *Extractor) {
		if f != nil {
			e.ids = f
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(e *Extractor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger: log.Default(),
		tracer: otel.Tracer(tracerName),
		ids:    pid.NewID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pages returns a lazy sequence over pages 1..pageCount. Each step fetches
// one page from the provider and runs the merger on it. The sequence stops
// after the first error; ranging over it again starts from page 1.
func (e *Extractor) Pages(ctx context.Context, pageCount int, provider TextProvider, settings pid.Settings) iter.Seq2[PageOutcome, error] {
	return func(yield func(PageOutcome, error) bool) {
		if pageCount < 0 {
			yield(PageOutcome{}, pid.ValidationError("page count must not be negative, got %d", pageCount))
			return
		}
		if provider == nil {
			yield(PageOutcome{}, pid.ValidationError("a text provider is required"))
			return
		}

		matcher := pid.NewMatcher(settings.Patterns)
		for _, w := range matcher.Warnings() {
			e.logger.Warn("category pattern disabled", "category", w.Category, "pattern", w.Context, "err", w.Err)
		}
		tolerance := settings.Tolerance(pid.CategoryInstrument)

		for page := 1; page <= pageCount; page++ {
			if err := ctx.Err(); err != nil {
				yield(PageOutcome{}, err)
				return
			}

			result, err := e.processPage(ctx, page, provider, matcher, tolerance)
			if err != nil {
				yield(PageOutcome{}, err)
				return
			}

			outcome := PageOutcome{
				PageResult: result,
				Progress:   Progress{Current: page, Total: pageCount},
			}
			if !yield(outcome, nil) {
				return
			}
		}
	}
}

func (e *Extractor) processPage(ctx context.Context, page int, provider TextProvider, matcher *pid.Matcher, tolerance pid.Tolerance) (pid.PageResult, error) {
	ctx, span := e.tracer.Start(ctx, "pid.extract.page", trace.WithAttributes(attribute.Int("pid.page", page)))
	defer span.End()

	runs, err := provider.PageText(ctx, page)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return pid.PageResult{}, ctxErr
		}
		wrapped := errors.Wrapf(err, "text layer for page %d", page)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, "text layer unavailable")
		return pid.PageResult{}, pid.ExternalIOError(page, wrapped)
	}

	result, err := pid.ExtractPageTags(page, runs, matcher, tolerance, e.ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		return pid.PageResult{}, errors.WithMessagef(err, "page %d", page)
	}

	span.SetAttributes(
		attribute.Int("pid.runs", len(runs)),
		attribute.Int("pid.tags", len(result.Tags)),
		attribute.Int("pid.raw_items", len(result.RawTextItems)),
	)
	e.logger.Debug("page extracted", "page", page, "runs", len(runs), "tags", len(result.Tags), "raw", len(result.RawTextItems))
	return result, nil
}

// ProcessDocument extracts every page and aggregates the results in page
// order, calling onProgress after each page.
//
// A provider failure aborts the run and returns only the error: results of
// earlier pages are discarded. Cancellation of ctx is different: the pages
// finished so far are returned together with the context error.
func (e *Extractor) ProcessDocument(ctx context.Context, pageCount int, provider TextProvider, settings pid.Settings, onProgress ProgressFunc) (*Result, error) {
	start := time.Now()
	result := &Result{
		PageCount:    pageCount,
		Tags:         []pid.Tag{},
		RawTextItems: []pid.RawTextItem{},
	}
	var warnings pid.WarningCollection

	for outcome, err := range e.Pages(ctx, pageCount, provider, settings) {
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				result.Warnings = warnings.Warnings
				result.Duration = time.Since(start)
				e.logger.Warn("extraction cancelled", "pages_done", result.PagesDone, "total", pageCount)
				return result, err
			}
			e.logger.Error("extraction aborted", "err", err)
			return nil, err
		}

		result.pageResults = append(result.pageResults, outcome.PageResult)
		result.Tags = append(result.Tags, outcome.Tags...)
		result.RawTextItems = append(result.RawTextItems, outcome.RawTextItems...)
		result.PagesDone = outcome.Progress.Current
		warnings.Merge(outcome.Warnings)

		if onProgress != nil {
			onProgress(outcome.Progress)
		}
	}

	result.Warnings = warnings.Warnings
	result.Duration = time.Since(start)
	e.logger.Info("extraction complete",
		"pages", pageCount,
		"tags", len(result.Tags),
		"raw", len(result.RawTextItems),
		"warnings", len(result.Warnings),
		"duration", result.Duration)
	return result, nil
}
