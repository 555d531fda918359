package project

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pid-tagger/internal/pdf"
	"github.com/a3tai/mcp-pid-tagger/internal/pid"
	"github.com/a3tai/mcp-pid-tagger/internal/pipeline"
)

func textRun(text string, x, y, w float64) pid.TextRun {
	return pid.TextRun{Str: text, Transform: [6]float64{1, 0, 0, 1, x, y}, Width: w, Height: 10}
}

// fakeSource serves fixed runs per page and remembers whether it was closed.
type fakeSource struct {
	pages    map[int][]pid.TextRun
	failPage int
	closed   bool
}

func (f *fakeSource) PageText(_ context.Context, page int) ([]pid.TextRun, error) {
	if page == f.failPage {
		return nil, errors.New("corrupt content stream")
	}
	return f.pages[page], nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func sheetSource() *fakeSource {
	return &fakeSource{pages: map[int][]pid.TextRun{
		1: {
			textRun("PT", 100, 215, 14),
			textRun("1001", 97, 198, 20),
			textRun("AB-CD-2001", 300, 400, 60),
			textRun("NOTE 5", 300, 100, 40),
			textRun("SUCTION", 100, 240, 40),
		},
		2: {textRun("CONTROL ROOM", 10, 10, 70)},
	}}
}

func testSettings() pid.Settings {
	return pid.Settings{
		Patterns: map[pid.Category]pid.PatternSpec{
			pid.CategoryEquipment:     pid.PlainPattern(`[A-Z]{2}-[A-Z]{2}-\d{4}`),
			pid.CategoryNotesAndHolds: pid.PlainPattern(`(?:NOTE|HOLD)\s+\d+`),
		},
		Tolerances: map[pid.Category]pid.Tolerance{
			pid.CategoryInstrument: {Horizontal: 10, Vertical: 10, AutoLinkDistance: 50},
		},
	}
}

func openerFor(src *fakeSource) OpenFunc {
	return func(path string) (Source, pdf.DocumentInfo, error) {
		if path == "missing.pdf" {
			return nil, pdf.DocumentInfo{}, errors.New("file does not exist")
		}
		return src, pdf.DocumentInfo{Path: "/drawings/" + path, PageCount: len(src.pages)}, nil
	}
}

func newTestWorkspace(src *fakeSource) *Workspace {
	return NewWorkspace(openerFor(src),
		WithSettings(testSettings()),
		WithIDFunc(pid.SequentialIDs("id")),
		WithLogger(log.New(io.Discard)),
	)
}

func tagTexts(tags []pid.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Text
	}
	return out
}

func TestWorkspace_Extract(t *testing.T) {
	src := sheetSource()
	ws := newTestWorkspace(src)

	doc, result, err := ws.Extract(context.Background(), "sheet.pdf", nil, nil)
	require.NoError(t, err)

	assert.True(t, src.closed)
	assert.Equal(t, "/drawings/sheet.pdf", doc.Source)
	assert.Equal(t, 2, result.PagesDone)
	assert.Equal(t, []string{"PT-1001", "AB-CD-2001", "NOTE 5"}, tagTexts(doc.Graph.Tags()))
	assert.Len(t, doc.Graph.RawTextItems(), 2)
	assert.Equal(t, testSettings().Patterns, doc.Graph.Settings().Patterns)

	got, err := ws.Get(doc.ID)
	require.NoError(t, err)
	assert.Same(t, doc, got)
	assert.Equal(t, 1, ws.Len())

	// The graph is live: auto-link attaches SUCTION to the instrument.
	assert.Equal(t, 1, got.Graph.AutoLinkDescriptions(50))
	assert.NoError(t, got.Graph.CheckConsistency())
}

func TestWorkspace_ExtractSettingsOverride(t *testing.T) {
	ws := newTestWorkspace(sheetSource())
	override := pid.Settings{
		Patterns:   map[pid.Category]pid.PatternSpec{pid.CategoryNotesAndHolds: pid.PlainPattern(`NOTE\s+\d+`)},
		Tolerances: map[pid.Category]pid.Tolerance{},
	}

	doc, _, err := ws.Extract(context.Background(), "sheet.pdf", &override, nil)
	require.NoError(t, err)
	assert.Contains(t, tagTexts(doc.Graph.Tags()), "NOTE 5")
	assert.NotContains(t, tagTexts(doc.Graph.Tags()), "AB-CD-2001")

	bad := pid.Settings{Patterns: map[pid.Category]pid.PatternSpec{"Valve": pid.PlainPattern(`V`)}}
	_, _, err = ws.Extract(context.Background(), "sheet.pdf", &bad, nil)
	assert.True(t, pid.IsValidation(err))
	assert.Equal(t, 1, ws.Len())
}

func TestWorkspace_ExtractFailures(t *testing.T) {
	src := sheetSource()
	src.failPage = 2
	ws := newTestWorkspace(src)

	_, _, err := ws.Extract(context.Background(), "sheet.pdf", nil, nil)
	require.Error(t, err)
	assert.True(t, pid.IsExternalIO(err))
	assert.True(t, src.closed)
	assert.Equal(t, 0, ws.Len())

	_, _, err = ws.Extract(context.Background(), "missing.pdf", nil, nil)
	assert.ErrorContains(t, err, "does not exist")
}

func TestWorkspace_ExtractCancelled(t *testing.T) {
	ws := newTestWorkspace(sheetSource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, result, err := ws.Extract(ctx, "sheet.pdf", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, doc)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.PagesDone)
	assert.Equal(t, 0, ws.Len())
}

func TestWorkspace_ExtractCancelledKeepsFinishedPages(t *testing.T) {
	ws := newTestWorkspace(sheetSource())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc, result, err := ws.Extract(ctx, "sheet.pdf", nil, func(p pipeline.Progress) {
		if p.Current == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.PagesDone)

	require.NotNil(t, doc)
	assert.True(t, doc.Partial)
	assert.Equal(t, 1, ws.Len())

	got, err := ws.Get(doc.ID)
	require.NoError(t, err)
	summary := got.Summary()
	assert.True(t, summary.Partial)
	assert.Equal(t, 3, summary.Tags)
	for _, it := range got.Graph.RawTextItems() {
		assert.Equal(t, 1, it.Page, "page 2 was never extracted")
	}
}

func TestWorkspace_ImportAndClose(t *testing.T) {
	ws := newTestWorkspace(sheetSource())
	doc, _, err := ws.Extract(context.Background(), "sheet.pdf", nil, nil)
	require.NoError(t, err)

	imported, err := ws.Import(doc.Graph.Snapshot(), "saved.json")
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, imported.ID)
	assert.Equal(t, doc.Graph.Snapshot(), imported.Graph.Snapshot())

	list := ws.List()
	require.Len(t, list, 2)
	assert.Equal(t, doc.ID, list[0].ID)
	assert.Equal(t, 3, list[0].Tags)
	assert.Equal(t, 1, list[0].ByCategory[pid.CategoryInstrument])

	require.NoError(t, ws.Close(doc.ID))
	assert.True(t, pid.IsValidation(ws.Close(doc.ID)))
	_, err = ws.Get(doc.ID)
	assert.True(t, pid.IsValidation(err))
	assert.Equal(t, 1, ws.Len())
}

func TestWorkspace_ImportRejectsBrokenDocument(t *testing.T) {
	ws := newTestWorkspace(sheetSource())
	broken := pid.Document{
		Tags:         []pid.Tag{},
		RawTextItems: []pid.RawTextItem{},
		Relationships: []pid.Relationship{
			{ID: "r1", From: "ghost", To: "nobody", Type: pid.RelationshipConnection},
		},
	}

	_, err := ws.Import(broken, "broken.json")
	assert.True(t, pid.IsValidation(err))
	assert.Equal(t, 0, ws.Len())
}
