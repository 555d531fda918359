package pdf

import (
	"context"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// Glyph grouping thresholds, as fractions of the font size.
const (
	baselineSlack = 0.3
	wordGap       = 0.25
	runGap        = 1.0
	backtrack     = 0.5
)

// defaultGlyphHeight is used when a glyph reports no font size.
const defaultGlyphHeight = 10.0

// TextLayer serves the text runs of one opened drawing. The underlying
// reader is not safe for concurrent use, so page reads are serialized.
type TextLayer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	reader *pdf.Reader
	cache  *RunCache
	closed bool
}

// OpenTextLayer opens path for text extraction. cache may be nil.
func OpenTextLayer(path string, cache *RunCache) (*TextLayer, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open PDF %s", path)
	}
	return &TextLayer{path: path, file: f, reader: r, cache: cache}, nil
}

// Path returns the file the layer was opened from
func (l *TextLayer) Path() string {
	return l.path
}

// NumPage returns the page count as seen by the text reader
func (l *TextLayer) NumPage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0
	}
	return l.reader.NumPage()
}

// PageText returns the text runs of a page, grouped from individual glyphs
func (l *TextLayer) PageText(ctx context.Context, page int) ([]pid.TextRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.cache == nil {
		return l.readPage(page)
	}
	return l.cache.Load(l.path, page, func() ([]pid.TextRun, error) {
		return l.readPage(page)
	})
}

// Close releases the file handle
func (l *TextLayer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

func (l *TextLayer) readPage(num int) (runs []pid.TextRun, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.New("text layer is closed")
	}
	if num < 1 || num > l.reader.NumPage() {
		return nil, errors.Errorf("page %d out of range (document has %d pages)", num, l.reader.NumPage())
	}

	// The reader panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			runs = nil
			err = errors.Errorf("malformed content on page %d: %v", num, r)
		}
	}()

	page := l.reader.Page(num)
	if page.V.IsNull() {
		return []pid.TextRun{}, nil
	}
	return GroupGlyphs(page.Content().Text), nil
}

type runBuilder struct {
	text strings.Builder
	x, y float64
	end  float64
	size float64
}

func (b *runBuilder) em() float64 {
	if b.size <= 0 {
		return defaultGlyphHeight
	}
	return b.size
}

func (b *runBuilder) accepts(g pdf.Text) bool {
	if math.Abs(g.FontSize-b.size) > 0.5 {
		return false
	}
	size := b.em()
	if math.Abs(g.Y-b.y) > baselineSlack*size {
		return false
	}
	gap := g.X - b.end
	return gap >= -backtrack*size && gap <= runGap*size
}

func (b *runBuilder) add(g pdf.Text) {
	gap := g.X - b.end
	cur := b.text.String()
	if gap > wordGap*b.em() && !strings.HasSuffix(cur, " ") && g.S != " " {
		b.text.WriteByte(' ')
	}
	b.text.WriteString(g.S)
	b.end = math.Max(b.end, g.X+g.W)
}

func (b *runBuilder) run() pid.TextRun {
	return pid.TextRun{
		Str:       b.text.String(),
		Transform: [6]float64{1, 0, 0, 1, b.x, b.y},
		Width:     b.end - b.x,
		Height:    b.em(),
	}
}

// GroupGlyphs joins per-glyph text into runs. Consecutive glyphs of the same
// size on the same baseline with less than one em of gap form one run; a gap
// wider than a quarter em becomes a space. Runs that are blank are dropped.
func GroupGlyphs(glyphs []pdf.Text) []pid.TextRun {
	runs := []pid.TextRun{}
	var cur *runBuilder

	flush := func() {
		if cur == nil {
			return
		}
		r := cur.run()
		if strings.TrimSpace(r.Str) != "" {
			runs = append(runs, r)
		}
		cur = nil
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if cur != nil && cur.accepts(g) {
			cur.add(g)
			continue
		}
		flush()
		cur = &runBuilder{x: g.X, y: g.Y, end: g.X + g.W, size: g.FontSize}
		cur.text.WriteString(g.S)
	}
	flush()
	return runs
}
