package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

func glyphs(s string, x, y, size float64) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	advance := size * 0.6
	for i, r := range s {
		out = append(out, pdf.Text{
			Font:     "Courier",
			FontSize: size,
			X:        x + float64(i)*advance,
			Y:        y,
			W:        advance,
			S:        string(r),
		})
	}
	return out
}

func runTexts(runs []pid.TextRun) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.Str
	}
	return out
}

func TestGroupGlyphs(t *testing.T) {
	tests := []struct {
		name   string
		glyphs []pdf.Text
		want   []string
	}{
		{
			name:   "single word",
			glyphs: glyphs("PT", 100, 215, 10),
			want:   []string{"PT"},
		},
		{
			name:   "separate lines",
			glyphs: append(glyphs("PT", 100, 215, 10), glyphs("1001", 97, 198, 10)...),
			want:   []string{"PT", "1001"},
		},
		{
			name:   "embedded space glyph",
			glyphs: glyphs("NOTE 5", 300, 100, 10),
			want:   []string{"NOTE 5"},
		},
		{
			name:   "small gap becomes a space",
			glyphs: append(glyphs("HOLD", 0, 0, 10), glyphs("2", 28, 0, 10)...),
			want:   []string{"HOLD 2"},
		},
		{
			name:   "wide gap splits runs",
			glyphs: append(glyphs("V-100", 0, 0, 10), glyphs("P-200", 200, 0, 10)...),
			want:   []string{"V-100", "P-200"},
		},
		{
			name:   "font size change splits runs",
			glyphs: append(glyphs("AB", 0, 0, 10), glyphs("CD", 12, 0, 14)...),
			want:   []string{"AB", "CD"},
		},
		{
			name:   "blank runs dropped",
			glyphs: glyphs("   ", 0, 0, 10),
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runTexts(GroupGlyphs(tt.glyphs)))
		})
	}
}

func TestGroupGlyphs_Geometry(t *testing.T) {
	runs := GroupGlyphs(glyphs("PT", 100, 215, 10))
	require.Len(t, runs, 1)

	assert.Equal(t, [6]float64{1, 0, 0, 1, 100, 215}, runs[0].Transform)
	assert.InDelta(t, 12.0, runs[0].Width, 1e-9)
	assert.Equal(t, 10.0, runs[0].Height)

	zero := GroupGlyphs([]pdf.Text{{S: "X", X: 5, Y: 5}})
	require.Len(t, zero, 1)
	assert.Equal(t, defaultGlyphHeight, zero[0].Height)
}

func TestTextLayer_PageText(t *testing.T) {
	dir := t.TempDir()
	path := instrumentSheet(t, dir)

	layer, err := OpenTextLayer(path, NewRunCache(8))
	require.NoError(t, err)
	defer layer.Close()

	assert.Equal(t, 2, layer.NumPage())

	runs, err := layer.PageText(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"PT", "1001", "AB-CD-2001", "NOTE 5"}, runTexts(runs))

	for _, r := range runs {
		if r.Str == "PT" {
			assert.InDelta(t, 100.0, r.Transform[4], 0.01)
			assert.InDelta(t, 215.0, r.Transform[5], 0.01)
			assert.InDelta(t, 10.0, r.Height, 0.01)
		}
	}

	runs, err = layer.PageText(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"CONTROL ROOM"}, runTexts(runs))

	_, err = layer.PageText(context.Background(), 3)
	assert.Error(t, err)
}

func TestTextLayer_Cancelled(t *testing.T) {
	path := instrumentSheet(t, t.TempDir())
	layer, err := OpenTextLayer(path, nil)
	require.NoError(t, err)
	defer layer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = layer.PageText(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextLayer_Closed(t *testing.T) {
	path := instrumentSheet(t, t.TempDir())
	layer, err := OpenTextLayer(path, nil)
	require.NoError(t, err)

	require.NoError(t, layer.Close())
	require.NoError(t, layer.Close())
	assert.Equal(t, 0, layer.NumPage())
	_, err = layer.PageText(context.Background(), 1)
	assert.Error(t, err)
}

func TestOpenTextLayer_NotPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	_, err := OpenTextLayer(path, nil)
	assert.Error(t, err)
}
