// Package pdftest writes small, well-formed PDF drawings for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Text is one string drawn at (X, Y) in 10pt Courier.
type Text struct {
	Str  string
	X, Y float64
}

// Build returns a PDF with one page per entry of pages. Every glyph is 6
// units wide, so a run of n characters spans 6n.
func Build(pages [][]Text) []byte {
	var buf bytes.Buffer
	var offsets []int
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 pages, 3 font, then page/content pairs.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	widths := strings.TrimSpace(strings.Repeat("600 ", 95))

	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	object("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>")

	for i, texts := range pages {
		var content strings.Builder
		for _, t := range texts {
			fmt.Fprintf(&content, "BT /F1 10 Tf %g %g Td (%s) Tj ET\n", t.X, t.Y, t.Str)
		}
		object(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WriteDrawing writes Build(pages) to dir/name and returns the path
func WriteDrawing(t testing.TB, dir, name string, pages [][]Text) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create drawing directory: %v", err)
	}
	if err := os.WriteFile(path, Build(pages), 0o644); err != nil {
		t.Fatalf("failed to write drawing: %v", err)
	}
	return path
}

// InstrumentSheet is a two-page drawing: a stacked PT/1001 bubble with an
// equipment tag and a note on page 1, a line number on page 2.
func InstrumentSheet(t testing.TB, dir string) string {
	t.Helper()
	return WriteDrawing(t, dir, "sheet.pdf", [][]Text{
		{
			{"PT", 100, 215},
			{"1001", 97, 198},
			{"AB-CD-2001", 300, 400},
			{"NOTE 5", 300, 100},
		},
		{
			{"CONTROL ROOM", 50, 50},
		},
	})
}
