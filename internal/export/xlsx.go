// Package export writes a tag graph to a spreadsheet with one sheet per tag
// category.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// Sheet names, in workbook order
const (
	SheetEquipment  = "Equipment"
	SheetLine       = "Line"
	SheetInstrument = "Instrument"
	SheetNotes      = "Notes & Holds"
)

// listSeparator joins multi-valued cells
const listSeparator = ", "

type column struct {
	header string
	width  float64
	value  func(v *pid.View, t pid.Tag) string
}

type sheet struct {
	name     string
	category pid.Category
	columns  []column
}

var (
	tagColumn  = column{"Tag", 24, func(_ *pid.View, t pid.Tag) string { return t.Text }}
	pageColumn = column{"Page", 8, func(_ *pid.View, t pid.Tag) string { return strconv.Itoa(t.Page) }}
	descColumn = column{"Description", 40, func(v *pid.View, t pid.Tag) string {
		return strings.Join(v.DescriptionsFor(t.ID), listSeparator)
	}}
	connColumn = column{"Connected To", 30, func(v *pid.View, t pid.Tag) string {
		return joinTags(v.ConnectionsOf(t.ID))
	}}
	instColumn = column{"Instruments", 30, func(v *pid.View, t pid.Tag) string {
		return joinTags(v.InstrumentsOn(t.ID))
	}}
)

var sheets = []sheet{
	{SheetEquipment, pid.CategoryEquipment, []column{tagColumn, pageColumn, descColumn, instColumn, connColumn}},
	{SheetLine, pid.CategoryLine, []column{tagColumn, pageColumn, descColumn, instColumn, connColumn}},
	{SheetInstrument, pid.CategoryInstrument, []column{
		tagColumn, pageColumn, descColumn,
		{"Installed On", 30, func(v *pid.View, t pid.Tag) string { return joinTags(v.InstalledOn(t.ID)) }},
		connColumn,
	}},
	{SheetNotes, pid.CategoryNotesAndHolds, []column{
		tagColumn, pageColumn,
		{"Referenced By", 40, func(v *pid.View, t pid.Tag) string { return joinTags(v.ReferencedBy(t.ID)) }},
	}},
}

// Rows returns the cell values of one sheet, header first. It is the
// workbook content without any formatting.
func Rows(doc pid.Document, sheetName string) ([][]string, error) {
	v := pid.NewView(doc)
	for _, s := range sheets {
		if s.name == sheetName {
			return s.rows(v), nil
		}
	}
	return nil, fmt.Errorf("unknown sheet %q", sheetName)
}

func (s sheet) rows(v *pid.View) [][]string {
	header := make([]string, len(s.columns))
	for i, c := range s.columns {
		header[i] = c.header
	}
	out := [][]string{header}
	for _, t := range v.TagsByCategory(s.category) {
		row := make([]string, len(s.columns))
		for i, c := range s.columns {
			row[i] = c.value(v, t)
		}
		out = append(out, row)
	}
	return out
}

// Build lays out the workbook for doc. The caller closes the returned file.
func Build(doc pid.Document) (*excelize.File, error) {
	v := pid.NewView(doc)
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to name sheet %q: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %q: %w", s.name, err)
		}
		if err := writeSheet(f, s, v, headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s sheet, v *pid.View, headerStyle int) error {
	for r, row := range s.rows(v) {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for i, val := range row {
			values[i] = val
		}
		if err := f.SetSheetRow(s.name, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", s.name, r+1, err)
		}
	}

	for i, c := range s.columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, col, col, c.width); err != nil {
			return fmt.Errorf("failed to size %s column %s: %w", s.name, col, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(s.columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", s.name, err)
	}
	return f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Write encodes the workbook for doc to w
func Write(w io.Writer, doc pid.Document) error {
	f, err := Build(doc)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("failed to encode workbook: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// WriteFile saves the workbook for doc at path
func WriteFile(path string, doc pid.Document) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return pid.ValidationError("export path must end in .xlsx: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(out, doc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func joinTags(tags []pid.Tag) string {
	texts := make([]string, len(tags))
	for i, t := range tags {
		texts[i] = t.Text
	}
	return strings.Join(texts, listSeparator)
}
