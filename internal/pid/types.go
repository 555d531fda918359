// Package pid holds the tag extraction engine for piping and instrumentation
// diagrams: bounding-box geometry, category pattern matching, the two-pass
// fragment merger and the tag graph with its mutation rules.
package pid

// Category classifies a tag. The set is closed.
type Category string

const (
	CategoryEquipment     Category = "Equipment"
	CategoryLine          Category = "Line"
	CategoryInstrument    Category = "Instrument"
	CategoryDrawingNumber Category = "DrawingNumber"
	CategoryNotesAndHolds Category = "NotesAndHolds"
	CategoryUncategorized Category = "Uncategorized"
)

// Categories returns every category in the fixed iteration order used for
// matching, reporting and export.
func Categories() []Category {
	return []Category{
		CategoryEquipment,
		CategoryLine,
		CategoryInstrument,
		CategoryDrawingNumber,
		CategoryNotesAndHolds,
		CategoryUncategorized,
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// IsInstallationBase reports whether instruments may be installed on tags of this category
func (c Category) IsInstallationBase() bool {
	return c == CategoryEquipment || c == CategoryLine
}

// RelationshipKind is the type of a directed edge in the tag graph
type RelationshipKind string

const (
	// RelationshipConnection links two tags electrically or by process.
	RelationshipConnection RelationshipKind = "Connection"
	// RelationshipInstallation points from an instrument to the equipment or line it is mounted on.
	RelationshipInstallation RelationshipKind = "Installation"
	// RelationshipAnnotation points from a tag to a raw text item that describes it.
	RelationshipAnnotation RelationshipKind = "Annotation"
	// RelationshipNote points from an instrument or equipment tag to a notes/holds tag.
	RelationshipNote RelationshipKind = "Note"
)

// Valid reports whether k is one of the known relationship kinds
func (k RelationshipKind) Valid() bool {
	switch k {
	case RelationshipConnection, RelationshipInstallation, RelationshipAnnotation, RelationshipNote:
		return true
	}
	return false
}

// RawTextItem is an unclassified text run left on a page
type RawTextItem struct {
	ID   string      `json:"id"`
	Text string      `json:"text"`
	Page int         `json:"page"`
	BBox BoundingBox `json:"bbox"`
}

// Tag is a classified entity on a page. SourceItems is empty for manually
// drawn tags and for tags detected from a single run.
type Tag struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Page        int           `json:"page"`
	BBox        BoundingBox   `json:"bbox"`
	Category    Category      `json:"category"`
	SourceItems []RawTextItem `json:"sourceItems"`
}

// Relationship is a typed directed edge between two entity ids
type Relationship struct {
	ID   string           `json:"id"`
	From string           `json:"from"`
	To   string           `json:"to"`
	Type RelationshipKind `json:"type"`
}

// TextRun is a single run from a page's text layer. Transform is the
// [a b c d e f] text matrix; the run is anchored at (e, f).
type TextRun struct {
	Str       string     `json:"str"`
	Transform [6]float64 `json:"transform"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
}

// IDFunc returns a fresh unique identifier
type IDFunc func() string

func cloneItems(items []RawTextItem) []RawTextItem {
	if items == nil {
		return nil
	}
	out := make([]RawTextItem, len(items))
	copy(out, items)
	return out
}

// cloneTag copies a tag; SourceItems is never nil in the copy.
func cloneTag(t Tag) Tag {
	t.SourceItems = cloneItems(t.SourceItems)
	if t.SourceItems == nil {
		t.SourceItems = []RawTextItem{}
	}
	return t
}
