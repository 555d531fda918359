package pid

import (
	"encoding/json"
	"fmt"
)

// Document is the flat persisted form of a graph. A nil slice means the
// field was absent, which Load rejects; an empty slice is a valid empty pool.
type Document struct {
	Tags          []Tag          `json:"tags"`
	Relationships []Relationship `json:"relationships"`
	RawTextItems  []RawTextItem  `json:"rawTextItems"`
	Settings      *Settings      `json:"settings,omitempty"`
}

// ParseDocument decodes a project document. JSON null and missing arrays both
// decode to nil and are caught by Load.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, ValidationError("malformed project document: %v", err).WithContext("decode")
	}
	return doc, nil
}

// Marshal encodes the document as indented JSON
func (d Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode project document: %w", err)
	}
	return data, nil
}

// Snapshot returns a copy of the full graph state, settings included
func (g *Graph) Snapshot() Document {
	g.mu.Lock()
	defer g.mu.Unlock()

	tags := make([]Tag, len(g.tags))
	for i, t := range g.tags {
		tags[i] = cloneTag(t)
	}
	rels := make([]Relationship, len(g.rels))
	copy(rels, g.rels)
	raw := make([]RawTextItem, len(g.raw))
	copy(raw, g.raw)
	settings := g.settings.Clone()

	return Document{
		Tags:          tags,
		Relationships: rels,
		RawTextItems:  raw,
		Settings:      &settings,
	}
}

// Load replaces the graph state with doc. The document is validated in full
// before anything changes; on error the graph is untouched. Settings are kept
// when the document carries none.
func (g *Graph) Load(doc Document) error {
	if err := ValidateDocument(doc); err != nil {
		return err
	}

	tags := make([]Tag, len(doc.Tags))
	for i, t := range doc.Tags {
		tags[i] = cloneTag(t)
	}
	raw := cloneItems(doc.RawTextItems)
	rels := make([]Relationship, len(doc.Relationships))
	copy(rels, doc.Relationships)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.tags = tags
	g.raw = raw
	g.rels = rels
	if doc.Settings != nil {
		g.settings = doc.Settings.Clone()
	}
	return nil
}

// ValidateDocument checks the structural rules Load enforces: all three
// arrays present, unique ids with each id in exactly one pool (tag source
// items count as a pool of their own), source items on their tag's page,
// valid categories and relationship kinds, and no dangling relationships.
func ValidateDocument(doc Document) error {
	switch {
	case doc.Tags == nil:
		return ValidationError("project document is missing the tags array")
	case doc.Relationships == nil:
		return ValidationError("project document is missing the relationships array")
	case doc.RawTextItems == nil:
		return ValidationError("project document is missing the rawTextItems array")
	}

	seen := make(map[string]string, len(doc.Tags)+len(doc.RawTextItems))
	claim := func(id, pool string) error {
		if id == "" {
			return ValidationError("%s entry without an id", pool)
		}
		if prev, ok := seen[id]; ok {
			return ValidationError("id %s appears in %s and %s", id, prev, pool)
		}
		seen[id] = pool
		return nil
	}

	for _, t := range doc.Tags {
		if err := claim(t.ID, "tags"); err != nil {
			return err
		}
		if !t.Category.Valid() {
			return ValidationError("tag %s has unknown category %q", t.ID, t.Category)
		}
		if t.Page < 1 {
			return ValidationError("tag %s has invalid page %d", t.ID, t.Page)
		}
	}
	for _, it := range doc.RawTextItems {
		if err := claim(it.ID, "rawTextItems"); err != nil {
			return err
		}
		if it.Page < 1 {
			return ValidationError("raw text item %s has invalid page %d", it.ID, it.Page)
		}
	}
	for _, t := range doc.Tags {
		for _, it := range t.SourceItems {
			if err := claim(it.ID, "sourceItems of tag "+t.ID); err != nil {
				return err
			}
			if it.Page != t.Page {
				return ValidationError("source item %s of tag %s is on page %d, the tag is on page %d",
					it.ID, t.ID, it.Page, t.Page)
			}
			if !it.BBox.Valid() {
				return ValidationError("source item %s of tag %s has an invalid bounding box", it.ID, t.ID)
			}
		}
	}
	for _, r := range doc.Relationships {
		if err := claim(r.ID, "relationships"); err != nil {
			return err
		}
		if !r.Type.Valid() {
			return ValidationError("relationship %s has unknown type %q", r.ID, r.Type)
		}
	}
	if doc.Settings != nil {
		if err := doc.Settings.Validate(); err != nil {
			return err
		}
	}

	if err := checkConsistency(doc.Tags, doc.RawTextItems, doc.Relationships); err != nil {
		return ValidationError("project document has dangling relationships: %v", err)
	}
	return nil
}
