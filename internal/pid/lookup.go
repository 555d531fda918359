package pid

// View is an immutable, indexed read model over one graph state. Exporters
// and reporting code use it to traverse relationships without holding the
// graph lock.
type View struct {
	tags     []Tag
	raw      []RawTextItem
	rels     []Relationship
	tagByID  map[string]int
	rawByID  map[string]int
	outgoing map[string][]Relationship
	incoming map[string][]Relationship
}

// NewView indexes a document. The document is not copied; callers pass
// snapshots they no longer mutate.
func NewView(doc Document) *View {
	v := &View{
		tags:     doc.Tags,
		raw:      doc.RawTextItems,
		rels:     doc.Relationships,
		tagByID:  make(map[string]int, len(doc.Tags)),
		rawByID:  make(map[string]int, len(doc.RawTextItems)),
		outgoing: make(map[string][]Relationship),
		incoming: make(map[string][]Relationship),
	}
	for i, t := range v.tags {
		v.tagByID[t.ID] = i
	}
	for i, it := range v.raw {
		v.rawByID[it.ID] = i
	}
	for _, r := range v.rels {
		v.outgoing[r.From] = append(v.outgoing[r.From], r)
		v.incoming[r.To] = append(v.incoming[r.To], r)
	}
	return v
}

// View returns a read model of the current graph state
func (g *Graph) View() *View {
	return NewView(g.Snapshot())
}

// ResolveTagText returns the text of a tag, or of a raw text item when id
// names one.
func (v *View) ResolveTagText(id string) (string, bool) {
	if i, ok := v.tagByID[id]; ok {
		return v.tags[i].Text, true
	}
	if i, ok := v.rawByID[id]; ok {
		return v.raw[i].Text, true
	}
	return "", false
}

// Tag returns the tag with the given id
func (v *View) Tag(id string) (Tag, bool) {
	if i, ok := v.tagByID[id]; ok {
		return v.tags[i], true
	}
	return Tag{}, false
}

// DescriptionsFor returns the texts describing a tag: annotation targets
// first, then linked notes, each in relationship order.
func (v *View) DescriptionsFor(tagID string) []string {
	var annotations, notes []string
	for _, r := range v.outgoing[tagID] {
		switch r.Type {
		case RelationshipAnnotation:
			if i, ok := v.rawByID[r.To]; ok {
				annotations = append(annotations, v.raw[i].Text)
			}
		case RelationshipNote:
			if i, ok := v.tagByID[r.To]; ok {
				notes = append(notes, v.tags[i].Text)
			}
		}
	}
	return append(annotations, notes...)
}

// TagsByCategory returns the tags of one category in creation order
func (v *View) TagsByCategory(c Category) []Tag {
	var out []Tag
	for _, t := range v.tags {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// InstalledOn returns the equipment or lines an instrument is mounted on
func (v *View) InstalledOn(instrumentID string) []Tag {
	return v.targets(v.outgoing[instrumentID], RelationshipInstallation, func(r Relationship) string { return r.To })
}

// InstrumentsOn returns the instruments mounted on an equipment or line tag
func (v *View) InstrumentsOn(baseID string) []Tag {
	return v.targets(v.incoming[baseID], RelationshipInstallation, func(r Relationship) string { return r.From })
}

// NotesFor returns the notes/holds tags linked from a tag
func (v *View) NotesFor(tagID string) []Tag {
	return v.targets(v.outgoing[tagID], RelationshipNote, func(r Relationship) string { return r.To })
}

// ReferencedBy returns the tags that link to a notes/holds tag
func (v *View) ReferencedBy(noteID string) []Tag {
	return v.targets(v.incoming[noteID], RelationshipNote, func(r Relationship) string { return r.From })
}

// ConnectionsOf returns the tags connected to tagID in either direction,
// outgoing edges first.
func (v *View) ConnectionsOf(tagID string) []Tag {
	out := v.targets(v.outgoing[tagID], RelationshipConnection, func(r Relationship) string { return r.To })
	return append(out, v.targets(v.incoming[tagID], RelationshipConnection, func(r Relationship) string { return r.From })...)
}

// Counts returns the number of tags per category
func (v *View) Counts() map[Category]int {
	out := make(map[Category]int)
	for _, t := range v.tags {
		out[t.Category]++
	}
	return out
}

func (v *View) targets(rels []Relationship, kind RelationshipKind, end func(Relationship) string) []Tag {
	var out []Tag
	for _, r := range rels {
		if r.Type != kind {
			continue
		}
		if i, ok := v.tagByID[end(r)]; ok {
			out = append(out, v.tags[i])
		}
	}
	return out
}
