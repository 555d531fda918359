package pid

import (
	"strings"
	"sync"
)

// Graph owns the tags, raw text items and relationships of one document.
// All methods are safe for concurrent use; each mutation runs to completion
// under the graph lock and either applies fully or not at all. Collections
// keep creation order, which pins every order-dependent rule (auto-link
// tie-breaks in particular).
type Graph struct {
	mu       sync.Mutex
	tags     []Tag
	raw      []RawTextItem
	rels     []Relationship
	settings Settings
	newID    IDFunc
}

// GraphOption configures a Graph
type GraphOption func(*Graph)

// WithIDFunc sets the identifier source for new entities
func WithIDFunc(f IDFunc) GraphOption {
	return func(g *Graph) {
		if f != nil {
			g.newID = f
		}
	}
}

// WithSettings sets the active pattern and tolerance configuration
func WithSettings(s Settings) GraphOption {
	return func(g *Graph) {
		g.settings = s.Clone()
	}
}

// NewGraph creates an empty graph
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		tags:     []Tag{},
		raw:      []RawTextItem{},
		rels:     []Relationship{},
		settings: DefaultSettings(),
		newID:    NewID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Settings returns a copy of the active configuration
func (g *Graph) Settings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings.Clone()
}

// SetSettings replaces the active configuration
func (g *Graph) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = s.Clone()
	return nil
}

// AddPageResults appends extraction output in page order
func (g *Graph) AddPageResults(results ...PageResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range results {
		for _, t := range r.Tags {
			g.tags = append(g.tags, cloneTag(t))
		}
		g.raw = append(g.raw, r.RawTextItems...)
	}
}

// Tags returns a copy of all tags in creation order
func (g *Graph) Tags() []Tag {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Tag, len(g.tags))
	for i, t := range g.tags {
		out[i] = cloneTag(t)
	}
	return out
}

// RawTextItems returns a copy of the raw text pool in creation order
func (g *Graph) RawTextItems() []RawTextItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneItems(g.raw)
}

// Relationships returns a copy of all relationships in creation order
func (g *Graph) Relationships() []Relationship {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Relationship, len(g.rels))
	copy(out, g.rels)
	return out
}

// Tag returns the tag with the given id
func (g *Graph) Tag(id string) (Tag, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.tagIndex(id); i >= 0 {
		return cloneTag(g.tags[i]), true
	}
	return Tag{}, false
}

// RawTextItem returns the raw text item with the given id
func (g *Graph) RawTextItem(id string) (RawTextItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.rawIndex(id); i >= 0 {
		return g.raw[i], true
	}
	return RawTextItem{}, false
}

// MergeIntoTag turns raw text items into one tag. Texts are joined with "-"
// in the order given; the originals are kept as source items so deleting the
// tag restores them. Annotation links into the consumed items are dropped.
func (g *Graph) MergeIntoTag(itemIDs []string, category Category) (Tag, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(itemIDs) == 0 {
		return Tag{}, ValidationError("select at least one raw text item to merge")
	}
	if !category.Valid() {
		return Tag{}, ValidationError("unknown category %q", category)
	}

	items := make([]RawTextItem, 0, len(itemIDs))
	seen := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if seen[id] {
			return Tag{}, ValidationError("raw text item %s selected more than once", id)
		}
		seen[id] = true
		i := g.rawIndex(id)
		if i < 0 {
			return Tag{}, ValidationError("raw text item %s does not exist", id)
		}
		items = append(items, g.raw[i])
	}

	page := items[0].Page
	texts := make([]string, 0, len(items))
	boxes := make([]BoundingBox, 0, len(items))
	for _, item := range items {
		if item.Page != page {
			return Tag{}, ValidationError("cannot merge items from different pages (%d and %d)", page, item.Page)
		}
		texts = append(texts, item.Text)
		boxes = append(boxes, item.BBox)
	}

	tag := Tag{
		ID:          g.newID(),
		Text:        strings.Join(texts, "-"),
		Page:        page,
		BBox:        UnionAll(boxes),
		Category:    category,
		SourceItems: items,
	}

	g.raw = filterItems(g.raw, func(it RawTextItem) bool { return !seen[it.ID] })
	g.rels = filterRels(g.rels, func(r Relationship) bool {
		return !(r.Type == RelationshipAnnotation && seen[r.To])
	})
	g.tags = append(g.tags, tag)

	return cloneTag(tag), nil
}

// CreateManualTag adds a tag drawn by hand over a page region
func (g *Graph) CreateManualTag(text string, bbox BoundingBox, page int, category Category) (Tag, error) {
	if strings.TrimSpace(text) == "" {
		return Tag{}, ValidationError("tag text is required")
	}
	if page < 1 {
		return Tag{}, ValidationError("page number must be positive, got %d", page)
	}
	if !bbox.Valid() || (bbox == BoundingBox{}) {
		return Tag{}, ValidationError("a bounding box with x1<=x2 and y1<=y2 is required")
	}
	if category == "" {
		return Tag{}, ValidationError("tag category is required")
	}
	if !category.Valid() {
		return Tag{}, ValidationError("unknown category %q", category)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tag := Tag{
		ID:       g.newID(),
		Text:     text,
		Page:     page,
		BBox:     bbox,
		Category: category,
	}
	g.tags = append(g.tags, tag)
	return cloneTag(tag), nil
}

// DeleteTags removes tags and gives their text back to the raw pool: the
// original source items when present, otherwise one item reusing the tag id.
// Every relationship touching a deleted tag is removed.
func (g *Graph) DeleteTags(tagIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	doomed, err := g.requireTags(tagIDs)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(g.raw))
	for _, it := range g.raw {
		present[it.ID] = true
	}
	restore := func(it RawTextItem) {
		if present[it.ID] {
			return
		}
		present[it.ID] = true
		g.raw = append(g.raw, it)
	}

	for _, t := range g.tags {
		if !doomed[t.ID] {
			continue
		}
		if len(t.SourceItems) > 0 {
			for _, it := range t.SourceItems {
				restore(it)
			}
			continue
		}
		restore(RawTextItem{ID: t.ID, Text: t.Text, Page: t.Page, BBox: t.BBox})
	}

	g.tags = filterTags(g.tags, func(t Tag) bool { return !doomed[t.ID] })
	g.rels = filterRels(g.rels, func(r Relationship) bool {
		return !doomed[r.From] && !doomed[r.To]
	})
	return nil
}

// DeleteRawTextItems removes raw items and the annotation links into them
func (g *Graph) DeleteRawTextItems(itemIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(itemIDs) == 0 {
		return ValidationError("select at least one raw text item to delete")
	}
	doomed := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		if g.rawIndex(id) < 0 {
			return ValidationError("raw text item %s does not exist", id)
		}
		doomed[id] = true
	}

	g.raw = filterItems(g.raw, func(it RawTextItem) bool { return !doomed[it.ID] })
	g.rels = filterRels(g.rels, func(r Relationship) bool {
		return !(r.Type == RelationshipAnnotation && doomed[r.To])
	})
	return nil
}

// UpdateTagText replaces a tag's text in place
func (g *Graph) UpdateTagText(id, text string) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError("tag text must not be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.tagIndex(id)
	if i < 0 {
		return ValidationError("tag %s does not exist", id)
	}
	g.tags[i].Text = text
	return nil
}

// UpdateRawTextItemText replaces a raw item's text in place
func (g *Graph) UpdateRawTextItemText(id, text string) error {
	if strings.TrimSpace(text) == "" {
		return ValidationError("raw text item text must not be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.rawIndex(id)
	if i < 0 {
		return ValidationError("raw text item %s does not exist", id)
	}
	g.raw[i].Text = text
	return nil
}

// UpdateTagCategory recategorizes a tag. Installation and note links whose
// endpoint categories no longer fit are removed; the count is returned.
func (g *Graph) UpdateTagCategory(id string, category Category) (int, error) {
	if !category.Valid() {
		return 0, ValidationError("unknown category %q", category)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.tagIndex(id)
	if i < 0 {
		return 0, ValidationError("tag %s does not exist", id)
	}
	g.tags[i].Category = category

	before := len(g.rels)
	g.rels = filterRels(g.rels, func(r Relationship) bool {
		if r.From != id && r.To != id {
			return true
		}
		return g.endpointsFit(r)
	})
	return before - len(g.rels), nil
}

// AutoLinkDescriptions links raw text near each instrument as its
// description. Instruments are visited in creation order and the first
// instrument within maxDistance claims an item; items that already describe
// something are skipped. It returns the number of new relationships.
func (g *Graph) AutoLinkDescriptions(maxDistance float64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	claimed := make(map[string]bool)
	for _, r := range g.rels {
		if r.Type == RelationshipAnnotation {
			claimed[r.To] = true
		}
	}

	created := 0
	for _, t := range g.tags {
		if t.Category != CategoryInstrument {
			continue
		}
		for _, it := range g.raw {
			if it.Page != t.Page || claimed[it.ID] {
				continue
			}
			if t.BBox.CenterDistance(it.BBox) > maxDistance {
				continue
			}
			claimed[it.ID] = true
			if g.hasRel(t.ID, it.ID, RelationshipAnnotation) {
				continue
			}
			g.rels = append(g.rels, Relationship{
				ID:   g.newID(),
				From: t.ID,
				To:   it.ID,
				Type: RelationshipAnnotation,
			})
			created++
		}
	}
	return created
}

// CreateAnnotation links raw text items to a tag as its description.
// Existing identical links are skipped; the number created is returned.
func (g *Graph) CreateAnnotation(tagID string, itemIDs []string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tagIndex(tagID) < 0 {
		return 0, ValidationError("tag %s does not exist", tagID)
	}
	if len(itemIDs) == 0 {
		return 0, ValidationError("select at least one raw text item to annotate with")
	}
	for _, id := range itemIDs {
		if g.rawIndex(id) < 0 {
			return 0, ValidationError("raw text item %s does not exist", id)
		}
	}

	created := 0
	for _, id := range itemIDs {
		if g.hasRel(tagID, id, RelationshipAnnotation) {
			continue
		}
		g.rels = append(g.rels, Relationship{ID: g.newID(), From: tagID, To: id, Type: RelationshipAnnotation})
		created++
	}
	return created, nil
}

// CreateInstallation records that each instrument is mounted on base.
// Existing identical relationships are skipped; the number created is returned.
func (g *Graph) CreateInstallation(instrumentIDs []string, baseID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createInstallation(instrumentIDs, baseID)
}

// createInstallation requires g.mu
func (g *Graph) createInstallation(instrumentIDs []string, baseID string) (int, error) {
	bi := g.tagIndex(baseID)
	if bi < 0 {
		return 0, ValidationError("base tag %s does not exist", baseID)
	}
	if !g.tags[bi].Category.IsInstallationBase() {
		return 0, ValidationError("installation base must be Equipment or Line, %s is %s",
			g.tags[bi].Text, g.tags[bi].Category)
	}
	if len(instrumentIDs) == 0 {
		return 0, ValidationError("select one or more instruments to install")
	}
	for _, id := range instrumentIDs {
		i := g.tagIndex(id)
		if i < 0 {
			return 0, ValidationError("instrument tag %s does not exist", id)
		}
		if g.tags[i].Category != CategoryInstrument {
			return 0, ValidationError("%s is %s, not an Instrument", g.tags[i].Text, g.tags[i].Category)
		}
	}
	return g.addEdges(instrumentIDs, baseID, RelationshipInstallation), nil
}

// CreateInstallationFromSelection derives the installation shape from a mixed
// selection: exactly one Equipment or Line tag and at least one Instrument.
func (g *Graph) CreateInstallationFromSelection(tagIDs []string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var bases, instruments []string
	for _, id := range tagIDs {
		i := g.tagIndex(id)
		if i < 0 {
			return 0, ValidationError("tag %s does not exist", id)
		}
		switch c := g.tags[i].Category; {
		case c.IsInstallationBase():
			bases = append(bases, id)
		case c == CategoryInstrument:
			instruments = append(instruments, id)
		}
	}

	if len(bases) != 1 || len(instruments) == 0 {
		return 0, ValidationError(
			"select exactly one Equipment or Line tag and at least one Instrument (got %d base, %d instrument)",
			len(bases), len(instruments))
	}
	return g.createInstallation(instruments, bases[0])
}

// CreateConnection adds a directed connection between two tags. A->B and
// B->A are distinct edges.
func (g *Graph) CreateConnection(fromID, toID string) (Relationship, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if fromID == toID {
		return Relationship{}, ValidationError("a tag cannot be connected to itself")
	}
	if g.tagIndex(fromID) < 0 {
		return Relationship{}, ValidationError("tag %s does not exist", fromID)
	}
	if g.tagIndex(toID) < 0 {
		return Relationship{}, ValidationError("tag %s does not exist", toID)
	}
	rel := Relationship{ID: g.newID(), From: fromID, To: toID, Type: RelationshipConnection}
	g.rels = append(g.rels, rel)
	return rel, nil
}

// CreateNote links instrument or equipment tags to a notes/holds tag.
// Existing identical relationships are skipped.
func (g *Graph) CreateNote(fromIDs []string, noteID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ni := g.tagIndex(noteID)
	if ni < 0 {
		return 0, ValidationError("note tag %s does not exist", noteID)
	}
	if g.tags[ni].Category != CategoryNotesAndHolds {
		return 0, ValidationError("%s is %s, not NotesAndHolds", g.tags[ni].Text, g.tags[ni].Category)
	}
	if len(fromIDs) == 0 {
		return 0, ValidationError("select one or more instrument or equipment tags")
	}
	for _, id := range fromIDs {
		i := g.tagIndex(id)
		if i < 0 {
			return 0, ValidationError("tag %s does not exist", id)
		}
		if c := g.tags[i].Category; c != CategoryInstrument && c != CategoryEquipment {
			return 0, ValidationError("%s is %s; notes attach to Instrument or Equipment", g.tags[i].Text, c)
		}
	}
	return g.addEdges(fromIDs, noteID, RelationshipNote), nil
}

// DeleteRelationships removes relationships by id
func (g *Graph) DeleteRelationships(ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		found := false
		for _, r := range g.rels {
			if r.ID == id {
				found = true
				break
			}
		}
		if !found {
			return ValidationError("relationship %s does not exist", id)
		}
		doomed[id] = true
	}
	g.rels = filterRels(g.rels, func(r Relationship) bool { return !doomed[r.ID] })
	return nil
}

// CheckConsistency returns a consistency error listing every relationship
// whose endpoints do not resolve to the pools its kind requires.
func (g *Graph) CheckConsistency() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return checkConsistency(g.tags, g.raw, g.rels)
}

func checkConsistency(tags []Tag, raw []RawTextItem, rels []Relationship) error {
	tagIDs := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagIDs[t.ID] = true
	}
	rawIDs := make(map[string]bool, len(raw))
	for _, it := range raw {
		rawIDs[it.ID] = true
	}

	var dangling []string
	for _, r := range rels {
		ok := tagIDs[r.From]
		if r.Type == RelationshipAnnotation {
			ok = ok && rawIDs[r.To]
		} else {
			ok = ok && tagIDs[r.To]
		}
		if !ok {
			dangling = append(dangling, r.ID)
		}
	}
	if len(dangling) > 0 {
		return ConsistencyError(dangling)
	}
	return nil
}

// endpointsFit checks category constraints of installation and note edges.
// Caller holds the lock.
func (g *Graph) endpointsFit(r Relationship) bool {
	switch r.Type {
	case RelationshipInstallation:
		from, to := g.tagIndex(r.From), g.tagIndex(r.To)
		return from >= 0 && to >= 0 &&
			g.tags[from].Category == CategoryInstrument && g.tags[to].Category.IsInstallationBase()
	case RelationshipNote:
		from, to := g.tagIndex(r.From), g.tagIndex(r.To)
		if from < 0 || to < 0 {
			return false
		}
		c := g.tags[from].Category
		return (c == CategoryInstrument || c == CategoryEquipment) && g.tags[to].Category == CategoryNotesAndHolds
	default:
		return true
	}
}

func (g *Graph) addEdges(fromIDs []string, toID string, kind RelationshipKind) int {
	created := 0
	for _, from := range fromIDs {
		if g.hasRel(from, toID, kind) {
			continue
		}
		g.rels = append(g.rels, Relationship{ID: g.newID(), From: from, To: toID, Type: kind})
		created++
	}
	return created
}

func (g *Graph) requireTags(ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return nil, ValidationError("select at least one tag")
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if g.tagIndex(id) < 0 {
			return nil, ValidationError("tag %s does not exist", id)
		}
		set[id] = true
	}
	return set, nil
}

func (g *Graph) hasRel(from, to string, kind RelationshipKind) bool {
	for _, r := range g.rels {
		if r.From == from && r.To == to && r.Type == kind {
			return true
		}
	}
	return false
}

func (g *Graph) tagIndex(id string) int {
	for i := range g.tags {
		if g.tags[i].ID == id {
			return i
		}
	}
	return -1
}

func (g *Graph) rawIndex(id string) int {
	for i := range g.raw {
		if g.raw[i].ID == id {
			return i
		}
	}
	return -1
}

func filterTags(in []Tag, keep func(Tag) bool) []Tag {
	out := make([]Tag, 0, len(in))
	for _, t := range in {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func filterItems(in []RawTextItem, keep func(RawTextItem) bool) []RawTextItem {
	out := make([]RawTextItem, 0, len(in))
	for _, it := range in {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func filterRels(in []Relationship, keep func(Relationship) bool) []Relationship {
	out := make([]Relationship, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
