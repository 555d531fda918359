package descriptions

// Tool descriptions with practical examples and use cases

const (
	// Discovery
	PIDServerInfoDescription = `Get server information, configured drawing directory, open documents and usage guidance.

**When to use:** At the start of a session, to learn where drawings live and which documents are already open.

**Examples:**
• "What drawings can I tag?"
• "Which documents are open and how many tags does each have?"

**Best practices:** Call this first; every other tool takes paths relative to the drawing directory it reports.`

	PIDListDrawingsDescription = `List P&ID drawings (PDF files) under the drawing directory.

**When to use:** To find the sheet to extract before calling pid_extract_tags.

**Examples:**
• All sheets: no arguments
• One area: directory="area-200"
• By number: query="P-200" (substring) or query="*sheet2.pdf" (glob)

**Best practices:** Paths outside the drawing directory are rejected.`

	// Extraction
	PIDExtractTagsDescription = `Extract equipment, line, instrument, drawing-number and note/hold tags from a P&ID drawing.

**When to use:** To start curating a drawing. The drawing's text layer is read page by page; stacked instrument bubbles (a function code such as "PT" above a loop number such as "1001") are merged into one tag ("PT-1001"), every other run is matched against the category patterns, and whatever matches nothing is kept as a raw text item for manual curation.

**Why it's useful:** Produces an editable tag graph in one call. The returned document id is used by every curation tool.

**Examples:**
• "Extract tags from P-100-sheet1.pdf"
• With custom patterns: settings="patterns:\n  Equipment: 'P-\\d{3}'"

**Common workflows:**
1. Extract → pid_auto_link → review pid_list_tags → fix with merge/update tools → pid_export_xlsx
2. Extract → pid_save_project → later pid_load_project to continue

**Best practices:** Scanned drawings without a text layer produce no tags. Broken category patterns are reported as warnings and the remaining categories still run.`

	// Reading
	PIDListDocumentsDescription = `List the documents open in this session with tag, raw item and relationship counts.`

	PIDListTagsDescription = `List the tags of an open document, optionally filtered by category and page.

Each tag carries its id, text, page, bounding box, category and the raw items it was merged from.`

	PIDListRawItemsDescription = `List the unclassified raw text items of an open document, optionally filtered by page.

Raw items are the material for pid_merge_raw_items and for description annotations.`

	PIDListRelationshipsDescription = `List relationships of an open document, optionally filtered by type (Connection, Installation, Annotation, Note) or by a tag id at either end.`

	PIDDescribeTagDescription = `Show one tag with everything linked to it: descriptions (annotated raw text and notes), the equipment or line it is installed on, the instruments installed on it, and its connections.`

	// Curation
	PIDMergeRawItemsDescription = `Merge raw text items into a single tag.

**When to use:** The extractor missed a tag that was split across several text runs, e.g. "FV" and "2001" placed side by side.

**Rules:** Items are joined with "-" in the order given and must all be on the same page. The tag's bounding box covers all items; the items disappear from the raw pool and come back if the tag is deleted.`

	PIDCreateManualTagDescription = `Create a tag that has no source text, e.g. for a symbol whose label is missing from the text layer. Requires text, page, category and a bounding box (x1, y1, x2, y2 in PDF units).`

	PIDDeleteTagsDescription = `Delete tags. Merged tags give their source items back to the raw pool; other tags are turned back into one raw item with the same id. Relationships touching the deleted tags are removed.`

	PIDDeleteRawItemsDescription = `Delete raw text items, e.g. title-block noise. Annotation relationships pointing at them are removed.`

	PIDUpdateTextDescription = `Correct the text of a tag or raw text item in place. The id decides which one is edited.`

	PIDUpdateCategoryDescription = `Change a tag's category. Installation and note relationships that no longer fit the new category are removed and counted in the response.`

	// Relationships
	PIDAutoLinkDescription = `Link raw text near each instrument as its description (Annotation relationships).

**Rules:** Instruments are visited in creation order; a raw item within max_distance of an instrument's center is claimed by the first such instrument. Items already describing something are skipped, so running this twice adds nothing.

**Best practices:** Run right after extraction, then review with pid_describe_tag. The default distance comes from the instrument tolerance in the settings.`

	PIDCreateAnnotationDescription = `Attach raw text items to a tag as its description.`

	PIDCreateInstallationDescription = `Record that instruments are installed on an equipment or line tag.

Pass either instrument_ids plus base_id, or tag_ids holding a mixed selection with exactly one Equipment or Line tag and at least one Instrument.`

	PIDCreateConnectionDescription = `Connect two tags (directed, from → to). A tag cannot be connected to itself.`

	PIDCreateNoteDescription = `Link instrument or equipment tags to a NOTE/HOLD tag.`

	PIDDeleteRelationshipsDescription = `Delete relationships by id.`

	// Settings
	PIDGetSettingsDescription = `Show the patterns and tolerances of an open document (or the server defaults) in the YAML settings-file format.`

	PIDSetSettingsDescription = `Replace the patterns and tolerances of an open document from YAML in the settings-file format. The new settings apply to later auto-linking; the tags already extracted are not re-classified.`

	// Persistence and export
	PIDSaveProjectDescription = `Save an open document's tag graph. With name it goes into the project database; with path it is written as a JSON project file under the drawing directory.`

	PIDLoadProjectDescription = `Open a saved project as a new document, by database name or by JSON file path. Documents missing any of tags, relationships or rawTextItems, or with relationships pointing at unknown ids, are rejected.`

	PIDListProjectsDescription = `List projects saved in the project database, most recently updated first.`

	PIDDeleteProjectDescription = `Delete a project from the project database.`

	PIDExportXLSXDescription = `Export an open document to an Excel workbook with Equipment, Line, Instrument and "Notes & Holds" sheets.

Each row lists the tag, its page, its descriptions, what it is installed on or carries, its connections and, for notes, the tags that reference it. The path must end in .xlsx and lie under the drawing directory.`

	PIDCloseDocumentDescription = `Close an open document. Unsaved curation is lost.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pid_server_info":          PIDServerInfoDescription,
	"pid_list_drawings":        PIDListDrawingsDescription,
	"pid_extract_tags":         PIDExtractTagsDescription,
	"pid_list_documents":       PIDListDocumentsDescription,
	"pid_list_tags":            PIDListTagsDescription,
	"pid_list_raw_items":       PIDListRawItemsDescription,
	"pid_list_relationships":   PIDListRelationshipsDescription,
	"pid_describe_tag":         PIDDescribeTagDescription,
	"pid_merge_raw_items":      PIDMergeRawItemsDescription,
	"pid_create_manual_tag":    PIDCreateManualTagDescription,
	"pid_delete_tags":          PIDDeleteTagsDescription,
	"pid_delete_raw_items":     PIDDeleteRawItemsDescription,
	"pid_update_text":          PIDUpdateTextDescription,
	"pid_update_category":      PIDUpdateCategoryDescription,
	"pid_auto_link":            PIDAutoLinkDescription,
	"pid_create_annotation":    PIDCreateAnnotationDescription,
	"pid_create_installation":  PIDCreateInstallationDescription,
	"pid_create_connection":    PIDCreateConnectionDescription,
	"pid_create_note":          PIDCreateNoteDescription,
	"pid_delete_relationships": PIDDeleteRelationshipsDescription,
	"pid_get_settings":         PIDGetSettingsDescription,
	"pid_set_settings":         PIDSetSettingsDescription,
	"pid_save_project":         PIDSaveProjectDescription,
	"pid_load_project":         PIDLoadProjectDescription,
	"pid_list_projects":        PIDListProjectsDescription,
	"pid_delete_project":       PIDDeleteProjectDescription,
	"pid_export_xlsx":          PIDExportXLSXDescription,
	"pid_close_document":       PIDCloseDocumentDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns a list of all available tool names
func GetAllToolNames() []string {
	var names []string
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	return names
}
