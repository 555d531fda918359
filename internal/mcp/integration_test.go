package mcp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
	"github.com/a3tai/mcp-pid-tagger/internal/project"
)

// TestCurationWorkflow drives a sheet from extraction through curation,
// persistence and export the way a client would.
func TestCurationWorkflow(t *testing.T) {
	s := newTestServer(t)
	dir := s.config.DrawingDirectory
	docID := extractSheet(t, s)

	pt := tagByText(t, s, docID, "PT-1001")
	pump := tagByText(t, s, docID, "P-101")
	note := tagByText(t, s, docID, "NOTE 5")
	assert.Equal(t, pid.CategoryInstrument, pt.Category)
	require.Len(t, pt.SourceItems, 2)

	var created createdResponse
	mustCall(t, s.handleAutoLink, map[string]interface{}{"document_id": docID}, &created)
	assert.Equal(t, 1, created.Created)
	mustCall(t, s.handleAutoLink, map[string]interface{}{"document_id": docID}, &created)
	assert.Equal(t, 0, created.Created, "auto-link is idempotent")

	// Merge the side-by-side valve fragments the extractor left raw.
	fv := rawByText(t, s, docID, "FV")
	num := rawByText(t, s, docID, "2001")
	var valve pid.Tag
	mustCall(t, s.handleMergeRawItems, map[string]interface{}{
		"document_id": docID,
		"item_ids":    []interface{}{fv.ID, num.ID},
		"category":    "Instrument",
	}, &valve)
	assert.Equal(t, "FV-2001", valve.Text)
	assert.Len(t, valve.SourceItems, 2)

	mustCall(t, s.handleCreateInstallation, map[string]interface{}{
		"document_id":    docID,
		"instrument_ids": []interface{}{pt.ID, valve.ID},
		"base_id":        pump.ID,
	}, &created)
	assert.Equal(t, 2, created.Created)

	mustCall(t, s.handleCreateNote, map[string]interface{}{
		"document_id": docID,
		"tag_ids":     []interface{}{pt.ID},
		"note_id":     note.ID,
	}, &created)
	assert.Equal(t, 1, created.Created)

	var conn pid.Relationship
	mustCall(t, s.handleCreateConnection, map[string]interface{}{
		"document_id": docID,
		"from_id":     pump.ID,
		"to_id":       pt.ID,
	}, &conn)
	assert.Equal(t, pid.RelationshipConnection, conn.Type)

	var detail tagDetail
	mustCall(t, s.handleDescribeTag, map[string]interface{}{"document_id": docID, "tag_id": pt.ID}, &detail)
	assert.Equal(t, []string{"SUCTION", "NOTE 5"}, detail.Descriptions)
	require.Len(t, detail.InstalledOn, 1)
	assert.Equal(t, "P-101", detail.InstalledOn[0].Text)
	require.Len(t, detail.Notes, 1)
	assert.Equal(t, "NOTE 5", detail.Notes[0].Text)

	mustCall(t, s.handleDescribeTag, map[string]interface{}{"document_id": docID, "tag_id": pump.ID}, &detail)
	assert.Len(t, detail.Instruments, 2)
	require.Len(t, detail.Connections, 1)
	assert.Equal(t, "PT-1001", detail.Connections[0].Text)

	var rels []pid.Relationship
	mustCall(t, s.handleListRelationships, map[string]interface{}{"document_id": docID, "type": "Installation"}, &rels)
	assert.Len(t, rels, 2)
	mustCall(t, s.handleListRelationships, map[string]interface{}{"document_id": docID, "tag_id": pt.ID}, &rels)
	assert.Len(t, rels, 4)

	// A valve reclassified as a line can no longer be installed on the pump.
	var changed categoryResponse
	mustCall(t, s.handleUpdateCategory, map[string]interface{}{
		"document_id": docID,
		"tag_id":      valve.ID,
		"category":    "Line",
	}, &changed)
	assert.Equal(t, pid.CategoryLine, changed.Tag.Category)
	assert.Equal(t, 1, changed.RemovedRelationships)

	var renamed pid.Tag
	mustCall(t, s.handleUpdateText, map[string]interface{}{"document_id": docID, "id": note.ID, "text": "NOTE 6"}, &renamed)
	assert.Equal(t, "NOTE 6", renamed.Text)
	suction := rawByText(t, s, docID, "SUCTION")
	var item pid.RawTextItem
	mustCall(t, s.handleUpdateText, map[string]interface{}{"document_id": docID, "id": suction.ID, "text": "SUCTION HEADER"}, &item)
	assert.Equal(t, "SUCTION HEADER", item.Text)

	mustCall(t, s.handleDescribeTag, map[string]interface{}{"document_id": docID, "tag_id": pt.ID}, &detail)
	assert.Equal(t, []string{"SUCTION HEADER", "NOTE 6"}, detail.Descriptions)

	// Export and persist.
	mustCall(t, s.handleExportXLSX, map[string]interface{}{"document_id": docID, "path": "out/P-100.xlsx"}, nil)
	assert.FileExists(t, filepath.Join(dir, "out", "P-100.xlsx"))

	var info project.ProjectInfo
	mustCall(t, s.handleSaveProject, map[string]interface{}{"document_id": docID, "name": "P-100"}, &info)
	assert.Equal(t, "P-100", info.Name)
	assert.Equal(t, 4, info.TagCount)
	assert.Equal(t, 4, info.RelationCount)
	mustCall(t, s.handleSaveProject, map[string]interface{}{"document_id": docID, "path": "projects/p100.json"}, nil)
	assert.FileExists(t, filepath.Join(dir, "projects", "p100.json"))

	var projects []project.ProjectInfo
	mustCall(t, s.handleListProjects, nil, &projects)
	require.Len(t, projects, 1)

	var fromDB, fromFile project.Summary
	mustCall(t, s.handleLoadProject, map[string]interface{}{"name": "P-100"}, &fromDB)
	mustCall(t, s.handleLoadProject, map[string]interface{}{"path": "projects/p100.json"}, &fromFile)
	for _, loaded := range []project.Summary{fromDB, fromFile} {
		assert.NotEqual(t, docID, loaded.ID)
		assert.Equal(t, 4, loaded.Tags)
		assert.Equal(t, 4, loaded.Relationships)
	}

	var docs []project.Summary
	mustCall(t, s.handleListDocuments, nil, &docs)
	assert.Len(t, docs, 3)

	// Deleting the merged valve gives its fragments back.
	mustCall(t, s.handleDeleteTags, map[string]interface{}{"document_id": docID, "tag_ids": []interface{}{valve.ID}}, nil)
	var items []pid.RawTextItem
	mustCall(t, s.handleListRawItems, map[string]interface{}{"document_id": docID}, &items)
	assert.Len(t, items, 3)

	mustCall(t, s.handleCreateAnnotation, map[string]interface{}{
		"document_id": docID,
		"tag_id":      pump.ID,
		"item_ids":    []interface{}{fv.ID},
	}, &created)
	assert.Equal(t, 1, created.Created)

	mustCall(t, s.handleDeleteRawItems, map[string]interface{}{"document_id": docID, "item_ids": []interface{}{suction.ID}}, nil)
	mustCall(t, s.handleDescribeTag, map[string]interface{}{"document_id": docID, "tag_id": pt.ID}, &detail)
	assert.Equal(t, []string{"NOTE 6"}, detail.Descriptions)

	mustCall(t, s.handleDeleteRelationships, map[string]interface{}{"document_id": docID, "relationship_ids": []interface{}{conn.ID}}, nil)
	mustCall(t, s.handleListRelationships, map[string]interface{}{"document_id": docID, "type": "Connection"}, &rels)
	assert.Empty(t, rels)

	var manual pid.Tag
	mustCall(t, s.handleCreateManualTag, map[string]interface{}{
		"document_id": docID,
		"text":        "AB-CD-1000",
		"category":    "DrawingNumber",
		"page":        float64(1),
		"x1":          float64(700),
		"y1":          float64(20),
		"x2":          float64(780),
		"y2":          float64(30),
	}, &manual)
	assert.Equal(t, pid.CategoryDrawingNumber, manual.Category)
	assert.Empty(t, manual.SourceItems)

	mustCall(t, s.handleCloseDocument, map[string]interface{}{"document_id": fromFile.ID}, nil)
	mustCall(t, s.handleDeleteProject, map[string]interface{}{"name": "P-100"}, nil)
	mustCall(t, s.handleListProjects, nil, &projects)
	assert.Empty(t, projects)
	mustCall(t, s.handleListDocuments, nil, &docs)
	assert.Len(t, docs, 2)

	doc, err := s.workspace.Get(docID)
	require.NoError(t, err)
	assert.NoError(t, doc.Graph.CheckConsistency())
}
