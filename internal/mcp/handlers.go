package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pid-tagger/internal/config"
	"github.com/a3tai/mcp-pid-tagger/internal/export"
	"github.com/a3tai/mcp-pid-tagger/internal/pid"
	"github.com/a3tai/mcp-pid-tagger/internal/pipeline"
	"github.com/a3tai/mcp-pid-tagger/internal/project"
)

var errNoStore = errors.New("project database is not configured")

// document resolves the required document_id argument
func (s *Server) document(request mcp.CallToolRequest) (*project.Document, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return nil, err
	}
	return s.workspace.Get(strings.TrimSpace(id))
}

// progress forwards extraction progress to the client when it asked for it
func (s *Server) progress(ctx context.Context, request mcp.CallToolRequest, path string) pipeline.ProgressFunc {
	var token mcp.ProgressToken
	if request.Params.Meta != nil {
		token = request.Params.Meta.ProgressToken
	}
	srv := server.ServerFromContext(ctx)

	return func(p pipeline.Progress) {
		s.logger.Debug("extraction progress", "path", path, "page", p.Current, "of", p.Total)
		if token == nil || srv == nil {
			return
		}
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      p.Current,
			"total":         p.Total,
		})
		if err != nil {
			s.logger.Debug("progress notification dropped", "err", err)
		}
	}
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Drawing Directory: %s\n", s.config.DrawingDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	if s.store != nil {
		text += fmt.Sprintf("🗄️  Project Database: %s\n", s.store.Path())
	}
	stats := s.drawings.CacheStats()
	text += fmt.Sprintf("⚡ Page Cache: %d/%d pages, %.1f%% hits\n\n", stats.Size, stats.Capacity, stats.HitRate)

	if list, err := s.drawings.ListDrawings("", ""); err == nil && list.TotalCount > 0 {
		text += fmt.Sprintf("📂 Drawings (%d PDF files found):\n", list.TotalCount)
		for i, file := range list.Files {
			if i >= 10 {
				text += fmt.Sprintf("   ... and %d more files\n", list.TotalCount-10)
				break
			}
			rel, relErr := filepath.Rel(s.config.DrawingDirectory, file.Path)
			if relErr != nil {
				rel = file.Name
			}
			text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, rel, file.Size)
		}
		text += "\n"
	} else {
		text += "📂 Drawings: No PDF files found in the drawing directory\n\n"
	}

	docs := s.workspace.List()
	if len(docs) > 0 {
		text += fmt.Sprintf("📄 Open Documents (%d):\n", len(docs))
		for _, d := range docs {
			text += fmt.Sprintf("   • %s  %s: %d tags, %d raw items, %d relationships\n",
				d.ID, d.Source, d.Tags, d.RawTextItems, d.Relationships)
		}
		text += "\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, name := range s.ToolNames() {
		text += fmt.Sprintf("   • %s\n", name)
	}
	text += "\nStart with pid_list_drawings, then pid_extract_tags on a sheet. Every curation tool takes the returned document_id.\n"

	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListDrawings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.drawings.ListDrawings(stringArg(request, "directory"), stringArg(request, "query"))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(list)
}

type extractResponse struct {
	Document project.Summary `json:"document"`
	PagesDone int            `json:"pagesDone"`
	Warnings  []*pid.Error   `json:"warnings,omitempty"`
	Duration  string         `json:"duration"`
}

func (s *Server) handleExtractTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult(err)
	}

	var override *pid.Settings
	if raw := stringArg(request, "settings"); raw != "" {
		settings, err := config.ParseSettings([]byte(raw))
		if err != nil {
			return errorResult(fmt.Errorf("invalid settings: %w", err))
		}
		override = &settings
	}

	doc, result, err := s.workspace.Extract(ctx, path, override, s.progress(ctx, request, path))
	if err != nil {
		if doc != nil {
			return errorResult(fmt.Errorf("extraction stopped after %d of %d pages, partial document %s kept: %w",
				result.PagesDone, result.PageCount, doc.ID, err))
		}
		return errorResult(err)
	}

	return jsonResult(extractResponse{
		Document:  doc.Summary(),
		PagesDone: result.PagesDone,
		Warnings:  result.Warnings,
		Duration:  result.Duration.String(),
	})
}

func (s *Server) handleListDocuments(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.workspace.List())
}

func (s *Server) handleListTags(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	category, err := categoryArg(request, "category", false)
	if err != nil {
		return errorResult(err)
	}
	page, _, err := numberArg(request, "page")
	if err != nil {
		return errorResult(err)
	}

	tags := []pid.Tag{}
	for _, t := range doc.Graph.Tags() {
		if category != "" && t.Category != category {
			continue
		}
		if page > 0 && t.Page != int(page) {
			continue
		}
		tags = append(tags, t)
	}
	return jsonResult(tags)
}

func (s *Server) handleListRawItems(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	page, _, err := numberArg(request, "page")
	if err != nil {
		return errorResult(err)
	}

	items := []pid.RawTextItem{}
	for _, item := range doc.Graph.RawTextItems() {
		if page > 0 && item.Page != int(page) {
			continue
		}
		items = append(items, item)
	}
	return jsonResult(items)
}

func (s *Server) handleListRelationships(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	kind := pid.RelationshipKind(stringArg(request, "type"))
	if kind != "" && !kind.Valid() {
		return errorResult(pid.ValidationError("unknown relationship type %q", kind))
	}
	tagID := stringArg(request, "tag_id")

	rels := []pid.Relationship{}
	for _, r := range doc.Graph.Relationships() {
		if kind != "" && r.Type != kind {
			continue
		}
		if tagID != "" && r.From != tagID && r.To != tagID {
			continue
		}
		rels = append(rels, r)
	}
	return jsonResult(rels)
}

// tagDetail is a tag with everything linked to it
type tagDetail struct {
	Tag          pid.Tag   `json:"tag"`
	Descriptions []string  `json:"descriptions"`
	InstalledOn  []pid.Tag `json:"installedOn"`
	Instruments  []pid.Tag `json:"instruments"`
	Connections  []pid.Tag `json:"connections"`
	Notes        []pid.Tag `json:"notes"`
	ReferencedBy []pid.Tag `json:"referencedBy,omitempty"`
}

func (s *Server) handleDescribeTag(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	tagID, err := request.RequireString("tag_id")
	if err != nil {
		return errorResult(err)
	}

	v := doc.Graph.View()
	tag, ok := v.Tag(tagID)
	if !ok {
		return errorResult(pid.ValidationError("unknown tag id %q", tagID))
	}
	return jsonResult(tagDetail{
		Tag:          tag,
		Descriptions: v.DescriptionsFor(tag.ID),
		InstalledOn:  v.InstalledOn(tag.ID),
		Instruments:  v.InstrumentsOn(tag.ID),
		Connections:  v.ConnectionsOf(tag.ID),
		Notes:        v.NotesFor(tag.ID),
		ReferencedBy: v.ReferencedBy(tag.ID),
	})
}

func (s *Server) handleMergeRawItems(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	ids, err := requireStrings(request, "item_ids")
	if err != nil {
		return errorResult(err)
	}
	category, err := categoryArg(request, "category", true)
	if err != nil {
		return errorResult(err)
	}

	tag, err := doc.Graph.MergeIntoTag(ids, category)
	if err != nil {
		return errorResult(err)
	}
	s.logger.Debug("merged raw items", "document", doc.ID, "tag", tag.Text, "items", len(ids))
	return jsonResult(tag)
}

func (s *Server) handleCreateManualTag(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	text, err := request.RequireString("text")
	if err != nil {
		return errorResult(err)
	}
	category, err := categoryArg(request, "category", true)
	if err != nil {
		return errorResult(err)
	}

	var coords [5]float64
	for i, name := range []string{"page", "x1", "y1", "x2", "y2"} {
		if coords[i], err = requireNumber(request, name); err != nil {
			return errorResult(err)
		}
	}
	bbox := pid.BoundingBox{X1: coords[1], Y1: coords[2], X2: coords[3], Y2: coords[4]}

	tag, err := doc.Graph.CreateManualTag(text, bbox, int(coords[0]), category)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(tag)
}

type countResponse struct {
	Count int `json:"count"`
}

func (s *Server) handleDeleteTags(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	ids, err := requireStrings(request, "tag_ids")
	if err != nil {
		return errorResult(err)
	}
	if err := doc.Graph.DeleteTags(ids); err != nil {
		return errorResult(err)
	}
	return jsonResult(countResponse{Count: len(ids)})
}

func (s *Server) handleDeleteRawItems(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	ids, err := requireStrings(request, "item_ids")
	if err != nil {
		return errorResult(err)
	}
	if err := doc.Graph.DeleteRawTextItems(ids); err != nil {
		return errorResult(err)
	}
	return jsonResult(countResponse{Count: len(ids)})
}

func (s *Server) handleUpdateText(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	id, err := request.RequireString("id")
	if err != nil {
		return errorResult(err)
	}
	text, err := request.RequireString("text")
	if err != nil {
		return errorResult(err)
	}

	if _, ok := doc.Graph.Tag(id); ok {
		if err := doc.Graph.UpdateTagText(id, text); err != nil {
			return errorResult(err)
		}
		tag, _ := doc.Graph.Tag(id)
		return jsonResult(tag)
	}
	if err := doc.Graph.UpdateRawTextItemText(id, text); err != nil {
		return errorResult(err)
	}
	item, _ := doc.Graph.RawTextItem(id)
	return jsonResult(item)
}

type categoryResponse struct {
	Tag                  pid.Tag `json:"tag"`
	RemovedRelationships int     `json:"removedRelationships"`
}

func (s *Server) handleUpdateCategory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	id, err := request.RequireString("tag_id")
	if err != nil {
		return errorResult(err)
	}
	category, err := categoryArg(request, "category", true)
	if err != nil {
		return errorResult(err)
	}

	removed, err := doc.Graph.UpdateTagCategory(id, category)
	if err != nil {
		return errorResult(err)
	}
	tag, _ := doc.Graph.Tag(id)
	return jsonResult(categoryResponse{Tag: tag, RemovedRelationships: removed})
}

type createdResponse struct {
	Created int `json:"created"`
}

func (s *Server) handleAutoLink(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	distance, ok, err := numberArg(request, "max_distance")
	if err != nil {
		return errorResult(err)
	}
	if !ok {
		distance = doc.Graph.Settings().AutoLinkDistance()
	}
	if distance <= 0 {
		return errorResult(pid.ValidationError("max_distance must be positive"))
	}

	created := doc.Graph.AutoLinkDescriptions(distance)
	s.logger.Debug("auto-linked descriptions", "document", doc.ID, "distance", distance, "created", created)
	return jsonResult(createdResponse{Created: created})
}

func (s *Server) handleCreateAnnotation(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	tagID, err := request.RequireString("tag_id")
	if err != nil {
		return errorResult(err)
	}
	ids, err := requireStrings(request, "item_ids")
	if err != nil {
		return errorResult(err)
	}

	created, err := doc.Graph.CreateAnnotation(tagID, ids)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(createdResponse{Created: created})
}

func (s *Server) handleCreateInstallation(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	selection, err := stringsArg(request, "tag_ids")
	if err != nil {
		return errorResult(err)
	}
	instruments, err := stringsArg(request, "instrument_ids")
	if err != nil {
		return errorResult(err)
	}
	baseID := stringArg(request, "base_id")

	var created int
	switch {
	case len(selection) > 0 && (len(instruments) > 0 || baseID != ""):
		return errorResult(pid.ValidationError("pass either tag_ids or instrument_ids with base_id, not both"))
	case len(selection) > 0:
		created, err = doc.Graph.CreateInstallationFromSelection(selection)
	case len(instruments) > 0 && baseID != "":
		created, err = doc.Graph.CreateInstallation(instruments, baseID)
	default:
		return errorResult(pid.ValidationError("instrument_ids and base_id, or tag_ids, are required"))
	}
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(createdResponse{Created: created})
}

func (s *Server) handleCreateConnection(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	from, err := request.RequireString("from_id")
	if err != nil {
		return errorResult(err)
	}
	to, err := request.RequireString("to_id")
	if err != nil {
		return errorResult(err)
	}

	rel, err := doc.Graph.CreateConnection(from, to)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rel)
}

func (s *Server) handleCreateNote(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	ids, err := requireStrings(request, "tag_ids")
	if err != nil {
		return errorResult(err)
	}
	noteID, err := request.RequireString("note_id")
	if err != nil {
		return errorResult(err)
	}

	created, err := doc.Graph.CreateNote(ids, noteID)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(createdResponse{Created: created})
}

func (s *Server) handleDeleteRelationships(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	ids, err := requireStrings(request, "relationship_ids")
	if err != nil {
		return errorResult(err)
	}
	if err := doc.Graph.DeleteRelationships(ids); err != nil {
		return errorResult(err)
	}
	return jsonResult(countResponse{Count: len(ids)})
}

func (s *Server) handleGetSettings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings := s.workspace.Settings()
	if stringArg(request, "document_id") != "" {
		doc, err := s.document(request)
		if err != nil {
			return errorResult(err)
		}
		settings = doc.Graph.Settings()
	}

	data, err := config.MarshalSettings(settings)
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleSetSettings(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	raw, err := request.RequireString("settings")
	if err != nil {
		return errorResult(err)
	}

	settings, err := config.ParseSettings([]byte(raw))
	if err != nil {
		return errorResult(fmt.Errorf("invalid settings: %w", err))
	}
	if err := doc.Graph.SetSettings(settings); err != nil {
		return errorResult(err)
	}

	// Broken patterns disable only their category; surface them now.
	return jsonResult(struct {
		Settings string       `json:"settings"`
		Warnings []*pid.Error `json:"warnings,omitempty"`
	}{Settings: settings.String(), Warnings: pid.NewMatcher(settings.Patterns).Warnings()})
}

// projectTarget reads the name/path pair of the project tools. Exactly one
// must be set; path is confined to the drawing directory.
func (s *Server) projectTarget(request mcp.CallToolRequest) (name, path string, err error) {
	name = stringArg(request, "name")
	path = stringArg(request, "path")
	switch {
	case name != "" && path != "":
		return "", "", pid.ValidationError("pass either name or path, not both")
	case name == "" && path == "":
		return "", "", pid.ValidationError("name or path is required")
	case path != "":
		abs, err := s.drawings.Guard().Resolve(path)
		if err != nil {
			return "", "", fmt.Errorf("security validation failed: %w", err)
		}
		return "", abs, nil
	case s.store == nil:
		return "", "", errNoStore
	}
	return name, "", nil
}

func (s *Server) handleSaveProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	name, path, err := s.projectTarget(request)
	if err != nil {
		return errorResult(err)
	}

	snapshot := doc.Graph.Snapshot()
	if path != "" {
		if err := project.SaveFile(path, snapshot); err != nil {
			return errorResult(err)
		}
		s.logger.Info("project file saved", "document", doc.ID, "path", path)
		return jsonResult(map[string]any{"path": path, "tags": len(snapshot.Tags), "relationships": len(snapshot.Relationships)})
	}

	info, err := s.store.Save(ctx, name, doc.Source, snapshot)
	if err != nil {
		return errorResult(err)
	}
	s.logger.Info("project saved", "document", doc.ID, "name", name)
	return jsonResult(info)
}

func (s *Server) handleLoadProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, path, err := s.projectTarget(request)
	if err != nil {
		return errorResult(err)
	}

	var (
		snapshot pid.Document
		source   string
	)
	if path != "" {
		if snapshot, err = project.LoadFile(path); err != nil {
			return errorResult(err)
		}
		source = path
	} else {
		var info project.ProjectInfo
		if snapshot, info, err = s.store.Load(ctx, name); err != nil {
			return errorResult(err)
		}
		source = info.Source
	}

	doc, err := s.workspace.Import(snapshot, source)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(doc.Summary())
}

func (s *Server) handleListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return errorResult(errNoStore)
	}
	projects, err := s.store.List(ctx)
	if err != nil {
		return errorResult(err)
	}
	if projects == nil {
		projects = []project.ProjectInfo{}
	}
	return jsonResult(projects)
}

func (s *Server) handleDeleteProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return errorResult(errNoStore)
	}
	name, err := request.RequireString("name")
	if err != nil {
		return errorResult(err)
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Project %q deleted", name)), nil
}

func (s *Server) handleExportXLSX(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.document(request)
	if err != nil {
		return errorResult(err)
	}
	path, err := request.RequireString("path")
	if err != nil {
		return errorResult(err)
	}
	abs, err := s.drawings.Guard().Resolve(path)
	if err != nil {
		return errorResult(fmt.Errorf("security validation failed: %w", err))
	}

	if err := export.WriteFile(abs, doc.Graph.Snapshot()); err != nil {
		return errorResult(err)
	}
	s.logger.Info("workbook exported", "document", doc.ID, "path", abs)
	return mcp.NewToolResultText(fmt.Sprintf("Exported %s to %s", doc.Source, abs)), nil
}

func (s *Server) handleCloseDocument(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return errorResult(err)
	}
	if err := s.workspace.Close(strings.TrimSpace(id)); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Document %s closed", id)), nil
}
