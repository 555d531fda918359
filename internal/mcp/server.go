package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pid-tagger/internal/config"
	"github.com/a3tai/mcp-pid-tagger/internal/descriptions"
	"github.com/a3tai/mcp-pid-tagger/internal/pdf"
	"github.com/a3tai/mcp-pid-tagger/internal/project"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	drawings  *pdf.Service
	workspace *project.Workspace
	store     *project.Store
	logger    *log.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance. store may be nil, in which
// case the project database tools report an error.
func NewServer(cfg *config.Config, drawings *pdf.Service, workspace *project.Workspace, store *project.Store, logger *log.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if drawings == nil {
		return nil, fmt.Errorf("drawing service cannot be nil")
	}
	if workspace == nil {
		return nil, fmt.Errorf("workspace cannot be nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		drawings:  drawings,
		workspace: workspace,
		store:     store,
		logger:    logger,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

func documentIDParam() mcp.ToolOption {
	return mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Id of an open document, as returned by pid_extract_tags or pid_load_project"),
	)
}

func idsParam(name, description string) mcp.ToolOption {
	return mcp.WithArray(name,
		mcp.Required(),
		mcp.Description(description),
		mcp.Items(map[string]any{"type": "string"}),
	)
}

func categoryEnum() mcp.PropertyOption {
	return mcp.Enum("Equipment", "Line", "Instrument", "DrawingNumber", "NotesAndHolds", "Uncategorized")
}

// tool builds a tool whose description comes from the descriptions package
func tool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(descriptions.GetToolDescription(name))}, opts...)...)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Discovery
	s.mcpServer.AddTool(tool("pid_server_info"), s.handleServerInfo)
	s.mcpServer.AddTool(tool("pid_list_drawings",
		mcp.WithString("directory", mcp.Description("Directory under the drawing directory (the drawing directory when empty)")),
		mcp.WithString("query", mcp.Description("Case-insensitive substring or glob over file names")),
	), s.handleListDrawings)

	// Extraction
	s.mcpServer.AddTool(tool("pid_extract_tags",
		mcp.WithString("path", mcp.Required(), mcp.Description("Drawing path, relative to the drawing directory")),
		mcp.WithString("settings", mcp.Description("Optional YAML settings overriding the server patterns and tolerances for this drawing")),
	), s.handleExtractTags)

	// Reading
	s.mcpServer.AddTool(tool("pid_list_documents"), s.handleListDocuments)
	s.mcpServer.AddTool(tool("pid_list_tags",
		documentIDParam(),
		mcp.WithString("category", mcp.Description("Only tags of this category"), categoryEnum()),
		mcp.WithNumber("page", mcp.Description("Only tags on this page (1-based)")),
	), s.handleListTags)
	s.mcpServer.AddTool(tool("pid_list_raw_items",
		documentIDParam(),
		mcp.WithNumber("page", mcp.Description("Only items on this page (1-based)")),
	), s.handleListRawItems)
	s.mcpServer.AddTool(tool("pid_list_relationships",
		documentIDParam(),
		mcp.WithString("type", mcp.Description("Only relationships of this type"), mcp.Enum("Connection", "Installation", "Annotation", "Note")),
		mcp.WithString("tag_id", mcp.Description("Only relationships with this id at either end")),
	), s.handleListRelationships)
	s.mcpServer.AddTool(tool("pid_describe_tag",
		documentIDParam(),
		mcp.WithString("tag_id", mcp.Required(), mcp.Description("Tag id")),
	), s.handleDescribeTag)

	// Curation
	s.mcpServer.AddTool(tool("pid_merge_raw_items",
		documentIDParam(),
		idsParam("item_ids", "Raw text item ids, in the order they are joined"),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category of the new tag"), categoryEnum()),
	), s.handleMergeRawItems)
	s.mcpServer.AddTool(tool("pid_create_manual_tag",
		documentIDParam(),
		mcp.WithString("text", mcp.Required(), mcp.Description("Tag text")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Tag category"), categoryEnum()),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page number (1-based)")),
		mcp.WithNumber("x1", mcp.Required(), mcp.Description("Left edge")),
		mcp.WithNumber("y1", mcp.Required(), mcp.Description("Top edge")),
		mcp.WithNumber("x2", mcp.Required(), mcp.Description("Right edge")),
		mcp.WithNumber("y2", mcp.Required(), mcp.Description("Bottom edge")),
	), s.handleCreateManualTag)
	s.mcpServer.AddTool(tool("pid_delete_tags",
		documentIDParam(),
		idsParam("tag_ids", "Tag ids to delete"),
	), s.handleDeleteTags)
	s.mcpServer.AddTool(tool("pid_delete_raw_items",
		documentIDParam(),
		idsParam("item_ids", "Raw text item ids to delete"),
	), s.handleDeleteRawItems)
	s.mcpServer.AddTool(tool("pid_update_text",
		documentIDParam(),
		mcp.WithString("id", mcp.Required(), mcp.Description("Tag or raw text item id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New text")),
	), s.handleUpdateText)
	s.mcpServer.AddTool(tool("pid_update_category",
		documentIDParam(),
		mcp.WithString("tag_id", mcp.Required(), mcp.Description("Tag id")),
		mcp.WithString("category", mcp.Required(), mcp.Description("New category"), categoryEnum()),
	), s.handleUpdateCategory)

	// Relationships
	s.mcpServer.AddTool(tool("pid_auto_link",
		documentIDParam(),
		mcp.WithNumber("max_distance", mcp.Description("Maximum center distance in PDF units (default from the instrument tolerance)")),
	), s.handleAutoLink)
	s.mcpServer.AddTool(tool("pid_create_annotation",
		documentIDParam(),
		mcp.WithString("tag_id", mcp.Required(), mcp.Description("Tag being described")),
		idsParam("item_ids", "Raw text item ids holding the description"),
	), s.handleCreateAnnotation)
	s.mcpServer.AddTool(tool("pid_create_installation",
		documentIDParam(),
		mcp.WithArray("instrument_ids", mcp.Description("Instrument tag ids"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("base_id", mcp.Description("Equipment or line tag id")),
		mcp.WithArray("tag_ids", mcp.Description("Mixed selection: one equipment or line tag plus instruments"), mcp.Items(map[string]any{"type": "string"})),
	), s.handleCreateInstallation)
	s.mcpServer.AddTool(tool("pid_create_connection",
		documentIDParam(),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source tag id")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target tag id")),
	), s.handleCreateConnection)
	s.mcpServer.AddTool(tool("pid_create_note",
		documentIDParam(),
		idsParam("tag_ids", "Instrument or equipment tag ids"),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("NotesAndHolds tag id")),
	), s.handleCreateNote)
	s.mcpServer.AddTool(tool("pid_delete_relationships",
		documentIDParam(),
		idsParam("relationship_ids", "Relationship ids to delete"),
	), s.handleDeleteRelationships)

	// Settings
	s.mcpServer.AddTool(tool("pid_get_settings",
		mcp.WithString("document_id", mcp.Description("Open document id (server defaults when empty)")),
	), s.handleGetSettings)
	s.mcpServer.AddTool(tool("pid_set_settings",
		documentIDParam(),
		mcp.WithString("settings", mcp.Required(), mcp.Description("YAML settings")),
	), s.handleSetSettings)

	// Persistence and export
	s.mcpServer.AddTool(tool("pid_save_project",
		documentIDParam(),
		mcp.WithString("name", mcp.Description("Project name in the project database")),
		mcp.WithString("path", mcp.Description("JSON project file path under the drawing directory")),
	), s.handleSaveProject)
	s.mcpServer.AddTool(tool("pid_load_project",
		mcp.WithString("name", mcp.Description("Project name in the project database")),
		mcp.WithString("path", mcp.Description("JSON project file path under the drawing directory")),
	), s.handleLoadProject)
	s.mcpServer.AddTool(tool("pid_list_projects"), s.handleListProjects)
	s.mcpServer.AddTool(tool("pid_delete_project",
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
	), s.handleDeleteProject)
	s.mcpServer.AddTool(tool("pid_export_xlsx",
		documentIDParam(),
		mcp.WithString("path", mcp.Required(), mcp.Description("Workbook path ending in .xlsx, under the drawing directory")),
	), s.handleExportXLSX)
	s.mcpServer.AddTool(tool("pid_close_document", documentIDParam()), s.handleCloseDocument)
}

// ToolNames returns the registered tool names, sorted
func (s *Server) ToolNames() []string {
	names := descriptions.GetAllToolNames()
	sort.Strings(names)
	return names
}

// MCPServer returns the underlying protocol server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("server not started: %w", err)
	}
	s.logger.Debug("starting stdio transport", "dir", s.config.DrawingDirectory)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the SSE transport until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("server not started: %w", err)
	}

	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting SSE transport", "addr", addr, "dir", s.config.DrawingDirectory)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve SSE: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down SSE transport", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}
