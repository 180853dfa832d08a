// Package mcpserver exposes the knowledge vault to LLM clients as MCP
// (Model Context Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/study/internal/apperr"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/noteservice"
)

// NoteFormatURI is the resource URI of the vault note format description.
const NoteFormatURI = "study://note-format"

const listLimit = 1000

// Server wraps the MCP server with the vault tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates an MCP server with all tools registered. version is reported
// to clients during initialization.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"study",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles, bodies and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full Markdown content of a vault note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path, e.g. Concepts/Goroutine.md")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List note paths, optionally narrowed by kind or folder."),
		mcp.WithString("kind", mcp.Description("youtube_video, concept or youtube_channel")),
		mcp.WithString("folder", mcp.Description("Folder prefix, e.g. Sources/YouTube/Tech Talks")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_item_status",
		mcp.WithDescription("Pipeline progress of one video: transcript, enrichment and notes stages."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Video id")),
	), s.getItemStatus)

	s.mcp.AddTool(mcp.NewTool("list_pending_items",
		mcp.WithDescription("Videos whose transcript is extracted but not yet enriched."),
	), s.listPendingItems)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Describes the note kinds, frontmatter keys and link conventions of the vault."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Vault Note Format",
			mcp.WithResourceDescription("Layout and frontmatter of the generated knowledge vault."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	folder := strings.Trim(req.GetString("folder", ""), "/")

	items, _, err := s.svc.ListNotes(ctx, index.ListFilter{Kind: kind, Limit: listLimit})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var paths []string
	for _, it := range items {
		if folder != "" && !strings.HasPrefix(it.Path, folder+"/") {
			continue
		}
		paths = append(paths, it.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getItemStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.svc.Item(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown item: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item)
}

func (s *Server) listPendingItems(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.PendingItems(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getNoteFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}
