// Package mcpserver exposes the gopher and gemini fetchers as MCP tools.
package mcpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gopher-mcp/internal/models"
)

// Name and Version identify the server to MCP clients.
const (
	Name    = "gopher-mcp"
	Version = "1.0.0"
)

// Fetcher turns a URL into a result. Both protocol fetchers implement it.
type Fetcher interface {
	Fetch(ctx context.Context, raw string) models.Result
}

// Server wraps the MCP server with the fetch tools.
type Server struct {
	mcp    *server.MCPServer
	gopher Fetcher
	gemini Fetcher
	logger *slog.Logger
}

// New creates a new MCP server with both fetch tools registered.
func New(gopher, gemini Fetcher, logger *slog.Logger) *Server {
	s := &Server{gopher: gopher, gemini: gemini, logger: logger}

	s.mcp = server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("gopher_fetch",
		mcp.WithDescription("Fetch a gopher URL. Menus are returned as structured items, "+
			"text documents as decoded text, and binary items as metadata only. "+
			"See the gopher-mcp://result-format resource for the result shapes."),
		mcp.WithString("url", mcp.Required(),
			mcp.Description("Gopher URL, e.g. gopher://gopher.floodgap.com/1/world. "+
				"Search terms for type 7 items go after '?' or a %09.")),
	), s.gopherFetch)

	s.mcp.AddTool(mcp.NewTool("gemini_fetch",
		mcp.WithDescription("Fetch a gemini URL over TLS with trust-on-first-use certificate pinning. "+
			"Gemtext is returned parsed into lines and links; redirects are reported, not followed."),
		mcp.WithString("url", mcp.Required(),
			mcp.Description("Gemini URL, e.g. gemini://geminiprotocol.net/. Input is sent as the query string.")),
	), s.geminiFetch)

	s.mcp.AddResource(
		mcp.NewResource(ResultFormatURI, "Result Format",
			mcp.WithResourceDescription("Shapes of the JSON results returned by the fetch tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readResultFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler returns the streamable HTTP transport for mounting under /mcp.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) gopherFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.fetch(ctx, req, s.gopher)
}

func (s *Server) geminiFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.fetch(ctx, req, s.gemini)
}

func (s *Server) fetch(ctx context.Context, req mcp.CallToolRequest, f Fetcher) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := f.Fetch(ctx, raw)
	out, err := models.EncodeIndent(result)
	if err != nil {
		s.logger.Error("encode result", slog.String("url", raw), slog.String("error", err.Error()))
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Kind() == models.KindError {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readResultFormat(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ResultFormatURI,
			MIMEType: "text/markdown",
			Text:     ResultFormat,
		},
	}, nil
}
