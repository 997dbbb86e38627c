package mcp

import (
	"context"
	stdlog "log"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/lights"
)

// Controller is the set of light operations exposed as tools.
type Controller interface {
	ControlLight(ctx context.Context, req lights.LightRequest) *lights.Response
	ControlRoom(ctx context.Context, req lights.RoomRequest) *lights.Response
	GetLightState(ctx context.Context, lightID int) *lights.Response
	ListLights(ctx context.Context) *lights.Response
	DiscoverBridge(ctx context.Context) *lights.Response
	RoomNames() []string
}

// Server wraps the MCP server with light control tools
type Server struct {
	mcpServer  *server.MCPServer
	controller Controller
	maxLightID int
}

// NewServer creates a new MCP server for light control
func NewServer(controller Controller, version string, maxLightID int) *Server {
	s := &Server{
		controller: controller,
		maxLightID: maxLightID,
	}

	s.mcpServer = server.NewMCPServer(
		"lightctl",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// ServeStdio serves MCP over stdin/stdout until ctx is done or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(stdlog.New(log.Logger, "", 0))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// HTTPHandler returns the streamable HTTP transport mounted at path.
func (s *Server) HTTPHandler(path string) http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(path))
}
