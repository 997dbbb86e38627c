package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/config"
	"github.com/dokzlo13/lightctl/internal/lights"
	"github.com/dokzlo13/lightctl/internal/mcp"
)

// MCP transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportOff   = "off"
)

// MCPService exposes the light tools over the configured MCP transport.
type MCPService struct {
	cfg    *config.Config
	server *mcp.Server
	http   *http.Server
}

// NewMCPService creates the MCP tool server.
func NewMCPService(cfg *config.Config, manager *lights.Manager) *MCPService {
	return &MCPService{
		cfg:    cfg,
		server: mcp.NewServer(manager, Version, cfg.Hue.MaxLightID),
	}
}

// Start serves the configured transport in the background. The stdio
// transport ends the process when stdin closes.
func (s *MCPService) Start(ctx context.Context, onExit func(error)) {
	switch s.cfg.MCP.Transport {
	case TransportOff:
		return
	case TransportHTTP:
		s.startHTTP(ctx, onExit)
	default:
		log.Info().Msg("Serving MCP over stdio")
		go func() {
			err := s.server.ServeStdio(ctx)
			if ctx.Err() != nil {
				return
			}
			if onExit != nil {
				onExit(err)
			}
		}()
	}
}

func (s *MCPService) startHTTP(ctx context.Context, onExit func(error)) {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.MCP.Path, s.server.HTTPHandler(s.cfg.MCP.Path))

	s.http = &http.Server{
		Addr:    s.cfg.MCP.Addr(),
		Handler: mux,
	}

	log.Info().Str("addr", s.http.Addr).Str("path", s.cfg.MCP.Path).Msg("Starting MCP HTTP server")

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("MCP HTTP server error")
			if onExit != nil {
				onExit(err)
			}
		}
	}()
}

func (s *MCPService) shutdown() {
	if s.http == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("MCP HTTP server shutdown error")
	}
}

// Close stops the HTTP transport. The stdio transport stops with its context.
func (s *MCPService) Close() {
	s.shutdown()
}
