package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/api"
	"github.com/dokzlo13/lightctl/internal/config"
	"github.com/dokzlo13/lightctl/internal/hue"
	"github.com/dokzlo13/lightctl/internal/ledger"
	"github.com/dokzlo13/lightctl/internal/lights"
)

// APIService serves the REST API.
type APIService struct {
	cfg    *config.Config
	router *api.Router
	server *http.Server
}

// NewAPIService creates the REST API service. history may be nil.
func NewAPIService(cfg *config.Config, manager *lights.Manager, client *hue.Client, history *ledger.Ledger) *APIService {
	deps := api.Deps{
		Controller:  manager,
		Bridge:      client,
		CORSOrigins: cfg.API.CORSOrigins,
	}
	// Leave the interface nil rather than holding a nil *Ledger
	if history != nil {
		deps.History = history
	}

	return &APIService{
		cfg:    cfg,
		router: api.NewRouter(deps),
	}
}

// Handler returns the routed handler, for tests.
func (s *APIService) Handler() http.Handler {
	return s.router.Handler()
}

// Start begins serving if the API is enabled. A listener failure calls onExit.
func (s *APIService) Start(ctx context.Context, onExit func(error)) {
	if !s.cfg.API.Enabled {
		return
	}

	s.server = &http.Server{
		Addr:    s.cfg.API.Addr(),
		Handler: s.router.Handler(),
	}

	log.Info().Str("addr", s.server.Addr).Msg("Starting REST API server")

	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("REST API server error")
			if onExit != nil {
				onExit(err)
			}
		}
	}()
}

func (s *APIService) shutdown() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("REST API server shutdown error")
	}
}

// Close stops the server.
func (s *APIService) Close() {
	s.shutdown()
}
