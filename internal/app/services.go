package app

import (
	"context"

	"github.com/dokzlo13/lightctl/internal/config"
	"github.com/dokzlo13/lightctl/internal/db"
	"github.com/dokzlo13/lightctl/internal/ledger"
	"github.com/dokzlo13/lightctl/internal/lights"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure; DB and Ledger are nil when the ledger is disabled.
	DB     *db.DB
	Ledger *ledger.Ledger

	Hue     *HueService
	Manager *lights.Manager

	// Surfaces
	API           *APIService
	MCP           *MCPService
	LedgerJanitor *LedgerCleanupService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	opts := lights.Options{
		Rooms:       cfg.Rooms,
		AllLightIDs: allLightIDs(cfg),
	}

	if cfg.Ledger.IsEnabled() {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		opts.Recorder = s.Ledger
	}

	s.Hue = NewHueService(cfg)
	s.Manager = lights.NewManager(s.Hue.Client, opts)

	s.API = NewAPIService(cfg, s.Manager, s.Hue.Client, s.Ledger)
	s.MCP = NewMCPService(cfg, s.Manager)
	s.LedgerJanitor = NewLedgerCleanupService(cfg, s.Ledger)

	return s, nil
}

// allLightIDs is the lights_affected list of the "all" room: every light
// named in the configuration, or the full valid range if none are.
func allLightIDs(cfg *config.Config) []int {
	if ids := cfg.KnownLightIDs(); len(ids) > 0 {
		return ids
	}
	ids := make([]int, cfg.Hue.MaxLightID)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// Start starts all services in the correct order.
// onExit is called when a service ends the process.
func (s *Services) Start(ctx context.Context, onExit func(error)) error {
	// Connectivity check; a failure is logged, not fatal
	s.Hue.Start(ctx)

	s.LedgerJanitor.Start(ctx)
	s.API.Start(ctx, onExit)
	s.MCP.Start(ctx, onExit)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MCP != nil {
		s.MCP.Close()
	}
	if s.API != nil {
		s.API.Close()
	}
	if s.Hue != nil {
		s.Hue.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
