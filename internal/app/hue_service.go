package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightctl/internal/config"
	"github.com/dokzlo13/lightctl/internal/hue"
)

// HueService owns the bridge client: transport pool, rate limiter and cache.
type HueService struct {
	cfg *config.Config

	Client *hue.Client
}

// NewHueService creates the bridge client. Nothing is contacted until Start.
func NewHueService(cfg *config.Config) *HueService {
	return &HueService{
		cfg:    cfg,
		Client: hue.NewClient(ClientConfig(cfg)),
	}
}

// ClientConfig maps the file configuration onto the client's plain values.
func ClientConfig(cfg *config.Config) hue.Config {
	h := cfg.Hue

	c := hue.Config{
		Bridge: h.Bridge,
		Token:  h.Token,
		Transport: hue.TransportConfig{
			ConnectTimeout:     h.ConnectTimeout.Duration(),
			ReadTimeout:        h.ReadTimeout.Duration(),
			MaxConnections:     h.MaxConnections,
			MaxIdleConnections: h.MaxKeepalive,
		},
		Rates: hue.RateConfig{
			LightPerSecond: h.LightRateLimit,
			GroupPerSecond: h.GroupRateLimit,
		},
		Retry: hue.RetryPolicy{
			MaxAttempts:      h.MaxAttempts,
			BaseDelay:        h.RetryBaseDelay.Duration(),
			OperationTimeout: h.OperationTimeout.Duration(),
		},
		Concurrency: h.Concurrency,
		MaxLightID:  h.MaxLightID,
	}
	if cfg.Cache.Enabled {
		c.CacheTTL = cfg.Cache.TTL.Duration()
	}
	return c
}

// Start checks bridge connectivity. An unreachable bridge is logged and the
// application keeps running; every operation reports its own failure.
func (s *HueService) Start(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Hue.OperationTimeout.Duration())
	defer cancel()

	info, err := s.Client.BridgeConfig(ctx)
	if err != nil {
		log.Warn().Err(err).Str("bridge", s.cfg.Hue.Bridge).Msg("Hue bridge not reachable at startup")
		return
	}

	log.Info().
		Str("bridge", s.cfg.Hue.Bridge).
		Str("name", info.Name).
		Str("api_version", info.APIVersion).
		Msg("Connected to Hue bridge")
}

// Close releases idle pooled connections.
func (s *HueService) Close() {
	if s.Client != nil {
		s.Client.Close()
	}
}
