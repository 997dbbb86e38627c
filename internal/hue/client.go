package hue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// Config holds everything the client needs, passed in as plain values.
type Config struct {
	Bridge string // host or host:port of the bridge
	Token  string // v1 API username

	Transport   TransportConfig
	Rates       RateConfig
	Retry       RetryPolicy
	Concurrency int

	// MaxLightID bounds valid light IDs; 0 accepts any positive ID.
	MaxLightID int
	// CacheTTL enables the read cache when positive.
	CacheTTL time.Duration
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	clock      Clock
	httpClient *http.Client
}

// WithClock injects the clock used for rate limiting and backoff.
func WithClock(clock Clock) Option {
	return func(o *clientOptions) { o.clock = clock }
}

// WithHTTPClient replaces the pooled transport, e.g. with a test double.
func WithHTTPClient(h *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = h }
}

// Client is the bridge facade. One Client owns the transport pool and both
// rate-limit buckets; it is safe for concurrent use.
type Client struct {
	bridge     string
	httpClient *http.Client
	exec       *Executor
	fanOut     *FanOut
	cache      *LightCache
	maxLightID int
}

// NewClient creates a client. The transport pool is created here, once.
func NewClient(cfg Config, opts ...Option) *Client {
	o := clientOptions{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = NewTransport(cfg.Transport)
	}

	exec := NewExecutor(o.httpClient, NewLimiter(cfg.Rates, o.clock), BaseURL(cfg.Bridge, cfg.Token), cfg.Retry, o.clock)

	c := &Client{
		bridge:     cfg.Bridge,
		httpClient: o.httpClient,
		exec:       exec,
		fanOut:     NewFanOut(cfg.Concurrency, exec.Policy().OperationTimeout),
		maxLightID: cfg.MaxLightID,
	}
	if cfg.CacheTTL > 0 {
		c.cache = NewLightCache(cfg.CacheTTL)
	}
	return c
}

// Close releases pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ValidateLightID checks id against the configured range without any
// network activity.
func (c *Client) ValidateLightID(id int) error {
	if id < 1 || (c.maxLightID > 0 && id > c.maxLightID) {
		if c.maxLightID > 0 {
			return validationErrorf("light ID %d is not valid. Must be 1-%d", id, c.maxLightID)
		}
		return validationErrorf("light ID %d is not valid. Must be positive", id)
	}
	return nil
}

// GetLights returns every light known to the bridge.
func (c *Client) GetLights(ctx context.Context) (map[int]Light, error) {
	if c.cache != nil {
		if lights, ok := c.cache.All(); ok {
			return lights, nil
		}
	}

	raw, err := c.exec.Execute(ctx, Request{Method: http.MethodGet, Path: "lights", Class: ClassRead})
	if err != nil {
		return nil, err
	}

	var wire map[string]wireLight
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &Error{Kind: KindBridge, Op: "GET lights", Message: "failed to decode lights", Err: err}
	}

	lights := make(map[int]Light, len(wire))
	for key, w := range wire {
		id, err := strconv.Atoi(key)
		if err != nil {
			log.Debug().Str("key", key).Msg("Skipping light with non-numeric ID")
			continue
		}
		lights[id] = w.toModel(id)
	}

	if c.cache != nil {
		c.cache.SetAll(lights)
	}
	return lights, nil
}

// GetLight returns one light. An ID the bridge does not know fails with a
// ValidationError.
func (c *Client) GetLight(ctx context.Context, id int) (*Light, error) {
	if err := c.ValidateLightID(id); err != nil {
		return nil, err
	}
	if c.cache != nil {
		if l, ok := c.cache.Get(id); ok {
			return &l, nil
		}
	}

	l, err := c.fetchLight(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(*l)
	}
	return l, nil
}

// fetchLight always reads from the bridge.
func (c *Client) fetchLight(ctx context.Context, id int) (*Light, error) {
	path := fmt.Sprintf("lights/%d", id)
	raw, err := c.exec.Execute(ctx, Request{Method: http.MethodGet, Path: path, Class: ClassRead})
	if err != nil {
		return nil, err
	}

	var w wireLight
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &Error{Kind: KindBridge, Op: "GET " + path, Message: "failed to decode light", Err: err}
	}
	l := w.toModel(id)
	return &l, nil
}

// SetLightState applies desired to one light. Input is validated before any
// network call. Toggle reads the current state and then writes its negation;
// the two calls are not atomic and an external change in between is lost
// (last write wins).
func (c *Client) SetLightState(ctx context.Context, id int, desired DesiredState) (*Outcome, error) {
	if err := c.ValidateLightID(id); err != nil {
		return nil, err
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	sent, resp, err := c.applyLight(ctx, id, desired)
	out := &Outcome{LightID: id, Sent: sent, Response: resp, Err: err, Success: err == nil}
	return out, err
}

func (c *Client) applyLight(ctx context.Context, id int, desired DesiredState) (*StateUpdate, json.RawMessage, error) {
	currentOn, includeCT := false, true

	if desired.needsRead() {
		light, err := c.fetchLight(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		currentOn = light.On
		includeCT = light.SupportsColorTemp
	}

	update := buildUpdate(desired, currentOn, includeCT)
	resp, err := c.exec.Execute(ctx, Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("lights/%d/state", id),
		Body:   update,
		Class:  ClassLight,
	})
	if c.cache != nil {
		c.cache.Invalidate(id)
	}
	if err != nil {
		return nil, nil, err
	}
	return &update, resp, nil
}

// SetGroupAction applies desired to a bridge group with one group-class
// call. Toggle first reads the group's any_on flag.
func (c *Client) SetGroupAction(ctx context.Context, groupID int, desired DesiredState) (*Outcome, error) {
	if groupID < 0 {
		return nil, validationErrorf("group ID %d is not valid", groupID)
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	out := &Outcome{GroupID: groupID, IsGroup: true}

	currentOn := false
	if desired.Action == ActionToggle {
		anyOn, err := c.groupAnyOn(ctx, groupID)
		if err != nil {
			out.Err = err
			return out, err
		}
		currentOn = anyOn
	}

	update := buildUpdate(desired, currentOn, true)
	resp, err := c.exec.Execute(ctx, Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("groups/%d/action", groupID),
		Body:   update,
		Class:  ClassGroup,
	})
	if c.cache != nil {
		c.cache.Clear()
	}
	if err != nil {
		out.Err = err
		return out, err
	}

	out.Sent = &update
	out.Response = resp
	out.Success = true
	return out, nil
}

func (c *Client) groupAnyOn(ctx context.Context, groupID int) (bool, error) {
	path := fmt.Sprintf("groups/%d", groupID)
	raw, err := c.exec.Execute(ctx, Request{Method: http.MethodGet, Path: path, Class: ClassRead})
	if err != nil {
		return false, err
	}

	var group huego.Group
	if err := json.Unmarshal(raw, &group); err != nil {
		return false, &Error{Kind: KindBridge, Op: "GET " + path, Message: "failed to decode group", Err: err}
	}
	if group.GroupState == nil {
		return false, nil
	}
	return group.GroupState.AnyOn, nil
}

// ControlRoom applies desired to a room. Explicit light lists fan out one
// light-class call per light; the all-lights target is one group call to
// group 0. Per-light failures are reported in the aggregate, not returned;
// the error is only set for invalid input.
func (c *Client) ControlRoom(ctx context.Context, target Target, desired DesiredState) (*Aggregate, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	if target.All {
		out, _ := c.SetGroupAction(ctx, AllLightsGroup, desired)
		return &Aggregate{Group: true, Outcomes: []Outcome{*out}}, nil
	}

	if len(target.LightIDs) == 0 {
		return nil, validationErrorf("room has no lights")
	}
	for _, id := range target.LightIDs {
		if err := c.ValidateLightID(id); err != nil {
			return nil, err
		}
	}

	agg := c.fanOut.Run(ctx, target.LightIDs, func(ctx context.Context, id int) (*StateUpdate, json.RawMessage, error) {
		return c.applyLight(ctx, id, desired)
	})

	log.Debug().
		Ints("lights", target.LightIDs).
		Int("succeeded", agg.Succeeded()).
		Int("failed", agg.Failed()).
		Msg("Room fan-out completed")

	return agg, nil
}

// BridgeConfig reads the bridge's base configuration.
func (c *Client) BridgeConfig(ctx context.Context) (*BridgeInfo, error) {
	raw, err := c.exec.Execute(ctx, Request{Method: http.MethodGet, Path: "config", Class: ClassRead})
	if err != nil {
		return nil, err
	}

	var cfg huego.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &Error{Kind: KindBridge, Op: "GET config", Message: "failed to decode bridge config", Err: err}
	}
	return bridgeInfoFromConfig(&cfg), nil
}

// TestConnection reports whether the bridge answers. An unreachable bridge
// is a normal negative result: false plus its classification.
func (c *Client) TestConnection(ctx context.Context) (bool, error) {
	if _, err := c.BridgeConfig(ctx); err != nil {
		log.Debug().Err(err).Str("bridge", c.bridge).Msg("Bridge connectivity check failed")
		return false, err
	}
	return true, nil
}
