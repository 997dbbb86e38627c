package hue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock advances only when someone sleeps on it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// bridgeCall is one request observed by fakeBridge.
type bridgeCall struct {
	Method string
	Path   string
	Body   string
	At     time.Time
}

// bridgeReply is what the fake bridge answers; a non-nil Err simulates a
// transport failure.
type bridgeReply struct {
	Status int
	Body   string
	Err    error
}

var errConnRefused = errors.New("dial tcp 192.0.2.1:80: connect: connection refused")

// fakeBridge is an http.RoundTripper standing in for the bridge.
type fakeBridge struct {
	mu      sync.Mutex
	clock   *fakeClock
	calls   []bridgeCall
	handler func(method, path, body string) bridgeReply
}

func (b *fakeBridge) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	path := strings.TrimPrefix(req.URL.Path, "/api/testtoken/")

	b.mu.Lock()
	b.calls = append(b.calls, bridgeCall{Method: req.Method, Path: path, Body: body, At: b.clock.Now()})
	handler := b.handler
	b.mu.Unlock()

	reply := bridgeReply{Status: http.StatusOK, Body: `[]`}
	if handler != nil {
		reply = handler(req.Method, path, body)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &http.Response{
		StatusCode: reply.Status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(reply.Body)),
		Request:    req,
	}, nil
}

func (b *fakeBridge) Calls() []bridgeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bridgeCall(nil), b.calls...)
}

func ok(body string) bridgeReply {
	return bridgeReply{Status: http.StatusOK, Body: body}
}

func successReply(path string) bridgeReply {
	return ok(`[{"success":{"/` + path + `":true}}]`)
}

func newTestClient(t *testing.T, cfg Config, handler func(method, path, body string) bridgeReply) (*Client, *fakeBridge, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	bridge := &fakeBridge{clock: clock, handler: handler}
	cfg.Bridge = "bridge.local"
	cfg.Token = "testtoken"
	if cfg.MaxLightID == 0 {
		cfg.MaxLightID = 17
	}

	c := NewClient(cfg, WithClock(clock), WithHTTPClient(&http.Client{Transport: bridge}))
	t.Cleanup(func() { c.Close() })
	return c, bridge, clock
}

func intPtr(v int) *int {
	return &v
}
