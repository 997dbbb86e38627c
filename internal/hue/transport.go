package hue

import (
	"net"
	"net/http"
	"time"
)

// TransportConfig sizes the shared connection pool.
type TransportConfig struct {
	ConnectTimeout     time.Duration
	ReadTimeout        time.Duration
	MaxConnections     int
	MaxIdleConnections int
}

// DefaultTransportConfig returns the pool defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        10 * time.Second,
		MaxConnections:     10,
		MaxIdleConnections: 5,
	}
}

func (c TransportConfig) withDefaults() TransportConfig {
	d := DefaultTransportConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = d.MaxConnections
	}
	if c.MaxIdleConnections <= 0 {
		c.MaxIdleConnections = d.MaxIdleConnections
	}
	return c
}

// NewTransport builds the single pooled HTTP client used for every bridge
// call. It is safe for concurrent use and must be created once per process.
func NewTransport(cfg TransportConfig) *http.Client {
	cfg = cfg.withDefaults()

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	// The v1 API is plain HTTP on the local network, so no TLS config here.
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxIdleConnections,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnections,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &http.Client{
		// Per-attempt cap; the operation deadline is enforced by the executor.
		Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		Transport: transport,
	}
}
