package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AllRoom is the reserved room name addressing every light through group 0.
const AllRoom = "all"

// Validation errors
var (
	ErrNoBridge      = errors.New("hue.bridge is required")
	ErrInvalidToken  = errors.New("hue.token must be at least 10 characters")
	ErrReservedRoom  = errors.New("room name 'all' is reserved")
	ErrInvalidMCP    = errors.New("mcp.transport must be one of stdio, http, off")
	ErrOutOfRange    = errors.New("value out of range")
	ErrInvalidLights = errors.New("invalid light ID")
)

// Config represents the application configuration
type Config struct {
	Hue             HueConfig        `yaml:"hue"`
	Rooms           map[string][]int `yaml:"rooms"`
	Lights          map[string]int   `yaml:"lights"`
	Database        DatabaseConfig   `yaml:"database"`
	Log             LogConfig        `yaml:"log"`
	Cache           CacheConfig      `yaml:"cache"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	API             APIConfig        `yaml:"api"`
	MCP             MCPConfig        `yaml:"mcp"`
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge string `yaml:"bridge"`
	Token  string `yaml:"token"`

	// Transport pool
	ConnectTimeout Duration `yaml:"connect_timeout"` // 1s-30s (default: 5s)
	ReadTimeout    Duration `yaml:"read_timeout"`    // 1s-60s (default: 10s)
	MaxConnections int      `yaml:"max_connections"` // 1-50 (default: 10)
	MaxKeepalive   int      `yaml:"max_keepalive"`   // 1-20 (default: 5)

	// Bridge ceilings, operations per second
	LightRateLimit float64 `yaml:"light_rate_limit"` // 1-100 (default: 10)
	GroupRateLimit float64 `yaml:"group_rate_limit"` // 0.1-10 (default: 1)

	// Retry policy
	MaxAttempts      int      `yaml:"max_attempts"`      // default: 3
	RetryBaseDelay   Duration `yaml:"retry_base_delay"`  // default: 500ms
	OperationTimeout Duration `yaml:"operation_timeout"` // default: 30s

	Concurrency int `yaml:"concurrency"`  // Room fan-out limit (default: 5)
	MaxLightID  int `yaml:"max_light_id"` // Highest valid light ID (default: 17)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"` // Emit JSON lines instead of console output
}

// CacheConfig contains light read cache settings
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"` // If false, always fetch fresh state (default: false)
	TTL     Duration `yaml:"ttl"`     // Only used if enabled (default: 2s)
}

// LedgerConfig contains operation ledger settings
type LedgerConfig struct {
	Enabled         *bool    `yaml:"enabled"` // default: true
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// IsEnabled returns whether operations are recorded.
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// APIConfig contains REST API server settings
type APIConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns the listen address.
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MCPConfig contains MCP tool server settings
type MCPConfig struct {
	Transport string `yaml:"transport"` // stdio, http or off (default: stdio)
	Host      string `yaml:"host"`      // http transport only
	Port      int    `yaml:"port"`      // http transport only
	Path      string `yaml:"path"`      // http endpoint path (default: /mcp)
}

// Addr returns the listen address of the http transport.
func (c *MCPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultRooms returns the built-in room layout used when none is configured.
func DefaultRooms() map[string][]int {
	return map[string][]int{
		"kitchen":     {10, 12, 13, 17},
		"bedroom":     {1, 4},
		"office":      {7},
		"basement":    {5, 6, 14, 15, 16},
		"living_room": {3},
	}
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration bytes and applies defaults. It does not
// validate; call Validate on the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./lightctl.sqlite"
	}

	// Hue defaults
	if cfg.Hue.ConnectTimeout == 0 {
		cfg.Hue.ConnectTimeout = Duration(5 * time.Second)
	}
	if cfg.Hue.ReadTimeout == 0 {
		cfg.Hue.ReadTimeout = Duration(10 * time.Second)
	}
	if cfg.Hue.MaxConnections == 0 {
		cfg.Hue.MaxConnections = 10
	}
	if cfg.Hue.MaxKeepalive == 0 {
		cfg.Hue.MaxKeepalive = 5
	}
	if cfg.Hue.LightRateLimit == 0 {
		cfg.Hue.LightRateLimit = 10
	}
	if cfg.Hue.GroupRateLimit == 0 {
		cfg.Hue.GroupRateLimit = 1
	}
	if cfg.Hue.MaxAttempts == 0 {
		cfg.Hue.MaxAttempts = 3
	}
	if cfg.Hue.RetryBaseDelay == 0 {
		cfg.Hue.RetryBaseDelay = Duration(500 * time.Millisecond)
	}
	if cfg.Hue.OperationTimeout == 0 {
		cfg.Hue.OperationTimeout = Duration(30 * time.Second)
	}
	if cfg.Hue.Concurrency == 0 {
		cfg.Hue.Concurrency = 5
	}
	if cfg.Hue.MaxLightID == 0 {
		cfg.Hue.MaxLightID = 17
	}

	if len(cfg.Rooms) == 0 {
		cfg.Rooms = DefaultRooms()
	}

	// Cache defaults - caching is OFF by default (always fetch fresh state)
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(2 * time.Second)
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// API defaults
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}

	// MCP defaults
	if cfg.MCP.Transport == "" {
		cfg.MCP.Transport = "stdio"
	}
	if cfg.MCP.Host == "" {
		cfg.MCP.Host = "127.0.0.1"
	}
	if cfg.MCP.Port == 0 {
		cfg.MCP.Port = 8000
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = "/mcp"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks required fields and value ranges.
func (cfg *Config) Validate() error {
	h := &cfg.Hue
	if strings.TrimSpace(h.Bridge) == "" {
		return ErrNoBridge
	}
	if len(h.Token) < 10 {
		return ErrInvalidToken
	}

	checks := []struct {
		name     string
		ok       bool
		expected string
	}{
		{"hue.connect_timeout", inRange(h.ConnectTimeout.Duration(), time.Second, 30*time.Second), "1s-30s"},
		{"hue.read_timeout", inRange(h.ReadTimeout.Duration(), time.Second, 60*time.Second), "1s-60s"},
		{"hue.max_connections", h.MaxConnections >= 1 && h.MaxConnections <= 50, "1-50"},
		{"hue.max_keepalive", h.MaxKeepalive >= 1 && h.MaxKeepalive <= 20, "1-20"},
		{"hue.light_rate_limit", h.LightRateLimit >= 1 && h.LightRateLimit <= 100, "1-100"},
		{"hue.group_rate_limit", h.GroupRateLimit >= 0.1 && h.GroupRateLimit <= 10, "0.1-10"},
		{"hue.max_attempts", h.MaxAttempts >= 1 && h.MaxAttempts <= 10, "1-10"},
		{"hue.concurrency", h.Concurrency >= 1 && h.Concurrency <= 50, "1-50"},
		{"hue.max_light_id", h.MaxLightID >= 1, ">= 1"},
		{"hue.operation_timeout", h.OperationTimeout.Duration() >= time.Second, ">= 1s"},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%s: %w (expected %s)", c.name, ErrOutOfRange, c.expected)
		}
	}

	for _, name := range cfg.RoomNames() {
		if strings.EqualFold(name, AllRoom) {
			return ErrReservedRoom
		}
		for _, id := range cfg.Rooms[name] {
			if id < 1 || id > h.MaxLightID {
				return fmt.Errorf("room %s: %w %d (must be 1-%d)", name, ErrInvalidLights, id, h.MaxLightID)
			}
		}
	}
	for name, id := range cfg.Lights {
		if id < 1 || id > h.MaxLightID {
			return fmt.Errorf("light %s: %w %d (must be 1-%d)", name, ErrInvalidLights, id, h.MaxLightID)
		}
	}

	switch cfg.MCP.Transport {
	case "stdio", "http", "off":
	default:
		return ErrInvalidMCP
	}
	return nil
}

func inRange(d, lo, hi time.Duration) bool {
	return d >= lo && d <= hi
}

// RoomNames returns configured room names sorted, excluding "all".
func (cfg *Config) RoomNames() []string {
	names := make([]string, 0, len(cfg.Rooms))
	for name := range cfg.Rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownLightIDs returns the sorted, de-duplicated IDs named in lights and
// rooms. Used as the light list of the "all" room.
func (cfg *Config) KnownLightIDs() []int {
	seen := make(map[int]bool)
	for _, id := range cfg.Lights {
		seen[id] = true
	}
	for _, ids := range cfg.Rooms {
		for _, id := range ids {
			seen[id] = true
		}
	}
	result := make([]int, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
