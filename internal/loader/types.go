// Package loader - Configuration Types
//
// Defines the YAML configuration structure for lagerd.
//
//	listen / http_listen   wire and REST listeners
//	tls, auth, session     transport security and token checks
//	database               DuckDB file and transaction timeout
//	logging                level and format
//	tree                   render depth and cycle policy of the engine
//	seed                   inventory created on an empty database
package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for lagerd.
type Config struct {
	// Listen is the wire protocol listen address.
	// Default: "0.0.0.0:9170"
	Listen string `yaml:"listen"`

	// HTTPListen is the REST listen address. Empty disables REST.
	// Default: "0.0.0.0:8080"
	HTTPListen string `yaml:"http_listen"`

	// MaxMessageSize limits a single wire envelope ("16MB", 1048576).
	MaxMessageSize ByteSize `yaml:"max_message_size"`

	// TLS configures transport layer security of the wire listener.
	TLS TLSConfig `yaml:"tls"`

	// Auth configures authentication tokens and rate limiting.
	Auth AuthConfig `yaml:"auth"`

	// Session configures client session management.
	Session SessionConfig `yaml:"session"`

	// Database configures the DuckDB store.
	Database DatabaseConfig `yaml:"database"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Tree configures the hierarchy engine.
	Tree TreeConfig `yaml:"tree"`

	// Shutdown configures graceful shutdown behavior.
	Shutdown ShutdownConfig `yaml:"shutdown"`

	// Seed is the inventory created when the database holds no storage.
	Seed []*SeedStorage `yaml:"seed"`

	// Include lists additional files whose seed entries are appended.
	// Supports glob patterns. Relative to this file's directory.
	Include []string `yaml:"include"`
}

// =============================================================================
// Server Configuration
// =============================================================================

// TLSConfig configures transport layer security.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	// Leave empty to disable TLS.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// Enabled reports whether both certificate and key are configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// AuthConfig configures authentication.
type AuthConfig struct {
	// RateLimitPerMinute is the max failed auth attempts per IP per minute.
	// Default: 5
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Tokens is the list of accepted tokens. No tokens disables
	// authentication.
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig defines an authentication token.
type TokenConfig struct {
	// ID names the token in logs (not secret).
	ID string `yaml:"id"`

	// Token is the secret value. Use environment variables: "${LAGER_TOKEN}"
	Token string `yaml:"token"`
}

// SessionConfig configures client session management.
type SessionConfig struct {
	// AuthTimeoutSec is the max time for authentication after connect.
	// Range: 1-300, Default: 30
	AuthTimeoutSec int `yaml:"auth_timeout_sec"`

	// CleanupIntervalSec is how often closed sessions are swept.
	// Default: 60
	CleanupIntervalSec int `yaml:"cleanup_interval_sec"`
}

// ShutdownConfig configures graceful shutdown.
type ShutdownConfig struct {
	// DrainTimeout is how long servers wait for in-flight requests.
	// Default: 10s
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// =============================================================================
// Engine Configuration
// =============================================================================

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file path. ":memory:" keeps everything in memory.
	// Default: "lager.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 16
	MaxOpenConns int `yaml:"max_open_conns"`

	// QueryTimeout bounds a transaction started without a deadline.
	// Default: 30s
	QueryTimeout Duration `yaml:"query_timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// JSON switches from text to JSON output.
	JSON bool `yaml:"json"`
}

// TreeConfig configures the hierarchy engine.
type TreeConfig struct {
	// DefaultDepth is the render depth used when a request gives none.
	// Range: 0-64, Default: 3
	DefaultDepth int `yaml:"default_depth"`

	// CyclePolicy is "rescue" or "reject". Default: rescue
	CyclePolicy string `yaml:"cycle_policy"`
}

// =============================================================================
// Seed Inventory
// =============================================================================

// SeedStorage is a storage created by Apply, with its subtree.
type SeedStorage struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Storages    []*SeedStorage `yaml:"storages"`
	Spaces      []*SeedSpace   `yaml:"spaces"`
}

// SeedSpace is a space created by Apply.
type SeedSpace struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Size        *float64       `yaml:"size"`
	Products    []*SeedProduct `yaml:"products"`
}

// SeedProduct is a product created by Apply. Attribute values keep their
// YAML type: strings become text, numbers number, true/false bool.
type SeedProduct struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Price       *float64       `yaml:"price"`
	Attributes  map[string]any `yaml:"attributes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:         config.DefaultListenAddress,
		HTTPListen:     config.DefaultHTTPListenAddress,
		MaxMessageSize: ByteSize(config.DefaultMaxMessageSize),

		Auth: AuthConfig{
			RateLimitPerMinute: config.DefaultAuthFailureLimit,
		},

		Session: SessionConfig{
			AuthTimeoutSec:     config.DefaultAuthTimeoutSec,
			CleanupIntervalSec: 60,
		},

		Database: DatabaseConfig{
			Path:         config.DefaultDatabasePath,
			MaxOpenConns: config.DefaultMaxOpenConns,
			QueryTimeout: Duration(config.DefaultQueryTimeout),
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		Tree: TreeConfig{
			DefaultDepth: config.DefaultTreeDepth,
			CyclePolicy:  config.DefaultCyclePolicy,
		},

		Shutdown: ShutdownConfig{
			DrainTimeout: Duration(config.DefaultDrainTimeout),
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Accepts "30s", "1m30s" or a plain number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a size in bytes that can be unmarshaled from YAML.
// Supports: "16MB", "1GB", "512KB", or plain bytes.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var i int64
	if err := unmarshal(&i); err == nil {
		*b = ByteSize(i)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	size, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// byteUnits is ordered longest suffix first so "MB" is not read as "B".
var byteUnits = []struct {
	suffix string
	mult   int64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseByteSize parses a size string like "100MB" or "1GB".
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse byte size %q: %w", s, err)
			}
			return n * u.mult, nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse byte size %q: %w", s, err)
	}
	return n, nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}
