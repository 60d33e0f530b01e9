// Package config provides configuration defaults for the inventory backend.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command line flags.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default wire protocol listen address.
	// Override via config: listen
	DefaultListenAddress = "0.0.0.0:9170"

	// DefaultHTTPListenAddress is the default REST listen address.
	// Override via config: http_listen ("" disables the REST server)
	DefaultHTTPListenAddress = "0.0.0.0:8080"

	// DefaultMaxMessageSize limits a single wire envelope to prevent OOM.
	// A full inventory tree rendered at depth 3 fits comfortably.
	// Override via config: max_message_size
	DefaultMaxMessageSize = 16 * 1024 * 1024

	// DefaultMaxRequestBody limits REST request bodies.
	DefaultMaxRequestBody = 1 * 1024 * 1024
)

// =============================================================================
// Authentication Defaults
// =============================================================================

const (
	// DefaultAuthTimeoutSec is the time a wire client has to send its first
	// authenticated request after connecting.
	DefaultAuthTimeoutSec = 30

	// DefaultAuthFailureLimit is the number of failed token checks per
	// client address before further attempts are refused.
	DefaultAuthFailureLimit = 5

	// DefaultAuthFailureWindow is the window over which failures are counted.
	DefaultAuthFailureWindow = time.Minute
)

// =============================================================================
// Database Defaults
// =============================================================================

const (
	// DefaultDatabasePath is the DuckDB file used when none is configured.
	// Override via config: database.path
	DefaultDatabasePath = "lager.db"

	// DefaultQueryTimeout bounds a single engine transaction.
	// Override via config: database.query_timeout
	DefaultQueryTimeout = 30 * time.Second

	// DefaultMaxOpenConns is the size of the database/sql connection pool.
	DefaultMaxOpenConns = 16
)

// =============================================================================
// Hierarchy Defaults
// =============================================================================

const (
	// DefaultTreeDepth is the render depth used when a request gives none.
	// Override via config: tree.default_depth
	DefaultTreeDepth = 3

	// MaxTreeDepth caps a requested render depth.
	MaxTreeDepth = 64

	// CopySuffix is appended to every name in a duplicated subtree.
	CopySuffix = " (Copy)"

	// CyclePolicyRescue reattaches the moved node's children to its former
	// parent when a move would create a cycle.
	CyclePolicyRescue = "rescue"

	// CyclePolicyReject refuses cycle-inducing moves.
	CyclePolicyReject = "reject"

	// DefaultCyclePolicy is the policy used when none is configured.
	DefaultCyclePolicy = CyclePolicyRescue
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long servers wait for in-flight requests
	// during shutdown.
	DefaultDrainTimeout = 10 * time.Second
)
