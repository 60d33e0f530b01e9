// Package loader handles configuration file loading, validation, and application.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Processing include directives
//   - Converting the file format into the options of store, manager, handler
//     and server
//   - Seeding the inventory tree of an empty database
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/handler"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/server"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

var log = logging.Component("loader")

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := processIncludes(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document on top of DefaultConfig.
// ${VAR} references are expanded from the environment first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// processIncludes loads included files and appends their seed inventory.
func processIncludes(cfg *Config, baseDir string) error {
	for _, pattern := range cfg.Include {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, match := range matches {
			if err := loadInclude(cfg, match); err != nil {
				return fmt.Errorf("load include %q: %w", match, err)
			}
		}
	}
	return nil
}

// loadInclude loads a single include file and merges it into the config.
// Only the seed section of an include is used.
func loadInclude(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial struct {
		Seed []*SeedStorage `yaml:"seed"`
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &partial); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	cfg.Seed = append(cfg.Seed, partial.Seed...)
	return nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Listen == "" {
		errs.AddField("listen", "cannot be empty")
	}
	if cfg.MaxMessageSize < 0 {
		errs.AddField("max_message_size", "must not be negative")
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		errs.AddField("tls", "cert_file and key_file must be set together")
	}

	seen := make(map[string]bool)
	for i, t := range cfg.Auth.Tokens {
		if t.ID == "" {
			errs.AddField(fmt.Sprintf("auth.tokens[%d].id", i), "cannot be empty")
		} else if seen[t.ID] {
			errs.AddField(fmt.Sprintf("auth.tokens[%d].id", i), fmt.Sprintf("duplicate id %q", t.ID))
		}
		seen[t.ID] = true
		if t.Token == "" {
			errs.AddField(fmt.Sprintf("auth.tokens[%d].token", i), "cannot be empty")
		}
	}
	if cfg.Auth.RateLimitPerMinute < 0 {
		errs.AddField("auth.rate_limit_per_minute", "must not be negative")
	}
	if cfg.Session.AuthTimeoutSec < 0 || cfg.Session.AuthTimeoutSec > 300 {
		errs.AddField("session.auth_timeout_sec", "must be between 0 and 300")
	}

	if cfg.Database.Path == "" {
		errs.AddField("database.path", "cannot be empty")
	}
	if cfg.Database.QueryTimeout < 0 {
		errs.AddField("database.query_timeout", "must not be negative")
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		errs.AddField("logging.level", err.Error())
	}

	if cfg.Tree.DefaultDepth < 0 || cfg.Tree.DefaultDepth > config.MaxTreeDepth {
		errs.AddField("tree.default_depth", fmt.Sprintf("must be between 0 and %d", config.MaxTreeDepth))
	}
	if _, err := manager.ParseCyclePolicy(cfg.Tree.CyclePolicy); err != nil {
		errs.AddField("tree.cycle_policy", fmt.Sprintf("unknown policy %q", cfg.Tree.CyclePolicy))
	}

	for i, s := range cfg.Seed {
		validateSeedStorage(errs, fmt.Sprintf("seed[%d]", i), s)
	}

	return errs.Err()
}

func validateSeedStorage(errs *errors.ValidationErrors, path string, s *SeedStorage) {
	if s == nil || s.Name == "" {
		errs.AddField(path+".name", "cannot be empty")
		return
	}
	for i, child := range s.Storages {
		validateSeedStorage(errs, fmt.Sprintf("%s.storages[%d]", path, i), child)
	}
	for i, sp := range s.Spaces {
		spPath := fmt.Sprintf("%s.spaces[%d]", path, i)
		if sp == nil || sp.Name == "" {
			errs.AddField(spPath+".name", "cannot be empty")
			continue
		}
		for j, p := range sp.Products {
			if p == nil || p.Name == "" {
				errs.AddField(fmt.Sprintf("%s.products[%d].name", spPath, j), "cannot be empty")
			}
		}
	}
}

// =============================================================================
// Conversion: Config → component options
// =============================================================================

// StoreConfig converts the database section into store options.
func (c *Config) StoreConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Path = c.Database.Path
	if cfg.Path == ":memory:" {
		cfg.Path = ""
	}
	if c.Database.MaxOpenConns > 0 {
		cfg.MaxOpenConns = c.Database.MaxOpenConns
	}
	if c.Database.QueryTimeout > 0 {
		cfg.QueryTimeout = c.Database.QueryTimeout.Duration()
	}
	return cfg
}

// ManagerConfig converts the tree section into engine options.
func (c *Config) ManagerConfig() (manager.Config, error) {
	policy, err := manager.ParseCyclePolicy(c.Tree.CyclePolicy)
	if err != nil {
		return manager.Config{}, err
	}
	return manager.Config{
		DefaultDepth: c.Tree.DefaultDepth,
		CyclePolicy:  policy,
	}, nil
}

// SessionConfig converts the auth and session sections into session
// manager options.
func (c *Config) SessionConfig() *handler.SessionManagerConfig {
	tokens := make([]handler.TokenConfig, 0, len(c.Auth.Tokens))
	for _, t := range c.Auth.Tokens {
		tokens = append(tokens, handler.TokenConfig{ID: t.ID, Token: t.Token})
	}
	return &handler.SessionManagerConfig{
		AuthTimeout:     time.Duration(c.Session.AuthTimeoutSec) * time.Second,
		CleanupInterval: time.Duration(c.Session.CleanupIntervalSec) * time.Second,
		Tokens:          tokens,
	}
}

// ServerConfig builds the wire server options around h.
func (c *Config) ServerConfig(h *handler.Handler) *server.Config {
	return &server.Config{
		Handler:          h,
		Sessions:         h.SessionManager(),
		Listen:           c.Listen,
		TLSCertFile:      c.TLS.CertFile,
		TLSKeyFile:       c.TLS.KeyFile,
		MaxMessageSize:   int(c.MaxMessageSize.Bytes()),
		AuthFailureLimit: c.Auth.RateLimitPerMinute,
	}
}

// =============================================================================
// Apply
// =============================================================================

// Inventory is a gateway that can tell whether it holds any storage.
// Both store.Store and store.MemStore qualify.
type Inventory interface {
	store.Gateway
	IsEmpty(ctx context.Context) (bool, error)
}

// ApplyResult holds statistics from seeding.
type ApplyResult struct {
	Skipped           bool
	StoragesCreated   int
	SpacesCreated     int
	ProductsCreated   int
	AttributesCreated int
	Errors            []string
}

// Apply creates the seed inventory through mgr when inv holds no storage.
// A populated database is left untouched and the result is marked Skipped.
// A failing entry is recorded and its subtree skipped; the rest is applied.
func Apply(ctx context.Context, cfg *Config, mgr *manager.Manager, inv Inventory) (*ApplyResult, error) {
	result := &ApplyResult{}
	if len(cfg.Seed) == 0 {
		return result, nil
	}

	empty, err := inv.IsEmpty(ctx)
	if err != nil {
		return nil, fmt.Errorf("check inventory: %w", err)
	}
	if !empty {
		result.Skipped = true
		log.Info("inventory not empty, seed skipped")
		return result, nil
	}

	for _, s := range cfg.Seed {
		applyStorage(ctx, mgr, s, "", s.Name, result)
	}

	log.Info("seed applied",
		"storages", result.StoragesCreated,
		"spaces", result.SpacesCreated,
		"products", result.ProductsCreated,
		"attributes", result.AttributesCreated,
		"errors", len(result.Errors))

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("apply had %d errors", len(result.Errors))
	}
	return result, nil
}

func applyStorage(ctx context.Context, mgr *manager.Manager, s *SeedStorage, parentID, path string, result *ApplyResult) {
	node, err := mgr.Storages.Create(ctx, manager.StorageInput{
		Name:        s.Name,
		Description: s.Description,
		ParentID:    parentID,
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("create storage %s: %v", path, err))
		return
	}
	result.StoragesCreated++
	id := node.Storage.ID

	for _, sp := range s.Spaces {
		applySpace(ctx, mgr, sp, id, path+"/"+sp.Name, result)
	}
	for _, child := range s.Storages {
		applyStorage(ctx, mgr, child, id, path+"/"+child.Name, result)
	}
}

func applySpace(ctx context.Context, mgr *manager.Manager, sp *SeedSpace, storageID, path string, result *ApplyResult) {
	node, err := mgr.Spaces.Create(ctx, manager.SpaceInput{
		Name:        sp.Name,
		Size:        sp.Size,
		Description: sp.Description,
		StorageID:   storageID,
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("create space %s: %v", path, err))
		return
	}
	result.SpacesCreated++

	for _, p := range sp.Products {
		attrs, err := convertAttributes(p.Attributes)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("product %s/%s: %v", path, p.Name, err))
			continue
		}
		_, err = mgr.Products.Create(ctx, manager.ProductInput{
			Name:        p.Name,
			Price:       p.Price,
			Description: p.Description,
			SpaceID:     node.Space.ID,
			Attributes:  attrs,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create product %s/%s: %v", path, p.Name, err))
			continue
		}
		result.ProductsCreated++
		result.AttributesCreated += len(attrs)
	}
}

// convertAttributes converts YAML scalars to typed values.
func convertAttributes(in map[string]any) (map[string]store.Value, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]store.Value, len(in))
	for k, raw := range in {
		v, err := store.ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
