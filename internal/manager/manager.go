// Package manager provides business logic and entity management for the
// inventory backend.
//
// The four registries (storages, spaces, products, attributes) share one
// engine: every public operation runs in exactly one Gateway transaction,
// is timed into OpStats and never retries.
package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/validation"
)

type timeFunc func() time.Time

// defaultNow matches the microsecond resolution of DuckDB timestamps.
func defaultNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds engine options.
type Config struct {
	// DefaultDepth is used when a read asks for a negative depth.
	DefaultDepth int

	// CyclePolicy handles moves that would create a cycle.
	CyclePolicy CyclePolicy

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultDepth: config.DefaultTreeDepth,
		CyclePolicy:  RescueChildren{},
	}
}

// =============================================================================
// Manager
// =============================================================================

// Manager bundles the registries that operate on one gateway.
type Manager struct {
	Storages   *StorageManager
	Spaces     *SpaceManager
	Products   *ProductManager
	Attributes *AttributeManager
	Stats      *OpStats
}

// New creates all registries on top of gw.
func New(gw store.Gateway, cfg Config) *Manager {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = config.DefaultTreeDepth
	}
	if cfg.DefaultDepth > config.MaxTreeDepth {
		cfg.DefaultDepth = config.MaxTreeDepth
	}
	if cfg.CyclePolicy == nil {
		cfg.CyclePolicy = RescueChildren{}
	}
	now := timeFunc(defaultNow)
	if cfg.Now != nil {
		now = cfg.Now
	}

	e := &engine{
		gw:    gw,
		cfg:   cfg,
		now:   now,
		stats: NewOpStats(),
	}

	return &Manager{
		Storages:   &StorageManager{engine: e},
		Spaces:     &SpaceManager{engine: e},
		Products:   &ProductManager{engine: e},
		Attributes: &AttributeManager{engine: e},
		Stats:      e.stats,
	}
}

// engine is the state shared by the registries.
type engine struct {
	gw    store.Gateway
	cfg   Config
	now   timeFunc
	stats *OpStats

	// gen counts committed writes; coalesced reads never span a change.
	gen atomic.Uint64
}

// run executes fn as operation op in one transaction.
func (e *engine) run(ctx context.Context, op string, fn func(tx store.Tx) error) error {
	start := time.Now()
	err := e.gw.WithTx(ctx, fn)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, errors.ErrTimeout) {
		err = fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	e.stats.Record(op, time.Since(start), err)

	l := logging.WithContext(ctx).With("component", "manager")
	if err != nil {
		l.Debug("operation failed", "op", op, "error", err)
	} else {
		l.Debug("operation done", "op", op, "duration", time.Since(start))
	}
	return err
}

// write is run for operations that change the inventory.
func (e *engine) write(ctx context.Context, op string, fn func(tx store.Tx) error) error {
	err := e.run(ctx, op, fn)
	if err == nil {
		e.gen.Add(1)
	}
	return err
}

// depth resolves a requested render depth.
func (e *engine) depth(d int) int {
	return validation.ClampDepth(d, e.cfg.DefaultDepth, config.MaxTreeDepth)
}

// =============================================================================
// Reference Helpers
// =============================================================================

// refStorage resolves a storage referenced by another entity. A missing
// storage is an invalid reference that also matches ErrNotFound.
func refStorage(tx store.Tx, id string) (*store.Storage, error) {
	s, err := tx.GetStorage(id)
	if errors.IsNotFound(err) {
		return nil, errors.NewMissingReference("storage", id)
	}
	return s, err
}

func refSpace(tx store.Tx, id string) (*store.Space, error) {
	sp, err := tx.GetSpace(id)
	if errors.IsNotFound(err) {
		return nil, errors.NewMissingReference("space", id)
	}
	return sp, err
}

func refProduct(tx store.Tx, id string) (*store.Product, error) {
	p, err := tx.GetProduct(id)
	if errors.IsNotFound(err) {
		return nil, errors.NewMissingReference("product", id)
	}
	return p, err
}
