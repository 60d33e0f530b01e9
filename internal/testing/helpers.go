package testing

import (
	"testing"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

// NewDuckDB opens an in-memory DuckDB store that is closed when t ends.
func NewDuckDB(t testing.TB) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Path = ""
	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Gateway is a named store gateway constructor.
type Gateway struct {
	Name string
	New  func(t testing.TB) store.Gateway
}

// Gateways lists every Gateway implementation. Tests that run against each
// of them see the same engine behavior on both.
func Gateways() []Gateway {
	return []Gateway{
		{"memory", func(testing.TB) store.Gateway { return store.NewMemStore() }},
		{"duckdb", func(t testing.TB) store.Gateway { return NewDuckDB(t) }},
	}
}
