package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = ""
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// gateways returns one fresh instance of every Gateway implementation.
func gateways(t *testing.T) map[string]Gateway {
	return map[string]Gateway{
		"duckdb": setupTestStore(t),
		"memory": NewMemStore(),
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newStorage(id, name, parent string) *Storage {
	ts := now()
	return &Storage{ID: id, Name: name, ParentID: parent, CreatedAt: ts, UpdatedAt: ts}
}

const (
	idA = "00000000-0000-4000-8000-00000000000a"
	idB = "00000000-0000-4000-8000-00000000000b"
	idC = "00000000-0000-4000-8000-00000000000c"
	idS = "00000000-0000-4000-8000-000000000051"
	idP = "00000000-0000-4000-8000-000000000061"
)

// =============================================================================
// Gateway Contract
// =============================================================================

func TestGateway_StorageRoundTrip(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := gw.WithTx(ctx, func(tx Tx) error {
				if err := tx.InsertStorage(newStorage(idA, "Warehouse", "")); err != nil {
					return err
				}
				if err := tx.InsertStorage(newStorage(idB, "Shelf 2", idA)); err != nil {
					return err
				}
				return tx.InsertStorage(newStorage(idC, "Shelf 1", idA))
			})
			require.NoError(t, err)

			err = gw.WithTx(ctx, func(tx Tx) error {
				roots, err := tx.RootStorages()
				require.NoError(t, err)
				require.Len(t, roots, 1)
				assert.Equal(t, idA, roots[0].ID)
				assert.True(t, roots[0].IsRoot())

				children, err := tx.ChildStorages(idA)
				require.NoError(t, err)
				require.Len(t, children, 2)
				// creation order, not name order
				assert.Equal(t, idB, children[0].ID)
				assert.Equal(t, idC, children[1].ID)
				assert.Less(t, children[0].Seq, children[1].Seq)

				got, err := tx.GetStorage(idB)
				require.NoError(t, err)
				assert.Equal(t, "Shelf 2", got.Name)
				assert.Equal(t, idA, got.ParentID)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestGateway_NotFound(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			err := gw.WithTx(context.Background(), func(tx Tx) error {
				_, err := tx.GetStorage(idA)
				assert.True(t, errors.Is(err, lerrors.ErrNotFound), "GetStorage: %v", err)

				_, err = tx.GetSpace(idS)
				assert.True(t, errors.Is(err, lerrors.ErrNotFound), "GetSpace: %v", err)

				_, err = tx.GetProduct(idP)
				assert.True(t, errors.Is(err, lerrors.ErrNotFound), "GetProduct: %v", err)

				err = tx.UpdateStorage(newStorage(idA, "x", ""))
				assert.True(t, errors.Is(err, lerrors.ErrNotFound), "UpdateStorage: %v", err)

				err = tx.DeleteSpace(idS)
				assert.True(t, errors.Is(err, lerrors.ErrNotFound), "DeleteSpace: %v", err)

				removed, err := tx.DeleteAttribute(idP, "color")
				assert.NoError(t, err)
				assert.False(t, removed)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestGateway_RollbackOnError(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			boom := errors.New("boom")

			err := gw.WithTx(ctx, func(tx Tx) error {
				require.NoError(t, tx.InsertStorage(newStorage(idA, "Warehouse", "")))
				return boom
			})
			assert.ErrorIs(t, err, boom)

			err = gw.WithTx(ctx, func(tx Tx) error {
				roots, err := tx.RootStorages()
				require.NoError(t, err)
				assert.Empty(t, roots)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestGateway_CancelledContext(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			called := false
			err := gw.WithTx(ctx, func(tx Tx) error {
				called = true
				return nil
			})
			assert.ErrorIs(t, err, context.Canceled)
			assert.False(t, called)
		})
	}
}

func TestGateway_SpacesAndProducts(t *testing.T) {
	size := 12.5
	price := 3.99

	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ts := now()
			err := gw.WithTx(ctx, func(tx Tx) error {
				require.NoError(t, tx.InsertStorage(newStorage(idA, "Warehouse", "")))
				require.NoError(t, tx.InsertSpace(&Space{ID: idS, Name: "Bin", Size: &size, StorageID: idA, CreatedAt: ts, UpdatedAt: ts}))
				return tx.InsertProduct(&Product{ID: idP, Name: "Bolt", Price: &price, SpaceID: idS, CreatedAt: ts, UpdatedAt: ts})
			})
			require.NoError(t, err)

			err = gw.WithTx(ctx, func(tx Tx) error {
				spaces, err := tx.SpacesOf(idA)
				require.NoError(t, err)
				require.Len(t, spaces, 1)
				require.NotNil(t, spaces[0].Size)
				assert.Equal(t, size, *spaces[0].Size)

				products, err := tx.ProductsOf(idS)
				require.NoError(t, err)
				require.Len(t, products, 1)
				require.NotNil(t, products[0].Price)
				assert.Equal(t, price, *products[0].Price)

				// clear the optional price
				p := products[0]
				p.Price = nil
				require.NoError(t, tx.UpdateProduct(p))
				return nil
			})
			require.NoError(t, err)

			err = gw.WithTx(ctx, func(tx Tx) error {
				p, err := tx.GetProduct(idP)
				require.NoError(t, err)
				assert.Nil(t, p.Price)

				all, err := tx.ListProducts()
				require.NoError(t, err)
				assert.Len(t, all, 1)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestGateway_Attributes(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := gw.WithTx(ctx, func(tx Tx) error {
				require.NoError(t, tx.PutAttribute(&Attribute{ProductID: idP, Key: "weight", Value: Number(1.5)}))
				require.NoError(t, tx.PutAttribute(&Attribute{ProductID: idP, Key: "color", Value: Text("red")}))
				// replace changes the kind
				return tx.PutAttribute(&Attribute{ProductID: idP, Key: "color", Value: Bool(true)})
			})
			require.NoError(t, err)

			err = gw.WithTx(ctx, func(tx Tx) error {
				attrs, err := tx.AttributesOf(idP)
				require.NoError(t, err)
				require.Len(t, attrs, 2)
				assert.Equal(t, "color", attrs[0].Key)
				assert.True(t, attrs[0].Value.Equal(Bool(true)))
				assert.Equal(t, "weight", attrs[1].Key)
				assert.True(t, attrs[1].Value.Equal(Number(1.5)))

				removed, err := tx.DeleteAttribute(idP, "color")
				require.NoError(t, err)
				assert.True(t, removed)

				_, err = tx.GetAttribute(idP, "color")
				assert.ErrorIs(t, err, lerrors.ErrNotFound)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestGateway_PutAttributeRejectsInvalidValue(t *testing.T) {
	for name, gw := range gateways(t) {
		t.Run(name, func(t *testing.T) {
			err := gw.WithTx(context.Background(), func(tx Tx) error {
				return tx.PutAttribute(&Attribute{ProductID: idP, Key: "k"})
			})
			assert.True(t, lerrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestMemStore_ReturnsCopies(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		return tx.InsertStorage(newStorage(idA, "Warehouse", ""))
	}))

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		s, err := tx.GetStorage(idA)
		require.NoError(t, err)
		s.Name = "mutated"
		return nil
	}))

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		s, err := tx.GetStorage(idA)
		require.NoError(t, err)
		assert.Equal(t, "Warehouse", s.Name)
		return nil
	}))
}

func TestStore_LockHierarchyConflict(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)

	go func() {
		firstDone <- s.WithTx(ctx, func(tx Tx) error {
			if err := tx.LockHierarchy(); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	second := s.WithTx(ctx, func(tx Tx) error {
		return tx.LockHierarchy()
	})
	close(release)
	first := <-firstDone

	// exactly one of the two overlapping structural transactions commits
	if first == nil {
		assert.ErrorIs(t, second, lerrors.ErrConcurrentModification)
	} else {
		assert.NoError(t, second)
		assert.ErrorIs(t, first, lerrors.ErrConcurrentModification)
	}
}

func TestStore_IsEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		return tx.InsertStorage(newStorage(idA, "Warehouse", ""))
	}))

	empty, err = s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestValue(t *testing.T) {
	tests := []struct {
		raw, kind string
		want      Value
		wantErr   bool
	}{
		{"12.5", "number", Number(12.5), false},
		{"true", "bool", Bool(true), false},
		{"hello", "text", Text("hello"), false},
		{"abc", "number", Value{}, true},
		{"x", "date", Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.raw, func(t *testing.T) {
			got, err := ParseTyped(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
			assert.Equal(t, tt.raw, got.String())
		})
	}

	assert.False(t, Value{}.IsValid())
	_, err := ValueOf([]int{1})
	assert.Error(t, err)
}
