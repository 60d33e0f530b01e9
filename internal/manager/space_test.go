package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

func TestSpace_CreateAndGet(t *testing.T) {
	forEachGateway(t, Config{}, func(t *testing.T, f *fixture) {
		a := f.storage(t, "A", "")

		n, err := f.Spaces.Create(f.ctx, SpaceInput{Name: "Bin 1", Size: ptr(2.5), StorageID: a})
		require.NoError(t, err)
		require.NotNil(t, n.Space.Size)
		assert.Equal(t, 2.5, *n.Space.Size)
		assert.Empty(t, n.Products)

		f.product(t, "P", n.Space.ID, nil)

		got, err := f.Spaces.Get(f.ctx, n.Space.ID, -1)
		require.NoError(t, err)
		assert.Len(t, got.Products, 1)

		bare, err := f.Spaces.Get(f.ctx, n.Space.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, bare.Products)

		all, err := f.Spaces.List(f.ctx, 1)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Len(t, all[0].Products, 1)
	})
}

func TestSpace_CreateErrors(t *testing.T) {
	forEachGateway(t, Config{}, func(t *testing.T, f *fixture) {
		_, err := f.Spaces.Create(f.ctx, SpaceInput{Name: "X", StorageID: missingID})
		assert.ErrorIs(t, err, lerrors.ErrInvalidReference)
		assert.ErrorIs(t, err, lerrors.ErrNotFound)

		_, err = f.Spaces.Create(f.ctx, SpaceInput{Name: "X", StorageID: ""})
		assert.ErrorIs(t, err, lerrors.ErrInvalidIdentifier)

		a := f.storage(t, "A", "")
		_, err = f.Spaces.Create(f.ctx, SpaceInput{Name: "X", StorageID: a, Size: ptr(-1.0)})
		assert.True(t, lerrors.IsValidation(err), "got %v", err)

		_, err = f.Spaces.Get(f.ctx, missingID, 1)
		assert.ErrorIs(t, err, lerrors.ErrNotFound)
	})
}

func TestSpace_Update(t *testing.T) {
	forEachGateway(t, Config{}, func(t *testing.T, f *fixture) {
		a := f.storage(t, "A", "")
		n, err := f.Spaces.Create(f.ctx, SpaceInput{Name: "Bin", Size: ptr(4.0), Description: "d", StorageID: a})
		require.NoError(t, err)
		id := n.Space.ID

		same, err := f.Spaces.Update(f.ctx, id, SpaceUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "Bin", same.Name)
		assert.Equal(t, 4.0, *same.Size)
		assert.True(t, same.UpdatedAt.Equal(n.Space.UpdatedAt))

		upd, err := f.Spaces.Update(f.ctx, id, SpaceUpdate{Size: ptr(6.0)})
		require.NoError(t, err)
		assert.Equal(t, 6.0, *upd.Size)
		assert.Equal(t, "d", upd.Description)

		cleared, err := f.Spaces.Update(f.ctx, id, SpaceUpdate{ClearSize: true})
		require.NoError(t, err)
		assert.Nil(t, cleared.Size)

		got, err := f.Spaces.Get(f.ctx, id, 0)
		require.NoError(t, err)
		assert.Nil(t, got.Space.Size)
	})
}

func TestSpace_DeleteCascades(t *testing.T) {
	forEachGateway(t, Config{}, func(t *testing.T, f *fixture) {
		a := f.storage(t, "A", "")
		s1 := f.space(t, "S1", a)
		s2 := f.space(t, "S2", a)
		f.product(t, "P1", s1, map[string]store.Value{"x": store.Bool(false)})
		f.product(t, "P2", s1, nil)
		keep := f.product(t, "P3", s2, map[string]store.Value{"x": store.Bool(true)})

		snap, err := f.Spaces.Delete(f.ctx, s1)
		require.NoError(t, err)
		assert.Len(t, snap.Products, 2)

		_, spaces, products, attrs := f.counts(t)
		assert.Equal(t, 1, spaces)
		assert.Equal(t, 1, products)
		assert.Equal(t, 1, attrs)

		_, err = f.Products.Get(f.ctx, keep)
		assert.NoError(t, err)

		_, err = f.Spaces.Delete(f.ctx, s1)
		assert.ErrorIs(t, err, lerrors.ErrNotFound)
	})
}

func TestSpace_Move(t *testing.T) {
	forEachGateway(t, Config{}, func(t *testing.T, f *fixture) {
		a := f.storage(t, "A", "")
		b := f.storage(t, "B", "")
		sp := f.space(t, "S", a)
		f.product(t, "P", sp, nil)

		moved, err := f.Spaces.Move(f.ctx, sp, b)
		require.NoError(t, err)
		assert.Equal(t, b, moved.StorageID)

		bn, err := f.Storages.Get(f.ctx, b, 2)
		require.NoError(t, err)
		require.Len(t, bn.Spaces, 1)
		assert.Len(t, bn.Spaces[0].Products, 1)

		an, err := f.Storages.Get(f.ctx, a, 2)
		require.NoError(t, err)
		assert.Empty(t, an.Spaces)

		_, err = f.Spaces.Move(f.ctx, sp, missingID)
		assert.ErrorIs(t, err, lerrors.ErrInvalidReference)
		_, err = f.Spaces.Move(f.ctx, missingID, a)
		assert.ErrorIs(t, err, lerrors.ErrNotFound)
		assert.NotErrorIs(t, err, lerrors.ErrInvalidReference)
	})
}
