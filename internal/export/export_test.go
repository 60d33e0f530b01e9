package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

func seedInventory(t *testing.T) (*store.MemStore, map[string]string) {
	t.Helper()
	ctx := context.Background()
	gw := store.NewMemStore()
	m := manager.New(gw, manager.DefaultConfig())

	hall, err := m.Storages.Create(ctx, manager.StorageInput{Name: "Hall A"})
	require.NoError(t, err)
	rack, err := m.Storages.Create(ctx, manager.StorageInput{Name: "Rack 1", ParentID: hall.Storage.ID})
	require.NoError(t, err)
	shelf, err := m.Spaces.Create(ctx, manager.SpaceInput{Name: "Shelf 3", StorageID: rack.Storage.ID})
	require.NoError(t, err)
	bin, err := m.Spaces.Create(ctx, manager.SpaceInput{Name: "Bin", StorageID: hall.Storage.ID})
	require.NoError(t, err)

	price := 0.4
	bolt, err := m.Products.Create(ctx, manager.ProductInput{
		Name:    "Bolt",
		Price:   &price,
		SpaceID: shelf.Space.ID,
		Attributes: map[string]store.Value{
			"length":   store.Number(42.5),
			"material": store.Text("steel"),
			"metric":   store.Bool(true),
		},
	})
	require.NoError(t, err)
	glue, err := m.Products.Create(ctx, manager.ProductInput{Name: "Glue", SpaceID: bin.Space.ID})
	require.NoError(t, err)

	return gw, map[string]string{"bolt": bolt.Product.ID, "glue": glue.Product.ID}
}

func TestCollect(t *testing.T) {
	gw, ids := seedInventory(t)

	rows, err := Collect(context.Background(), gw)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// tree order: the hall's own spaces come before its child storages
	assert.Equal(t, ids["glue"], rows[0].ProductID)
	assert.Equal(t, "Hall A", rows[0].StoragePath)
	assert.Nil(t, rows[0].Price)

	assert.Equal(t, ids["bolt"], rows[1].ProductID)
	assert.Equal(t, "Hall A / Rack 1", rows[1].StoragePath)
	assert.Equal(t, "Shelf 3", rows[1].Space)
	require.Len(t, rows[1].Attributes, 3)
	assert.Equal(t, "length", rows[1].Attributes[0].Key)
}

func TestWriteAndRead(t *testing.T) {
	gw, ids := seedInventory(t)
	rows, err := Collect(context.Background(), gw)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Write(&buf, rows, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, got, 2)

	bolt := got[1]
	assert.Equal(t, ids["bolt"], bolt.ProductID)
	require.NotNil(t, bolt.Price)
	assert.Equal(t, 0.4, *bolt.Price)

	values, err := bolt.Values()
	require.NoError(t, err)
	assert.True(t, values["length"].Equal(store.Number(42.5)))
	assert.True(t, values["material"].Equal(store.Text("steel")))
	assert.True(t, values["metric"].Equal(store.Bool(true)))

	assert.Nil(t, got[0].Price)
}

func TestWriteFileCompressions(t *testing.T) {
	gw, _ := seedInventory(t)
	rows, err := Collect(context.Background(), gw)
	require.NoError(t, err)

	for _, name := range []string{"none", "snappy", "zstd", "gzip", "lz4"} {
		t.Run(name, func(t *testing.T) {
			ct, err := ParseCompressionType(name)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "nested", "inventory.parquet")
			_, err = WriteFile(path, rows, Options{Compression: ct})
			require.NoError(t, err)

			got, err := ReadFile(path)
			require.NoError(t, err)
			assert.Len(t, got, len(rows))
		})
	}

	_, err = ParseCompressionType("brotli")
	assert.Error(t, err)
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, got)
}
