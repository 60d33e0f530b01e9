package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

const missingID = "9b2f7c1e-4d6a-4f3b-8e21-5a7c9d0e1f23"

func setupHandler(t *testing.T) (*Handler, *store.MemStore) {
	t.Helper()
	gw := store.NewMemStore()
	return NewHandler(manager.New(gw, manager.DefaultConfig()), nil), gw
}

// call runs op and returns its rendered result as a map.
func call(t *testing.T, h *Handler, op string, args wire.Args) map[string]any {
	t.Helper()
	res, err := h.Call(context.Background(), nil, 1, op, args)
	require.NoError(t, err, op)
	m, ok := res.(map[string]any)
	require.True(t, ok, "%s returned %T", op, res)
	return m
}

func TestOperations_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for _, op := range Operations() {
		assert.False(t, seen[op.Name], "duplicate op %s", op.Name)
		assert.NotNil(t, op.Fn, op.Name)
		assert.NotEmpty(t, op.Summary, op.Name)
		seen[op.Name] = true
	}
	for _, name := range []string{
		"storage.create", "storage.get", "storage.list", "storage.update",
		"storage.move", "storage.delete", "storage.copy", "storage.exists",
		"space.create", "space.get", "space.list", "space.update", "space.move", "space.delete",
		"product.create", "product.get", "product.list", "product.update",
		"product.move", "product.move_all", "product.delete",
		"attribute.set", "attribute.get", "attribute.list", "attribute.delete",
		"stats", "ping",
	} {
		assert.True(t, seen[name], "missing op %s", name)
	}
}

func TestHandler_InventoryFlow(t *testing.T) {
	h, _ := setupHandler(t)

	hall := call(t, h, "storage.create", wire.Args{"name": "Hall A"})
	assert.Nil(t, hall["parent_id"])
	assert.Equal(t, []any{}, hall["children"])

	rack := call(t, h, "storage.create", wire.Args{"name": "Rack 1", "parent_id": hall["id"]})
	assert.Equal(t, hall["id"], rack["parent_id"])

	shelf := call(t, h, "space.create", wire.Args{"name": "Shelf", "storage_id": rack["id"], "size": 2.5})
	assert.Equal(t, 2.5, shelf["size"])

	bolt := call(t, h, "product.create", wire.Args{
		"name":     "Bolt",
		"space_id": shelf["id"],
		"price":    0.25,
		"attributes": map[string]any{
			"length":   12.0,
			"material": "steel",
			"metric":   map[string]any{"type": "bool", "value": "true"},
		},
	})
	attrs := bolt["attributes"].([]any)
	require.Len(t, attrs, 3)
	assert.Equal(t, map[string]any{"key": "length", "type": "number", "value": 12.0}, attrs[0])
	assert.Equal(t, map[string]any{"key": "metric", "type": "bool", "value": true}, attrs[2])

	tree := call(t, h, "storage.get", wire.Args{"id": hall["id"], "depth": 3.0})
	children := tree["children"].([]any)
	require.Len(t, children, 1)
	spaces := children[0].(map[string]any)["spaces"].([]any)
	require.Len(t, spaces, 1)
	products := spaces[0].(map[string]any)["products"].([]any)
	require.Len(t, products, 1)
	assert.Equal(t, bolt["id"], products[0].(map[string]any)["id"])

	shallow := call(t, h, "storage.get", wire.Args{"id": hall["id"], "depth": 0.0})
	assert.Empty(t, shallow["children"])

	updated := call(t, h, "product.update", wire.Args{"id": bolt["id"], "clear_price": true})
	assert.Nil(t, updated["price"])

	deleted := call(t, h, "storage.delete", wire.Args{"id": hall["id"]})
	assert.Equal(t, hall["id"], deleted["id"])

	exists := call(t, h, "storage.exists", wire.Args{"id": rack["id"]})
	assert.Equal(t, false, exists["exists"])
}

func TestHandler_Lists(t *testing.T) {
	h, _ := setupHandler(t)
	a := call(t, h, "storage.create", wire.Args{"name": "A"})
	call(t, h, "storage.create", wire.Args{"name": "B"})
	from := call(t, h, "space.create", wire.Args{"name": "from", "storage_id": a["id"]})
	to := call(t, h, "space.create", wire.Args{"name": "to", "storage_id": a["id"]})
	call(t, h, "product.create", wire.Args{"name": "p1", "space_id": from["id"]})
	call(t, h, "product.create", wire.Args{"name": "p2", "space_id": from["id"]})

	res, err := h.Call(context.Background(), nil, 1, "storage.list", nil)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = h.Call(context.Background(), nil, 1, "product.move_all", wire.Args{
		"from_space_id": from["id"],
		"to_space_id":   to["id"],
	})
	require.NoError(t, err)
	moved := res.([]any)
	require.Len(t, moved, 2)
	assert.Equal(t, to["id"], moved[0].(map[string]any)["space_id"])

	_, err = h.Call(context.Background(), nil, 1, "product.move_all", wire.Args{
		"from_space_id": from["id"],
		"to_space_id":   to["id"],
	})
	assert.ErrorIs(t, err, errors.ErrNothingToMove)

	res, err = h.Call(context.Background(), nil, 1, "stats", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res)
}

func TestHandler_Errors(t *testing.T) {
	h, _ := setupHandler(t)

	tests := []struct {
		name string
		op   string
		args wire.Args
		code int32
	}{
		{"unknown op", "storage.explode", nil, errors.CodeUnknownOperation},
		{"missing name", "storage.create", wire.Args{}, errors.CodeInvalidRequest},
		{"wrong type", "storage.create", wire.Args{"name": 5.0}, errors.CodeInvalidRequest},
		{"malformed id", "storage.get", wire.Args{"id": "nope"}, errors.CodeInvalidIdentifier},
		{"missing storage", "storage.get", wire.Args{"id": missingID}, errors.CodeNotFound},
		{"missing parent", "storage.create", wire.Args{"name": "x", "parent_id": missingID}, errors.CodeInvalidReference},
		{"fractional depth", "storage.list", wire.Args{"depth": 1.5}, errors.CodeInvalidRequest},
		{"bad attribute", "attribute.set", wire.Args{"product_id": missingID, "key": "k", "value": "x", "type": "number"}, errors.CodeInvalidRequest},
		{"missing value", "attribute.set", wire.Args{"product_id": missingID, "key": "k"}, errors.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Handle(context.Background(), nil, wire.NewRequest(7, tt.op, "", tt.args))
			require.NotNil(t, resp.Error)
			assert.Equal(t, uint64(7), resp.ID)
			assert.Equal(t, errors.CodeName(tt.code), errors.CodeName(resp.Error.Code), resp.Error.Message)
		})
	}
}

func TestHandler_AttributeOps(t *testing.T) {
	h, _ := setupHandler(t)
	s := call(t, h, "storage.create", wire.Args{"name": "S"})
	sp := call(t, h, "space.create", wire.Args{"name": "Sp", "storage_id": s["id"]})
	p := call(t, h, "product.create", wire.Args{"name": "P", "space_id": sp["id"]})

	a := call(t, h, "attribute.set", wire.Args{"product_id": p["id"], "key": "weight", "value": "1.5", "type": "number"})
	assert.Equal(t, 1.5, a["value"])
	a = call(t, h, "attribute.set", wire.Args{"product_id": p["id"], "key": "weight", "value": "heavy"})
	assert.Equal(t, "text", a["type"])

	got := call(t, h, "attribute.get", wire.Args{"product_id": p["id"], "key": "weight"})
	assert.Equal(t, "heavy", got["value"])

	res := call(t, h, "attribute.delete", wire.Args{"product_id": p["id"], "key": "weight"})
	assert.Equal(t, true, res["removed"])
	res = call(t, h, "attribute.delete", wire.Args{"product_id": p["id"], "key": "weight"})
	assert.Equal(t, false, res["removed"])
}

func TestAttributeValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		typ     string
		want    store.Value
		wantErr bool
	}{
		{"text", "steel", "", store.Text("steel"), false},
		{"number", 4.0, "", store.Number(4), false},
		{"bool", true, "", store.Bool(true), false},
		{"typed text payload", "12.5", "number", store.Number(12.5), false},
		{"typed object", map[string]any{"type": "bool", "value": "false"}, "", store.Bool(false), false},
		{"kind mismatch", 1.0, "bool", store.Value{}, true},
		{"bad payload", "abc", "number", store.Value{}, true},
		{"unknown kind", "x", "blob", store.Value{}, true},
		{"null", nil, "", store.Value{}, true},
		{"list", []any{1.0}, "", store.Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := attributeValue("value", tt.raw, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestHandlerError(t *testing.T) {
	err := NewErrorFromErr(errors.NewNotFound("storage", "x"), "lookup")
	assert.Equal(t, errors.CodeNotFound, err.Code)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Contains(t, err.Error(), "lookup")

	assert.Equal(t, errors.CodeNotAuthenticated, GetErrorCode(ErrNotAuthenticated))
	assert.Equal(t, errors.CodeCycleRejected, GetErrorCode(errors.ErrCycleRejected))
	assert.Nil(t, ToHandlerError(nil))
	assert.Same(t, ErrAuthFailed, ToHandlerError(ErrAuthFailed))

	e := Errorf(errors.CodeTimeout, "took %d s", 3)
	assert.ErrorIs(t, e, errors.ErrTimeout)
	assert.Equal(t, "took 3 s", e.Error())
}
