package handler

import (
	"fmt"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/wire"
)

// =============================================================================
// Operation Table
// =============================================================================

func operations() []Operation {
	return []Operation{
		{Name: "ping", Summary: "check the connection", Fn: opPing},
		{Name: "stats", Summary: "per-operation call counts and latency", Fn: opStats},

		{Name: "storage.create", Summary: "create a storage", Args: []string{"name", "description?", "parent_id?"}, Fn: opStorageCreate},
		{Name: "storage.get", Summary: "render a storage subtree", Args: []string{"id", "depth?"}, Fn: opStorageGet},
		{Name: "storage.list", Summary: "render all root storages", Args: []string{"depth?"}, Fn: opStorageList},
		{Name: "storage.update", Summary: "rename or redescribe a storage", Args: []string{"id", "name?", "description?"}, Fn: opStorageUpdate},
		{Name: "storage.move", Summary: "reparent a storage (no parent_id: make root)", Args: []string{"id", "parent_id?"}, Fn: opStorageMove},
		{Name: "storage.delete", Summary: "delete a storage and everything below it", Args: []string{"id"}, Fn: opStorageDelete},
		{Name: "storage.copy", Summary: "deep-copy a storage subtree", Args: []string{"id", "parent_id?"}, Fn: opStorageCopy},
		{Name: "storage.exists", Summary: "check whether a storage exists", Args: []string{"id"}, Fn: opStorageExists},

		{Name: "space.create", Summary: "create a space in a storage", Args: []string{"name", "storage_id", "size?", "description?"}, Fn: opSpaceCreate},
		{Name: "space.get", Summary: "render a space", Args: []string{"id", "depth?"}, Fn: opSpaceGet},
		{Name: "space.list", Summary: "render all spaces", Args: []string{"depth?"}, Fn: opSpaceList},
		{Name: "space.update", Summary: "update a space", Args: []string{"id", "name?", "size?", "clear_size?", "description?"}, Fn: opSpaceUpdate},
		{Name: "space.move", Summary: "move a space to another storage", Args: []string{"id", "storage_id"}, Fn: opSpaceMove},
		{Name: "space.delete", Summary: "delete a space and its products", Args: []string{"id"}, Fn: opSpaceDelete},

		{Name: "product.create", Summary: "create a product in a space", Args: []string{"name", "space_id", "price?", "description?", "attributes?"}, Fn: opProductCreate},
		{Name: "product.get", Summary: "render a product with its attributes", Args: []string{"id"}, Fn: opProductGet},
		{Name: "product.list", Summary: "render all products", Fn: opProductList},
		{Name: "product.update", Summary: "update a product", Args: []string{"id", "name?", "price?", "clear_price?", "description?"}, Fn: opProductUpdate},
		{Name: "product.move", Summary: "move a product to another space", Args: []string{"id", "space_id"}, Fn: opProductMove},
		{Name: "product.move_all", Summary: "move every product of one space to another", Args: []string{"from_space_id", "to_space_id"}, Fn: opProductMoveAll},
		{Name: "product.delete", Summary: "delete a product and its attributes", Args: []string{"id"}, Fn: opProductDelete},

		{Name: "attribute.set", Summary: "set or overwrite an attribute", Args: []string{"product_id", "key", "value", "type?"}, Fn: opAttributeSet},
		{Name: "attribute.get", Summary: "read one attribute", Args: []string{"product_id", "key"}, Fn: opAttributeGet},
		{Name: "attribute.list", Summary: "list a product's attributes", Args: []string{"product_id"}, Fn: opAttributeList},
		{Name: "attribute.delete", Summary: "remove an attribute", Args: []string{"product_id", "key"}, Fn: opAttributeDelete},
	}
}

func opPing(rc *RequestContext) (any, error) {
	return "pong", nil
}

func opStats(rc *RequestContext) (any, error) {
	return renderStats(rc.Manager.Stats.Snapshot()), nil
}

// depthArg returns the requested depth; -1 selects the engine default.
func depthArg(args wire.Args) (int, error) {
	return args.Int("depth", -1)
}

// =============================================================================
// Storages
// =============================================================================

func opStorageCreate(rc *RequestContext) (any, error) {
	var in manager.StorageInput
	var err error
	ve := errors.NewValidationErrors()
	in.Name, err = rc.Args.String("name")
	ve.Add(err)
	in.Description, err = rc.Args.OptString("description")
	ve.Add(err)
	in.ParentID, err = rc.Args.OptString("parent_id")
	ve.Add(err)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	n, err := rc.Manager.Storages.Create(rc.Ctx, in)
	if err != nil {
		return nil, err
	}
	return renderStorageNode(n), nil
}

func opStorageGet(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	depth, err := depthArg(rc.Args)
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Storages.Get(rc.Ctx, id, depth)
	if err != nil {
		return nil, err
	}
	return renderStorageNode(n), nil
}

func opStorageList(rc *RequestContext) (any, error) {
	depth, err := depthArg(rc.Args)
	if err != nil {
		return nil, err
	}
	nodes, err := rc.Manager.Storages.List(rc.Ctx, depth)
	if err != nil {
		return nil, err
	}
	return renderStorageNodes(nodes), nil
}

func opStorageUpdate(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	var u manager.StorageUpdate
	ve := errors.NewValidationErrors()
	u.Name, err = rc.Args.StringPtr("name")
	ve.Add(err)
	u.Description, err = rc.Args.StringPtr("description")
	ve.Add(err)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	s, err := rc.Manager.Storages.Update(rc.Ctx, id, u)
	if err != nil {
		return nil, err
	}
	return renderStorage(s), nil
}

func opStorageMove(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	parentID, err := rc.Args.OptString("parent_id")
	if err != nil {
		return nil, err
	}
	s, err := rc.Manager.Storages.Move(rc.Ctx, id, parentID)
	if err != nil {
		return nil, err
	}
	return renderStorage(s), nil
}

func opStorageDelete(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Storages.Delete(rc.Ctx, id)
	if err != nil {
		return nil, err
	}
	return renderStorageNode(n), nil
}

func opStorageCopy(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	parentID, err := rc.Args.OptString("parent_id")
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Storages.Copy(rc.Ctx, id, parentID)
	if err != nil {
		return nil, err
	}
	return renderStorageNode(n), nil
}

func opStorageExists(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	ok, err := rc.Manager.Storages.Exists(rc.Ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "exists": ok}, nil
}

// =============================================================================
// Spaces
// =============================================================================

func opSpaceCreate(rc *RequestContext) (any, error) {
	var in manager.SpaceInput
	var err error
	ve := errors.NewValidationErrors()
	in.Name, err = rc.Args.String("name")
	ve.Add(err)
	in.StorageID, err = rc.Args.String("storage_id")
	ve.Add(err)
	in.Size, err = rc.Args.FloatPtr("size")
	ve.Add(err)
	in.Description, err = rc.Args.OptString("description")
	ve.Add(err)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	n, err := rc.Manager.Spaces.Create(rc.Ctx, in)
	if err != nil {
		return nil, err
	}
	return renderSpaceNode(n), nil
}

func opSpaceGet(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	depth, err := depthArg(rc.Args)
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Spaces.Get(rc.Ctx, id, depth)
	if err != nil {
		return nil, err
	}
	return renderSpaceNode(n), nil
}

func opSpaceList(rc *RequestContext) (any, error) {
	depth, err := depthArg(rc.Args)
	if err != nil {
		return nil, err
	}
	nodes, err := rc.Manager.Spaces.List(rc.Ctx, depth)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, renderSpaceNode(n))
	}
	return out, nil
}

func opSpaceUpdate(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	var u manager.SpaceUpdate
	ve := errors.NewValidationErrors()
	u.Name, err = rc.Args.StringPtr("name")
	ve.Add(err)
	u.Size, err = rc.Args.FloatPtr("size")
	ve.Add(err)
	u.ClearSize, err = rc.Args.Bool("clear_size")
	ve.Add(err)
	u.Description, err = rc.Args.StringPtr("description")
	ve.Add(err)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	sp, err := rc.Manager.Spaces.Update(rc.Ctx, id, u)
	if err != nil {
		return nil, err
	}
	return renderSpace(sp), nil
}

func opSpaceMove(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	storageID, err := rc.Args.String("storage_id")
	if err != nil {
		return nil, err
	}
	sp, err := rc.Manager.Spaces.Move(rc.Ctx, id, storageID)
	if err != nil {
		return nil, err
	}
	return renderSpace(sp), nil
}

func opSpaceDelete(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Spaces.Delete(rc.Ctx, id)
	if err != nil {
		return nil, err
	}
	return renderSpaceNode(n), nil
}

// =============================================================================
// Products
// =============================================================================

func opProductCreate(rc *RequestContext) (any, error) {
	var in manager.ProductInput
	var err error
	ve := errors.NewValidationErrors()
	in.Name, err = rc.Args.String("name")
	ve.Add(err)
	in.SpaceID, err = rc.Args.String("space_id")
	ve.Add(err)
	in.Price, err = rc.Args.FloatPtr("price")
	ve.Add(err)
	in.Description, err = rc.Args.OptString("description")
	ve.Add(err)

	attrs, err := rc.Args.Object("attributes")
	ve.Add(err)
	if len(attrs) > 0 {
		in.Attributes = make(map[string]store.Value, len(attrs))
		for key, raw := range attrs {
			v, err := attributeValue(key, raw, "")
			if err != nil {
				ve.Add(err)
				continue
			}
			in.Attributes[key] = v
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	n, err := rc.Manager.Products.Create(rc.Ctx, in)
	if err != nil {
		return nil, err
	}
	return renderProductNode(n), nil
}

func opProductGet(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Products.Get(rc.Ctx, id)
	if err != nil {
		return nil, err
	}
	return renderProductNode(n), nil
}

func opProductList(rc *RequestContext) (any, error) {
	nodes, err := rc.Manager.Products.List(rc.Ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, renderProductNode(n))
	}
	return out, nil
}

func opProductUpdate(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	var u manager.ProductUpdate
	ve := errors.NewValidationErrors()
	u.Name, err = rc.Args.StringPtr("name")
	ve.Add(err)
	u.Price, err = rc.Args.FloatPtr("price")
	ve.Add(err)
	u.ClearPrice, err = rc.Args.Bool("clear_price")
	ve.Add(err)
	u.Description, err = rc.Args.StringPtr("description")
	ve.Add(err)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	p, err := rc.Manager.Products.Update(rc.Ctx, id, u)
	if err != nil {
		return nil, err
	}
	return renderProduct(p), nil
}

func opProductMove(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	spaceID, err := rc.Args.String("space_id")
	if err != nil {
		return nil, err
	}
	p, err := rc.Manager.Products.Move(rc.Ctx, id, spaceID)
	if err != nil {
		return nil, err
	}
	return renderProduct(p), nil
}

func opProductMoveAll(rc *RequestContext) (any, error) {
	from, err := rc.Args.String("from_space_id")
	if err != nil {
		return nil, err
	}
	to, err := rc.Args.String("to_space_id")
	if err != nil {
		return nil, err
	}
	moved, err := rc.Manager.Products.MoveAll(rc.Ctx, from, to)
	if err != nil {
		return nil, err
	}
	return renderProducts(moved), nil
}

func opProductDelete(rc *RequestContext) (any, error) {
	id, err := rc.Args.String("id")
	if err != nil {
		return nil, err
	}
	n, err := rc.Manager.Products.Delete(rc.Ctx, id)
	if err != nil {
		return nil, err
	}
	return renderProductNode(n), nil
}

// =============================================================================
// Attributes
// =============================================================================

// attributeValue decodes an attribute value. raw is either a scalar or an
// object {"type": ..., "value": ...}; typ, when set, forces the kind and
// allows textual payloads such as "12.5" for numbers.
func attributeValue(key string, raw any, typ string) (store.Value, error) {
	if obj, ok := raw.(map[string]any); ok {
		t, _ := obj["type"].(string)
		return attributeValue(key, obj["value"], t)
	}
	if raw == nil {
		return store.Value{}, errors.NewMissingField(key)
	}

	if typ != "" {
		if s, ok := raw.(string); ok {
			v, err := store.ParseTyped(typ, s)
			if err != nil {
				return store.Value{}, errors.NewValidation(key, err.Error())
			}
			return v, nil
		}
	}

	v, err := store.ValueOf(raw)
	if err != nil {
		return store.Value{}, errors.NewValidation(key, err.Error())
	}
	if typ != "" {
		k, err := store.ParseValueKind(typ)
		if err != nil {
			return store.Value{}, errors.NewValidation(key, err.Error())
		}
		if k != v.Kind() {
			return store.Value{}, errors.NewValidation(key, fmt.Sprintf("expected %s, got %s", k, v.Kind()))
		}
	}
	return v, nil
}

func productKeyArgs(args wire.Args) (string, string, error) {
	ve := errors.NewValidationErrors()
	productID, err := args.String("product_id")
	ve.Add(err)
	key, err := args.String("key")
	ve.Add(err)
	return productID, key, ve.Err()
}

func opAttributeSet(rc *RequestContext) (any, error) {
	productID, key, err := productKeyArgs(rc.Args)
	if err != nil {
		return nil, err
	}
	typ, err := rc.Args.OptString("type")
	if err != nil {
		return nil, err
	}
	if !rc.Args.Has("value") {
		return nil, errors.NewMissingField("value")
	}
	v, err := attributeValue("value", rc.Args["value"], typ)
	if err != nil {
		return nil, err
	}

	a, err := rc.Manager.Attributes.Set(rc.Ctx, productID, key, v)
	if err != nil {
		return nil, err
	}
	return renderAttribute(a), nil
}

func opAttributeGet(rc *RequestContext) (any, error) {
	productID, key, err := productKeyArgs(rc.Args)
	if err != nil {
		return nil, err
	}
	a, err := rc.Manager.Attributes.Get(rc.Ctx, productID, key)
	if err != nil {
		return nil, err
	}
	return renderAttribute(a), nil
}

func opAttributeList(rc *RequestContext) (any, error) {
	productID, err := rc.Args.String("product_id")
	if err != nil {
		return nil, err
	}
	attrs, err := rc.Manager.Attributes.List(rc.Ctx, productID)
	if err != nil {
		return nil, err
	}
	return renderAttributes(attrs), nil
}

func opAttributeDelete(rc *RequestContext) (any, error) {
	productID, key, err := productKeyArgs(rc.Args)
	if err != nil {
		return nil, err
	}
	removed, err := rc.Manager.Attributes.Delete(rc.Ctx, productID, key)
	if err != nil {
		return nil, err
	}
	return map[string]any{"product_id": productID, "key": key, "removed": removed}, nil
}
