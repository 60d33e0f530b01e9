package manager

import (
	"context"
	"fmt"
	"sort"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/validation"
)

var productLog = logging.Component("manager.product")

// ProductInput describes a new product with optional initial attributes.
type ProductInput struct {
	Name        string
	Price       *float64
	Description string
	SpaceID     string
	Attributes  map[string]store.Value
}

// ProductUpdate is a partial update; nil fields are left unchanged.
// ClearPrice removes the price and takes precedence over Price.
type ProductUpdate struct {
	Name        *string
	Price       *float64
	ClearPrice  bool
	Description *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Price == nil && !u.ClearPrice && u.Description == nil
}

func (in ProductInput) validate() error {
	if err := validation.CheckRef("space_id", in.SpaceID); err != nil {
		return err
	}
	errs := errors.NewValidationErrors()
	errs.Add(validation.ValidateEntityName(in.Name))
	errs.Add(validation.ValidateNonNegative("price", in.Price))
	errs.Add(validation.ValidateDescription(in.Description))
	for key, v := range in.Attributes {
		errs.Add(validateAttribute(key, v))
	}
	return errs.Err()
}

func (u ProductUpdate) validate() error {
	errs := errors.NewValidationErrors()
	if u.Name != nil {
		errs.Add(validation.ValidateEntityName(*u.Name))
	}
	errs.Add(validation.ValidateNonNegative("price", u.Price))
	if u.Description != nil {
		errs.Add(validation.ValidateDescription(*u.Description))
	}
	return errs.Err()
}

// =============================================================================
// ProductManager
// =============================================================================

// ProductManager is the product registry.
type ProductManager struct {
	*engine
}

// Create inserts a product into an existing space.
func (m *ProductManager) Create(ctx context.Context, in ProductInput) (*ProductNode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ts := m.now()
	p := &store.Product{
		ID:          validation.NewID(),
		Name:        in.Name,
		Price:       in.Price,
		Description: in.Description,
		SpaceID:     in.SpaceID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	keys := make([]string, 0, len(in.Attributes))
	for k := range in.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var node *ProductNode
	err := m.write(ctx, "product.create", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		if _, err := refSpace(tx, p.SpaceID); err != nil {
			return err
		}
		if err := tx.InsertProduct(p); err != nil {
			return err
		}

		attrs := make([]*store.Attribute, 0, len(keys))
		for _, k := range keys {
			a := &store.Attribute{ProductID: p.ID, Key: k, Value: in.Attributes[k], UpdatedAt: ts}
			if err := tx.PutAttribute(a); err != nil {
				return err
			}
			attrs = append(attrs, a)
		}
		node = &ProductNode{Product: p, Attributes: attrs}
		return nil
	})
	if err != nil {
		return nil, err
	}

	productLog.Debug("product created", "id", p.ID, "space", p.SpaceID, "attributes", len(keys))
	return node, nil
}

// Get returns the product with its attributes.
func (m *ProductManager) Get(ctx context.Context, id string) (*ProductNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}

	var node *ProductNode
	err := m.run(ctx, "product.get", func(tx store.Tx) error {
		p, err := tx.GetProduct(id)
		if err != nil {
			return err
		}
		node, err = renderProduct(tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// List returns every product with its attributes.
func (m *ProductManager) List(ctx context.Context) ([]*ProductNode, error) {
	nodes := []*ProductNode{}
	err := m.run(ctx, "product.list", func(tx store.Tx) error {
		products, err := tx.ListProducts()
		if err != nil {
			return err
		}
		for _, p := range products {
			n, err := renderProduct(tx, p)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Update applies the non-nil fields of u.
func (m *ProductManager) Update(ctx context.Context, id string, u ProductUpdate) (*store.Product, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := u.validate(); err != nil {
		return nil, err
	}

	var p *store.Product
	err := m.write(ctx, "product.update", func(tx store.Tx) error {
		var err error
		if p, err = tx.GetProduct(id); err != nil {
			return err
		}
		if u.IsEmpty() {
			return nil
		}
		if u.Name != nil {
			p.Name = *u.Name
		}
		switch {
		case u.ClearPrice:
			p.Price = nil
		case u.Price != nil:
			price := *u.Price
			p.Price = &price
		}
		if u.Description != nil {
			p.Description = *u.Description
		}
		p.UpdatedAt = m.now()
		return tx.UpdateProduct(p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the product with its attributes and returns a snapshot
// taken before deletion.
func (m *ProductManager) Delete(ctx context.Context, id string) (*ProductNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}

	var snapshot *ProductNode
	err := m.write(ctx, "product.delete", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		p, err := tx.GetProduct(id)
		if err != nil {
			return err
		}
		if snapshot, err = renderProduct(tx, p); err != nil {
			return err
		}
		return deleteProductCascade(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Move transfers one product to another existing space.
func (m *ProductManager) Move(ctx context.Context, id, spaceID string) (*store.Product, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := validation.CheckRef("space_id", spaceID); err != nil {
		return nil, err
	}

	var p *store.Product
	err := m.write(ctx, "product.move", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		var err error
		if p, err = tx.GetProduct(id); err != nil {
			return err
		}
		if _, err := refSpace(tx, spaceID); err != nil {
			return err
		}
		p.SpaceID = spaceID
		p.UpdatedAt = m.now()
		return tx.UpdateProduct(p)
	})
	if err != nil {
		return nil, err
	}

	productLog.Debug("product moved", "id", id, "space", spaceID)
	return p, nil
}

// MoveAll transfers every product of fromSpaceID to toSpaceID and returns
// the moved products. It fails with ErrNothingToMove when the source space
// holds no products.
func (m *ProductManager) MoveAll(ctx context.Context, fromSpaceID, toSpaceID string) ([]*store.Product, error) {
	if err := validation.CheckRef("from_space_id", fromSpaceID); err != nil {
		return nil, err
	}
	if err := validation.CheckRef("to_space_id", toSpaceID); err != nil {
		return nil, err
	}

	var moved []*store.Product
	err := m.write(ctx, "product.move_all", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		if _, err := refSpace(tx, fromSpaceID); err != nil {
			return err
		}
		if _, err := refSpace(tx, toSpaceID); err != nil {
			return err
		}

		products, err := tx.ProductsOf(fromSpaceID)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return fmt.Errorf("space '%s': %w", fromSpaceID, errors.ErrNothingToMove)
		}

		ts := m.now()
		for _, p := range products {
			p.SpaceID = toSpaceID
			p.UpdatedAt = ts
			if err := tx.UpdateProduct(p); err != nil {
				return err
			}
		}
		moved = products
		return nil
	})
	if err != nil {
		return nil, err
	}

	productLog.Debug("products moved", "from", fromSpaceID, "to", toSpaceID, "count", len(moved))
	return moved, nil
}

// deleteProductCascade deletes the product's attributes, then the product.
func deleteProductCascade(tx store.Tx, id string) error {
	attrs, err := tx.AttributesOf(id)
	if err != nil {
		return err
	}
	for _, a := range attrs {
		if _, err := tx.DeleteAttribute(id, a.Key); err != nil {
			return err
		}
	}
	return tx.DeleteProduct(id)
}
