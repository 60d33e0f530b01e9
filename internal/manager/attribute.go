package manager

import (
	"context"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/validation"
)

// AttributeManager is the per-product attribute store.
type AttributeManager struct {
	*engine
}

func validateAttribute(key string, v store.Value) error {
	if err := validation.ValidateAttributeKey(key); err != nil {
		return err
	}
	if !v.IsValid() {
		return errors.NewValidation("attribute "+key, "value must be text, a finite number or a bool")
	}
	return nil
}

// Set creates the attribute or replaces kind and value of the existing
// one with the same key.
func (m *AttributeManager) Set(ctx context.Context, productID, key string, v store.Value) (*store.Attribute, error) {
	if err := validation.CheckRef("product_id", productID); err != nil {
		return nil, err
	}
	if err := validateAttribute(key, v); err != nil {
		return nil, err
	}

	a := &store.Attribute{ProductID: productID, Key: key, Value: v}
	err := m.write(ctx, "attribute.set", func(tx store.Tx) error {
		// conflicts with a concurrent cascade that removes the product
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		if _, err := refProduct(tx, productID); err != nil {
			return err
		}
		a.UpdatedAt = m.now()
		return tx.PutAttribute(a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns one attribute.
func (m *AttributeManager) Get(ctx context.Context, productID, key string) (*store.Attribute, error) {
	if err := validation.CheckRef("product_id", productID); err != nil {
		return nil, err
	}

	var a *store.Attribute
	err := m.run(ctx, "attribute.get", func(tx store.Tx) error {
		if _, err := refProduct(tx, productID); err != nil {
			return err
		}
		var err error
		a, err = tx.GetAttribute(productID, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns the product's attributes ordered by key.
func (m *AttributeManager) List(ctx context.Context, productID string) ([]*store.Attribute, error) {
	if err := validation.CheckRef("product_id", productID); err != nil {
		return nil, err
	}

	attrs := []*store.Attribute{}
	err := m.run(ctx, "attribute.list", func(tx store.Tx) error {
		if _, err := refProduct(tx, productID); err != nil {
			return err
		}
		list, err := tx.AttributesOf(productID)
		if err != nil {
			return err
		}
		attrs = append(attrs, list...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// Delete removes the attribute and reports whether it existed. A missing
// key is not an error.
func (m *AttributeManager) Delete(ctx context.Context, productID, key string) (bool, error) {
	if err := validation.CheckRef("product_id", productID); err != nil {
		return false, err
	}
	if err := validation.ValidateAttributeKey(key); err != nil {
		return false, err
	}

	var removed bool
	err := m.write(ctx, "attribute.delete", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		if _, err := refProduct(tx, productID); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteAttribute(productID, key)
		return err
	})
	return removed, err
}
