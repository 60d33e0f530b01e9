package manager

import (
	"context"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/validation"
)

var spaceLog = logging.Component("manager.space")

// SpaceInput describes a new space.
type SpaceInput struct {
	Name        string
	Size        *float64
	Description string
	StorageID   string
}

// SpaceUpdate is a partial update; nil fields are left unchanged.
// ClearSize removes the size and takes precedence over Size.
type SpaceUpdate struct {
	Name        *string
	Size        *float64
	ClearSize   bool
	Description *string
}

// IsEmpty reports whether the update changes nothing.
func (u SpaceUpdate) IsEmpty() bool {
	return u.Name == nil && u.Size == nil && !u.ClearSize && u.Description == nil
}

func (in SpaceInput) validate() error {
	if err := validation.CheckRef("storage_id", in.StorageID); err != nil {
		return err
	}
	errs := errors.NewValidationErrors()
	errs.Add(validation.ValidateEntityName(in.Name))
	errs.Add(validation.ValidateNonNegative("size", in.Size))
	errs.Add(validation.ValidateDescription(in.Description))
	return errs.Err()
}

func (u SpaceUpdate) validate() error {
	errs := errors.NewValidationErrors()
	if u.Name != nil {
		errs.Add(validation.ValidateEntityName(*u.Name))
	}
	errs.Add(validation.ValidateNonNegative("size", u.Size))
	if u.Description != nil {
		errs.Add(validation.ValidateDescription(*u.Description))
	}
	return errs.Err()
}

// =============================================================================
// SpaceManager
// =============================================================================

// SpaceManager is the space registry.
type SpaceManager struct {
	*engine
}

// Create inserts a space into an existing storage.
func (m *SpaceManager) Create(ctx context.Context, in SpaceInput) (*SpaceNode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ts := m.now()
	sp := &store.Space{
		ID:          validation.NewID(),
		Name:        in.Name,
		Size:        in.Size,
		Description: in.Description,
		StorageID:   in.StorageID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	err := m.write(ctx, "space.create", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		if _, err := refStorage(tx, sp.StorageID); err != nil {
			return err
		}
		return tx.InsertSpace(sp)
	})
	if err != nil {
		return nil, err
	}

	spaceLog.Debug("space created", "id", sp.ID, "storage", sp.StorageID)
	return &SpaceNode{Space: sp, Products: []*ProductNode{}}, nil
}

// Get renders the space. Products are included when maxDepth is positive;
// a negative maxDepth selects the default.
func (m *SpaceManager) Get(ctx context.Context, id string, maxDepth int) (*SpaceNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	depth := m.depth(maxDepth)

	var node *SpaceNode
	err := m.run(ctx, "space.get", func(tx store.Tx) error {
		sp, err := tx.GetSpace(id)
		if err != nil {
			return err
		}
		node, err = renderSpace(tx, sp, depth)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// List renders every space.
func (m *SpaceManager) List(ctx context.Context, maxDepth int) ([]*SpaceNode, error) {
	depth := m.depth(maxDepth)

	nodes := []*SpaceNode{}
	err := m.run(ctx, "space.list", func(tx store.Tx) error {
		spaces, err := tx.ListSpaces()
		if err != nil {
			return err
		}
		for _, sp := range spaces {
			n, err := renderSpace(tx, sp, depth)
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
func (m *SpaceManager) Update(ctx context.Context, id string, u SpaceUpdate) (*store.Space, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := u.validate(); err != nil {
		return nil, err
	}

	var sp *store.Space
	err := m.write(ctx, "space.update", func(tx store.Tx) error {
		var err error
		if sp, err = tx.GetSpace(id); err != nil {
			return err
		}
		if u.IsEmpty() {
			return nil
		}
		if u.Name != nil {
			sp.Name = *u.Name
		}
		switch {
		case u.ClearSize:
			sp.Size = nil
		case u.Size != nil:
			size := *u.Size
			sp.Size = &size
		}
		if u.Description != nil {
			sp.Description = *u.Description
		}
		sp.UpdatedAt = m.now()
		return tx.UpdateSpace(sp)
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// Delete removes the space with its products and their attributes and
// returns a snapshot taken before deletion.
func (m *SpaceManager) Delete(ctx context.Context, id string) (*SpaceNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}

	var snapshot *SpaceNode
	err := m.write(ctx, "space.delete", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		sp, err := tx.GetSpace(id)
		if err != nil {
			return err
		}
		if snapshot, err = renderSpace(tx, sp, 1); err != nil {
			return err
		}
		return deleteSpaceCascade(tx, id)
	})
	if err != nil {
		return nil, err
	}

	spaceLog.Debug("space deleted", "id", id, "products", len(snapshot.Products))
	return snapshot, nil
}

// Move transfers the space to another existing storage.
func (m *SpaceManager) Move(ctx context.Context, id, storageID string) (*store.Space, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := validation.CheckRef("storage_id", storageID); err != nil {
		return nil, err
	}

	var sp *store.Space
	err := m.write(ctx, "space.move", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		var err error
		if sp, err = tx.GetSpace(id); err != nil {
			return err
		}
		ok, err := storageExists(tx, storageID)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewMissingReference("storage", storageID)
		}
		sp.StorageID = storageID
		sp.UpdatedAt = m.now()
		return tx.UpdateSpace(sp)
	})
	if err != nil {
		return nil, err
	}

	spaceLog.Debug("space moved", "id", id, "storage", storageID)
	return sp, nil
}

// deleteSpaceCascade deletes the space's products with their attributes,
// then the space.
func deleteSpaceCascade(tx store.Tx, id string) error {
	products, err := tx.ProductsOf(id)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := deleteProductCascade(tx, p.ID); err != nil {
			return err
		}
	}
	return tx.DeleteSpace(id)
}
