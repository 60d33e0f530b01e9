package manager

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/logging"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/validation"
)

var storageLog = logging.Component("manager.storage")

// =============================================================================
// Inputs
// =============================================================================

// StorageInput describes a new storage. An empty ParentID creates a root.
type StorageInput struct {
	Name        string
	Description string
	ParentID    string
}

// StorageUpdate is a partial update; nil fields are left unchanged.
type StorageUpdate struct {
	Name        *string
	Description *string
}

// IsEmpty reports whether the update changes nothing.
func (u StorageUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil
}

func (in StorageInput) validate() error {
	errs := errors.NewValidationErrors()
	errs.Add(validation.ValidateEntityName(in.Name))
	errs.Add(validation.ValidateDescription(in.Description))
	if err := validation.CheckOptionalRef("parent_id", in.ParentID); err != nil {
		return err
	}
	return errs.Err()
}

func (u StorageUpdate) validate() error {
	errs := errors.NewValidationErrors()
	if u.Name != nil {
		errs.Add(validation.ValidateEntityName(*u.Name))
	}
	if u.Description != nil {
		errs.Add(validation.ValidateDescription(*u.Description))
	}
	return errs.Err()
}

// =============================================================================
// StorageManager
// =============================================================================

// StorageManager is the storage hierarchy engine: it creates, reads,
// relocates, duplicates and deletes nodes of the containment tree.
//
// Trees returned by Get may be shared between concurrent callers and must
// be treated as read-only.
type StorageManager struct {
	*engine
	group singleflight.Group
}

// Create inserts a storage. With a ParentID it is appended to that
// parent's children, otherwise it becomes a root.
func (m *StorageManager) Create(ctx context.Context, in StorageInput) (*StorageNode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ts := m.now()
	s := &store.Storage{
		ID:          validation.NewID(),
		Name:        in.Name,
		Description: in.Description,
		ParentID:    in.ParentID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	err := m.write(ctx, "storage.create", func(tx store.Tx) error {
		if s.ParentID != "" {
			if err := tx.LockHierarchy(); err != nil {
				return err
			}
			if _, err := refStorage(tx, s.ParentID); err != nil {
				return err
			}
		}
		return tx.InsertStorage(s)
	})
	if err != nil {
		return nil, err
	}

	storageLog.Debug("storage created", "id", s.ID, "parent", s.ParentID)
	return &StorageNode{Storage: s, Children: []*StorageNode{}, Spaces: []*SpaceNode{}}, nil
}

// Get renders the storage and its contents down to maxDepth levels.
// A negative maxDepth selects the configured default; 0 renders the bare
// node.
//
// Identical concurrent reads share one transaction. A read only joins a
// flight started after the last committed write, so a caller always sees
// its own earlier writes. The shared transaction is not bound to any single
// caller's cancellation; each caller stops waiting when its own ctx ends.
func (m *StorageManager) Get(ctx context.Context, id string, maxDepth int) (*StorageNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	depth := m.depth(maxDepth)
	if err := ctx.Err(); err != nil {
		return nil, cancelled("storage.get", err)
	}

	key := fmt.Sprintf("%s/%d/%d", id, depth, m.gen.Load())
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		var node *StorageNode
		err := m.run(shared, "storage.get", func(tx store.Tx) error {
			s, err := tx.GetStorage(id)
			if err != nil {
				return err
			}
			node, err = renderStorage(tx, s, depth)
			return err
		})
		return node, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*StorageNode), nil
	case <-ctx.Done():
		return nil, cancelled("storage.get", ctx.Err())
	}
}

// cancelled reports a caller that stopped waiting. A passed deadline also
// matches ErrTimeout.
func cancelled(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, errors.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// List renders every root storage down to maxDepth levels.
func (m *StorageManager) List(ctx context.Context, maxDepth int) ([]*StorageNode, error) {
	depth := m.depth(maxDepth)

	nodes := []*StorageNode{}
	err := m.run(ctx, "storage.list", func(tx store.Tx) error {
		roots, err := tx.RootStorages()
		if err != nil {
			return err
		}
		for _, r := range roots {
			n, err := renderStorage(tx, r, depth)
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

// Update applies the non-nil fields of u. An empty update returns the
// storage unchanged, including its UpdatedAt.
func (m *StorageManager) Update(ctx context.Context, id string, u StorageUpdate) (*store.Storage, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := u.validate(); err != nil {
		return nil, err
	}

	var s *store.Storage
	err := m.write(ctx, "storage.update", func(tx store.Tx) error {
		var err error
		if s, err = tx.GetStorage(id); err != nil {
			return err
		}
		if u.IsEmpty() {
			return nil
		}
		if u.Name != nil {
			s.Name = *u.Name
		}
		if u.Description != nil {
			s.Description = *u.Description
		}
		s.UpdatedAt = m.now()
		return tx.UpdateStorage(s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Move reattaches the storage below newParentID, or makes it a root when
// newParentID is empty.
//
// If the new parent lies inside the storage's own subtree the configured
// CyclePolicy decides: RescueChildren first hands the storage's children
// to its current parent, RejectCycles fails with ErrCycleRejected. Moving
// a storage below itself always fails with ErrCycleRejected. Moving to the
// current parent only refreshes UpdatedAt.
func (m *StorageManager) Move(ctx context.Context, id, newParentID string) (*store.Storage, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := validation.CheckOptionalRef("parent_id", newParentID); err != nil {
		return nil, err
	}

	var s *store.Storage
	err := m.write(ctx, "storage.move", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		var err error
		if s, err = tx.GetStorage(id); err != nil {
			return err
		}

		if newParentID != "" {
			if newParentID == id {
				return fmt.Errorf("move storage %s below itself: %w", id, errors.ErrCycleRejected)
			}
			if _, err := refStorage(tx, newParentID); err != nil {
				return err
			}

			cycle, err := isAncestor(tx, id, newParentID)
			if err != nil {
				return err
			}
			if cycle {
				if err := m.cfg.CyclePolicy.Resolve(tx, s, m.now); err != nil {
					return err
				}
				if cycle, err = isAncestor(tx, id, newParentID); err != nil {
					return err
				} else if cycle {
					return fmt.Errorf("policy %s left a cycle at %s: %w",
						m.cfg.CyclePolicy.Name(), id, errors.ErrCycleRejected)
				}
			}
		}

		s.ParentID = newParentID
		s.UpdatedAt = m.now()
		return tx.UpdateStorage(s)
	})
	if err != nil {
		return nil, err
	}

	storageLog.Debug("storage moved", "id", id, "parent", newParentID)
	return s, nil
}

// isAncestor reports whether ancestorID lies on the parent chain of id,
// id itself included.
func isAncestor(tx store.Tx, ancestorID, id string) (bool, error) {
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		if cur == ancestorID {
			return true, nil
		}
		if seen[cur] {
			return false, fmt.Errorf("parent chain of %s loops at %s: %w", id, cur, errors.ErrInternal)
		}
		seen[cur] = true

		s, err := tx.GetStorage(cur)
		if err != nil {
			return false, err
		}
		cur = s.ParentID
	}
	return false, nil
}

// Delete removes the storage with everything it owns, transitively, and
// returns a snapshot of the subtree rendered at the default depth before
// deletion.
func (m *StorageManager) Delete(ctx context.Context, id string) (*StorageNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}

	var snapshot *StorageNode
	var removed int
	err := m.write(ctx, "storage.delete", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		s, err := tx.GetStorage(id)
		if err != nil {
			return err
		}
		if snapshot, err = renderStorage(tx, s, m.cfg.DefaultDepth); err != nil {
			return err
		}
		removed, err = deleteStorageTree(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	storageLog.Debug("storage deleted", "id", id, "storages", removed)
	return snapshot, nil
}

// subtreeIDs lists the storage ids of the subtree rooted at id, parents
// before children.
func subtreeIDs(tx store.Tx, id string) ([]string, error) {
	ids := []string{id}
	for i := 0; i < len(ids); i++ {
		children, err := tx.ChildStorages(ids[i])
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// deleteStorageTree deletes every storage of the subtree, children first,
// together with their spaces, products and attributes.
func deleteStorageTree(tx store.Tx, id string) (int, error) {
	ids, err := subtreeIDs(tx, id)
	if err != nil {
		return 0, err
	}
	for i := len(ids) - 1; i >= 0; i-- {
		spaces, err := tx.SpacesOf(ids[i])
		if err != nil {
			return 0, err
		}
		for _, sp := range spaces {
			if err := deleteSpaceCascade(tx, sp.ID); err != nil {
				return 0, err
			}
		}
		if err := tx.DeleteStorage(ids[i]); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// =============================================================================
// Copy
// =============================================================================

type productCopy struct {
	product *store.Product
	attrs   []*store.Attribute
}

type spaceCopy struct {
	space    *store.Space
	products []productCopy
}

type storageCopy struct {
	storage *store.Storage
	spaces  []spaceCopy
}

// Copy duplicates the storage subtree below newParentID (or as a root).
// Every storage, space and product of the copy gets a fresh id and a name
// carrying the copy suffix; attributes keep key and value. The source is
// read completely before the first insert, so copying a storage into its
// own subtree copies the subtree as it was.
func (m *StorageManager) Copy(ctx context.Context, id, newParentID string) (*StorageNode, error) {
	if err := validation.CheckID("id", id); err != nil {
		return nil, err
	}
	if err := validation.CheckOptionalRef("parent_id", newParentID); err != nil {
		return nil, err
	}

	var node *StorageNode
	err := m.write(ctx, "storage.copy", func(tx store.Tx) error {
		if err := tx.LockHierarchy(); err != nil {
			return err
		}
		if _, err := tx.GetStorage(id); err != nil {
			return err
		}
		if newParentID != "" {
			if _, err := refStorage(tx, newParentID); err != nil {
				return err
			}
		}

		plan, err := readSubtree(tx, id)
		if err != nil {
			return err
		}
		root, err := m.writeCopy(tx, plan, newParentID)
		if err != nil {
			return err
		}
		node, err = renderStorage(tx, root, m.cfg.DefaultDepth)
		return err
	})
	if err != nil {
		return nil, err
	}

	storageLog.Debug("storage copied", "source", id, "copy", node.Storage.ID, "parent", newParentID)
	return node, nil
}

// readSubtree loads the full subtree rooted at id, parents before children.
func readSubtree(tx store.Tx, id string) ([]storageCopy, error) {
	ids, err := subtreeIDs(tx, id)
	if err != nil {
		return nil, err
	}

	plan := make([]storageCopy, 0, len(ids))
	for _, sid := range ids {
		s, err := tx.GetStorage(sid)
		if err != nil {
			return nil, err
		}
		sc := storageCopy{storage: s}

		spaces, err := tx.SpacesOf(sid)
		if err != nil {
			return nil, err
		}
		for _, sp := range spaces {
			spc := spaceCopy{space: sp}
			products, err := tx.ProductsOf(sp.ID)
			if err != nil {
				return nil, err
			}
			for _, p := range products {
				attrs, err := tx.AttributesOf(p.ID)
				if err != nil {
					return nil, err
				}
				spc.products = append(spc.products, productCopy{product: p, attrs: attrs})
			}
			sc.spaces = append(sc.spaces, spc)
		}
		plan = append(plan, sc)
	}
	return plan, nil
}

// writeCopy inserts the duplicated plan and returns the new root.
func (m *StorageManager) writeCopy(tx store.Tx, plan []storageCopy, parentID string) (*store.Storage, error) {
	ts := m.now()
	newIDs := make(map[string]string, len(plan))

	var root *store.Storage
	for i, sc := range plan {
		parent := parentID
		if i > 0 {
			parent = newIDs[sc.storage.ParentID]
		}

		s := &store.Storage{
			ID:          validation.NewID(),
			Name:        sc.storage.Name + config.CopySuffix,
			Description: sc.storage.Description,
			ParentID:    parent,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		if err := tx.InsertStorage(s); err != nil {
			return nil, err
		}
		newIDs[sc.storage.ID] = s.ID
		if i == 0 {
			root = s
		}

		for _, spc := range sc.spaces {
			sp := spc.space.Clone()
			sp.ID = validation.NewID()
			sp.Name += config.CopySuffix
			sp.StorageID = s.ID
			sp.CreatedAt, sp.UpdatedAt = ts, ts
			if err := tx.InsertSpace(sp); err != nil {
				return nil, err
			}

			for _, pc := range spc.products {
				p := pc.product.Clone()
				p.ID = validation.NewID()
				p.Name += config.CopySuffix
				p.SpaceID = sp.ID
				p.CreatedAt, p.UpdatedAt = ts, ts
				if err := tx.InsertProduct(p); err != nil {
					return nil, err
				}

				for _, a := range pc.attrs {
					if err := tx.PutAttribute(&store.Attribute{
						ProductID: p.ID,
						Key:       a.Key,
						Value:     a.Value,
						UpdatedAt: ts,
					}); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return root, nil
}

// Exists reports whether a storage with id exists.
func (m *StorageManager) Exists(ctx context.Context, id string) (bool, error) {
	if err := validation.CheckID("id", id); err != nil {
		return false, err
	}

	var found bool
	err := m.run(ctx, "storage.exists", func(tx store.Tx) error {
		var err error
		found, err = storageExists(tx, id)
		return err
	})
	return found, err
}

func storageExists(tx store.Tx, id string) (bool, error) {
	_, err := tx.GetStorage(id)
	if errors.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
