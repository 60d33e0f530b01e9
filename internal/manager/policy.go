package manager

import (
	"fmt"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/config"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

// =============================================================================
// Cycle Policies
// =============================================================================

// CyclePolicy decides what happens when a storage move would place the
// storage below one of its own descendants.
//
// Resolve runs inside the move's transaction after the cycle was detected
// and before the storage is reattached. Returning nil lets the move proceed;
// the policy must leave the tree such that the move no longer closes a cycle.
type CyclePolicy interface {
	Name() string
	Resolve(tx store.Tx, moved *store.Storage, now timeFunc) error
}

// RescueChildren reattaches every direct child of the moved storage to the
// moved storage's current parent (or makes it a root) and then lets the
// move proceed. The new parent is a descendant of the moved storage, so it
// hangs below one of those children afterwards and stays connected.
type RescueChildren struct{}

// Name implements CyclePolicy.
func (RescueChildren) Name() string { return config.CyclePolicyRescue }

// Resolve implements CyclePolicy.
func (RescueChildren) Resolve(tx store.Tx, moved *store.Storage, now timeFunc) error {
	children, err := tx.ChildStorages(moved.ID)
	if err != nil {
		return err
	}
	ts := now()
	for _, child := range children {
		child.ParentID = moved.ParentID
		child.UpdatedAt = ts
		if err := tx.UpdateStorage(child); err != nil {
			return fmt.Errorf("rescue child %s: %w", child.ID, err)
		}
	}
	storageLog.Warn("cycle resolved by reparenting children",
		"storage", moved.ID,
		"children", len(children),
		"to_parent", moved.ParentID)
	return nil
}

// RejectCycles refuses every cycle-inducing move.
type RejectCycles struct{}

// Name implements CyclePolicy.
func (RejectCycles) Name() string { return config.CyclePolicyReject }

// Resolve implements CyclePolicy.
func (RejectCycles) Resolve(_ store.Tx, moved *store.Storage, _ timeFunc) error {
	return fmt.Errorf("move storage %s below its own descendant: %w", moved.ID, errors.ErrCycleRejected)
}

// ParseCyclePolicy maps a configuration value to a policy. An empty name
// selects the default.
func ParseCyclePolicy(name string) (CyclePolicy, error) {
	switch name {
	case "", config.CyclePolicyRescue:
		return RescueChildren{}, nil
	case config.CyclePolicyReject:
		return RejectCycles{}, nil
	default:
		return nil, fmt.Errorf("cycle policy %q: %w", name, errors.ErrInvalidConfig)
	}
}
