package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

// =============================================================================
// In-Memory Gateway
// =============================================================================

// memState is one immutable generation of the in-memory data.
type memState struct {
	seq        int64
	storages   map[string]*Storage
	spaces     map[string]*Space
	products   map[string]*Product
	attributes map[string]map[string]*Attribute // product id -> key -> attribute
}

func newMemState() *memState {
	return &memState{
		storages:   make(map[string]*Storage),
		spaces:     make(map[string]*Space),
		products:   make(map[string]*Product),
		attributes: make(map[string]map[string]*Attribute),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:        s.seq,
		storages:   make(map[string]*Storage, len(s.storages)),
		spaces:     make(map[string]*Space, len(s.spaces)),
		products:   make(map[string]*Product, len(s.products)),
		attributes: make(map[string]map[string]*Attribute, len(s.attributes)),
	}
	for id, v := range s.storages {
		c.storages[id] = v.Clone()
	}
	for id, v := range s.spaces {
		c.spaces[id] = v.Clone()
	}
	for id, v := range s.products {
		c.products[id] = v.Clone()
	}
	for pid, attrs := range s.attributes {
		m := make(map[string]*Attribute, len(attrs))
		for k, a := range attrs {
			m[k] = a.Clone()
		}
		c.attributes[pid] = m
	}
	return c
}

// MemStore is an in-process Gateway. Transactions are serialized by a single
// mutex and run against a private copy of the data that replaces the shared
// state only when fn succeeds.
type MemStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

// IsEmpty reports whether no storage exists yet.
func (m *MemStore) IsEmpty(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.storages) == 0, nil
}

// WithTx implements Gateway.
func (m *MemStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before commit: %w", err)
	}
	m.state = tx.state
	return nil
}

// memTx implements Tx on a private memState. Values handed out are copies,
// so callers may mutate them freely before writing them back.
type memTx struct {
	state *memState
}

// LockHierarchy is a no-op; MemStore transactions are already serial.
func (t *memTx) LockHierarchy() error { return nil }

func (t *memTx) nextSeq() int64 {
	t.state.seq++
	return t.state.seq
}

func stamp(updated *time.Time) {
	if updated.IsZero() {
		*updated = time.Now().UTC()
	}
}

// --- storages ---

func (t *memTx) GetStorage(id string) (*Storage, error) {
	s, ok := t.state.storages[id]
	if !ok {
		return nil, errors.NewNotFound("storage", id)
	}
	return s.Clone(), nil
}

func (t *memTx) collectStorages(match func(*Storage) bool) []*Storage {
	var out []*Storage
	for _, s := range t.state.storages {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (t *memTx) RootStorages() ([]*Storage, error) {
	return t.collectStorages(func(s *Storage) bool { return s.ParentID == "" }), nil
}

func (t *memTx) ChildStorages(parentID string) ([]*Storage, error) {
	return t.collectStorages(func(s *Storage) bool { return s.ParentID == parentID && parentID != "" }), nil
}

func (t *memTx) InsertStorage(s *Storage) error {
	if _, ok := t.state.storages[s.ID]; ok {
		return fmt.Errorf("insert storage %s: duplicate id", s.ID)
	}
	stamp(&s.UpdatedAt)
	s.Seq = t.nextSeq()
	t.state.storages[s.ID] = s.Clone()
	return nil
}

func (t *memTx) UpdateStorage(s *Storage) error {
	cur, ok := t.state.storages[s.ID]
	if !ok {
		return errors.NewNotFound("storage", s.ID)
	}
	c := s.Clone()
	c.Seq = cur.Seq
	c.CreatedAt = cur.CreatedAt
	t.state.storages[s.ID] = c
	return nil
}

func (t *memTx) DeleteStorage(id string) error {
	if _, ok := t.state.storages[id]; !ok {
		return errors.NewNotFound("storage", id)
	}
	delete(t.state.storages, id)
	return nil
}

// --- spaces ---

func (t *memTx) GetSpace(id string) (*Space, error) {
	s, ok := t.state.spaces[id]
	if !ok {
		return nil, errors.NewNotFound("space", id)
	}
	return s.Clone(), nil
}

func (t *memTx) collectSpaces(match func(*Space) bool) []*Space {
	var out []*Space
	for _, s := range t.state.spaces {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (t *memTx) ListSpaces() ([]*Space, error) {
	return t.collectSpaces(func(*Space) bool { return true }), nil
}

func (t *memTx) SpacesOf(storageID string) ([]*Space, error) {
	return t.collectSpaces(func(s *Space) bool { return s.StorageID == storageID }), nil
}

func (t *memTx) InsertSpace(s *Space) error {
	if _, ok := t.state.spaces[s.ID]; ok {
		return fmt.Errorf("insert space %s: duplicate id", s.ID)
	}
	stamp(&s.UpdatedAt)
	s.Seq = t.nextSeq()
	t.state.spaces[s.ID] = s.Clone()
	return nil
}

func (t *memTx) UpdateSpace(s *Space) error {
	cur, ok := t.state.spaces[s.ID]
	if !ok {
		return errors.NewNotFound("space", s.ID)
	}
	c := s.Clone()
	c.Seq = cur.Seq
	c.CreatedAt = cur.CreatedAt
	t.state.spaces[s.ID] = c
	return nil
}

func (t *memTx) DeleteSpace(id string) error {
	if _, ok := t.state.spaces[id]; !ok {
		return errors.NewNotFound("space", id)
	}
	delete(t.state.spaces, id)
	return nil
}

// --- products ---

func (t *memTx) GetProduct(id string) (*Product, error) {
	p, ok := t.state.products[id]
	if !ok {
		return nil, errors.NewNotFound("product", id)
	}
	return p.Clone(), nil
}

func (t *memTx) collectProducts(match func(*Product) bool) []*Product {
	var out []*Product
	for _, p := range t.state.products {
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (t *memTx) ListProducts() ([]*Product, error) {
	return t.collectProducts(func(*Product) bool { return true }), nil
}

func (t *memTx) ProductsOf(spaceID string) ([]*Product, error) {
	return t.collectProducts(func(p *Product) bool { return p.SpaceID == spaceID }), nil
}

func (t *memTx) InsertProduct(p *Product) error {
	if _, ok := t.state.products[p.ID]; ok {
		return fmt.Errorf("insert product %s: duplicate id", p.ID)
	}
	stamp(&p.UpdatedAt)
	p.Seq = t.nextSeq()
	t.state.products[p.ID] = p.Clone()
	return nil
}

func (t *memTx) UpdateProduct(p *Product) error {
	cur, ok := t.state.products[p.ID]
	if !ok {
		return errors.NewNotFound("product", p.ID)
	}
	c := p.Clone()
	c.Seq = cur.Seq
	c.CreatedAt = cur.CreatedAt
	t.state.products[p.ID] = c
	return nil
}

func (t *memTx) DeleteProduct(id string) error {
	if _, ok := t.state.products[id]; !ok {
		return errors.NewNotFound("product", id)
	}
	delete(t.state.products, id)
	return nil
}

// --- attributes ---

func (t *memTx) GetAttribute(productID, key string) (*Attribute, error) {
	a, ok := t.state.attributes[productID][key]
	if !ok {
		return nil, errors.NewNotFound("attribute", productID+"/"+key)
	}
	return a.Clone(), nil
}

func (t *memTx) AttributesOf(productID string) ([]*Attribute, error) {
	attrs := t.state.attributes[productID]
	out := make([]*Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (t *memTx) PutAttribute(a *Attribute) error {
	if !a.Value.IsValid() {
		return errors.NewValidation("attribute value", "missing or non-finite")
	}
	stamp(&a.UpdatedAt)
	attrs, ok := t.state.attributes[a.ProductID]
	if !ok {
		attrs = make(map[string]*Attribute)
		t.state.attributes[a.ProductID] = attrs
	}
	attrs[a.Key] = a.Clone()
	return nil
}

func (t *memTx) DeleteAttribute(productID, key string) (bool, error) {
	attrs := t.state.attributes[productID]
	if _, ok := attrs[key]; !ok {
		return false, nil
	}
	delete(attrs, key)
	if len(attrs) == 0 {
		delete(t.state.attributes, productID)
	}
	return true, nil
}
