package store

import "context"

// Gateway opens atomic transaction scopes. Either every read and write that
// fn performs through its Tx is applied, or none is.
type Gateway interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of lookup/insert/update/delete primitives available inside a
// transaction. Lookups of a missing entity return an error wrapping
// ErrNotFound. Collections are returned in sequence order unless noted.
//
// A Tx must not be used after the function it was passed to returns.
type Tx interface {
	// LockHierarchy marks the transaction as a structural change. Two
	// concurrent transactions that both call it cannot both commit.
	LockHierarchy() error

	GetStorage(id string) (*Storage, error)
	RootStorages() ([]*Storage, error)
	ChildStorages(parentID string) ([]*Storage, error)
	InsertStorage(s *Storage) error
	UpdateStorage(s *Storage) error
	DeleteStorage(id string) error

	GetSpace(id string) (*Space, error)
	ListSpaces() ([]*Space, error)
	SpacesOf(storageID string) ([]*Space, error)
	InsertSpace(s *Space) error
	UpdateSpace(s *Space) error
	DeleteSpace(id string) error

	GetProduct(id string) (*Product, error)
	ListProducts() ([]*Product, error)
	ProductsOf(spaceID string) ([]*Product, error)
	InsertProduct(p *Product) error
	UpdateProduct(p *Product) error
	DeleteProduct(id string) error

	GetAttribute(productID, key string) (*Attribute, error)
	// AttributesOf returns the product's attributes ordered by key.
	AttributesOf(productID string) ([]*Attribute, error)
	// PutAttribute creates the attribute or replaces kind and value of the
	// existing one with the same key.
	PutAttribute(a *Attribute) error
	// DeleteAttribute reports whether an attribute was removed.
	DeleteAttribute(productID, key string) (bool, error)
}
