// Package manager provides business logic and entity management for the
// inventory backend.
//
// This file contains the depth-bounded rendering of the containment tree.
package manager

import (
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

// =============================================================================
// Tree Nodes
// =============================================================================

// StorageNode is a storage with its rendered child storages and spaces.
// Children and Spaces are never nil; they are empty when the render depth
// was exhausted or the storage owns nothing.
type StorageNode struct {
	Storage  *store.Storage
	Children []*StorageNode
	Spaces   []*SpaceNode
}

// SpaceNode is a space with its rendered products.
type SpaceNode struct {
	Space    *store.Space
	Products []*ProductNode
}

// ProductNode is a product with all of its attributes ordered by key.
type ProductNode struct {
	Product    *store.Product
	Attributes []*store.Attribute
}

// Walk calls fn for n and every rendered storage below it, parents first.
func (n *StorageNode) Walk(fn func(*StorageNode)) {
	stack := []*StorageNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(cur)
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// CountNodes returns the number of rendered storages, spaces and products.
func (n *StorageNode) CountNodes() (storages, spaces, products int) {
	n.Walk(func(s *StorageNode) {
		storages++
		spaces += len(s.Spaces)
		for _, sp := range s.Spaces {
			products += len(sp.Products)
		}
	})
	return
}

// =============================================================================
// Rendering
// =============================================================================

// A node rendered with depth d lists its direct contents only when d > 0,
// each rendered with d-1. Depth 0 therefore yields the bare node.

func renderStorage(tx store.Tx, s *store.Storage, depth int) (*StorageNode, error) {
	node := &StorageNode{
		Storage:  s,
		Children: []*StorageNode{},
		Spaces:   []*SpaceNode{},
	}
	if depth <= 0 {
		return node, nil
	}

	children, err := tx.ChildStorages(s.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		cn, err := renderStorage(tx, c, depth-1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, cn)
	}

	spaces, err := tx.SpacesOf(s.ID)
	if err != nil {
		return nil, err
	}
	for _, sp := range spaces {
		sn, err := renderSpace(tx, sp, depth-1)
		if err != nil {
			return nil, err
		}
		node.Spaces = append(node.Spaces, sn)
	}
	return node, nil
}

func renderSpace(tx store.Tx, sp *store.Space, depth int) (*SpaceNode, error) {
	node := &SpaceNode{Space: sp, Products: []*ProductNode{}}
	if depth <= 0 {
		return node, nil
	}

	products, err := tx.ProductsOf(sp.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		pn, err := renderProduct(tx, p)
		if err != nil {
			return nil, err
		}
		node.Products = append(node.Products, pn)
	}
	return node, nil
}

// renderProduct always includes the attributes; they are part of the product.
func renderProduct(tx store.Tx, p *store.Product) (*ProductNode, error) {
	attrs, err := tx.AttributesOf(p.ID)
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = []*store.Attribute{}
	}
	return &ProductNode{Product: p, Attributes: attrs}, nil
}
