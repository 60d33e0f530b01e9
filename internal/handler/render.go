package handler

import (
	"time"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/manager"
	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

// =============================================================================
// Result Rendering
// =============================================================================

// Results are rendered into plain maps and slices so that the same value
// can be encoded as a protobuf Struct on the wire and as JSON over HTTP.

func renderTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func renderFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func renderStorage(s *store.Storage) map[string]any {
	m := map[string]any{
		"id":          s.ID,
		"name":        s.Name,
		"description": s.Description,
		"parent_id":   nil,
		"created_at":  renderTime(s.CreatedAt),
		"updated_at":  renderTime(s.UpdatedAt),
	}
	if s.ParentID != "" {
		m["parent_id"] = s.ParentID
	}
	return m
}

func renderStorageNode(n *manager.StorageNode) map[string]any {
	m := renderStorage(n.Storage)
	children := make([]any, 0, len(n.Children))
	for _, c := range n.Children {
		children = append(children, renderStorageNode(c))
	}
	spaces := make([]any, 0, len(n.Spaces))
	for _, sp := range n.Spaces {
		spaces = append(spaces, renderSpaceNode(sp))
	}
	m["children"] = children
	m["spaces"] = spaces
	return m
}

func renderStorageNodes(nodes []*manager.StorageNode) []any {
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, renderStorageNode(n))
	}
	return out
}

func renderSpace(sp *store.Space) map[string]any {
	return map[string]any{
		"id":          sp.ID,
		"name":        sp.Name,
		"size":        renderFloat(sp.Size),
		"description": sp.Description,
		"storage_id":  sp.StorageID,
		"created_at":  renderTime(sp.CreatedAt),
		"updated_at":  renderTime(sp.UpdatedAt),
	}
}

func renderSpaceNode(n *manager.SpaceNode) map[string]any {
	m := renderSpace(n.Space)
	products := make([]any, 0, len(n.Products))
	for _, p := range n.Products {
		products = append(products, renderProductNode(p))
	}
	m["products"] = products
	return m
}

func renderProduct(p *store.Product) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"price":       renderFloat(p.Price),
		"description": p.Description,
		"space_id":    p.SpaceID,
		"created_at":  renderTime(p.CreatedAt),
		"updated_at":  renderTime(p.UpdatedAt),
	}
}

func renderProducts(products []*store.Product) []any {
	out := make([]any, 0, len(products))
	for _, p := range products {
		out = append(out, renderProduct(p))
	}
	return out
}

func renderProductNode(n *manager.ProductNode) map[string]any {
	m := renderProduct(n.Product)
	m["attributes"] = renderAttributes(n.Attributes)
	return m
}

func renderAttribute(a *store.Attribute) map[string]any {
	return map[string]any{
		"key":   a.Key,
		"type":  a.Value.Kind().String(),
		"value": a.Value.Interface(),
	}
}

func renderAttributes(attrs []*store.Attribute) []any {
	out := make([]any, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, renderAttribute(a))
	}
	return out
}

func renderStats(snaps []manager.OpSnapshot) []any {
	out := make([]any, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, map[string]any{
			"op":     s.Op,
			"calls":  s.Calls,
			"errors": s.Errors,
			"p50_ms": s.P50Ms,
			"p90_ms": s.P90Ms,
			"p99_ms": s.P99Ms,
			"max_ms": s.MaxMs,
		})
	}
	return out
}
