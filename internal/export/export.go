// Package export writes inventory snapshots as Parquet files.
//
// A snapshot has one row per product, carrying the product's fields, its
// space and the slash-separated path of storage names down to that space.
// Attributes are stored as a repeated group of typed cells.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/store"
)

// =============================================================================
// Options
// =============================================================================

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{Compression: CompressionZstd}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "snappy":
		return CompressionSnappy, nil
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

func codec(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// =============================================================================
// Rows
// =============================================================================

// AttributeCell is one attribute in Parquet form. Value holds the textual
// rendering; Kind says how to parse it back.
type AttributeCell struct {
	Key   string `parquet:"key"`
	Kind  string `parquet:"kind,dict"`
	Value string `parquet:"value"`
}

// ProductRow is one product of the snapshot.
type ProductRow struct {
	ProductID   string          `parquet:"product_id"`
	Product     string          `parquet:"product,zstd"`
	Price       *float64        `parquet:"price,optional"`
	Description string          `parquet:"description,zstd"`
	SpaceID     string          `parquet:"space_id"`
	Space       string          `parquet:"space,zstd"`
	StorageID   string          `parquet:"storage_id"`
	StoragePath string          `parquet:"storage_path,zstd"`
	UpdatedAtMs int64           `parquet:"updated_at_ms"`
	Attributes  []AttributeCell `parquet:"attributes"`
}

// Values converts the attribute cells back into typed values.
func (r *ProductRow) Values() (map[string]store.Value, error) {
	out := make(map[string]store.Value, len(r.Attributes))
	for _, c := range r.Attributes {
		v, err := store.ParseTyped(c.Kind, c.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", c.Key, err)
		}
		out[c.Key] = v
	}
	return out, nil
}

// PathSeparator joins storage names in StoragePath.
const PathSeparator = " / "

// Collect reads the whole inventory in one transaction and returns one row
// per product, in tree order.
func Collect(ctx context.Context, gw store.Gateway) ([]ProductRow, error) {
	var rows []ProductRow
	err := gw.WithTx(ctx, func(tx store.Tx) error {
		rows = rows[:0]

		type item struct {
			storage *store.Storage
			path    []string
		}
		roots, err := tx.RootStorages()
		if err != nil {
			return err
		}
		stack := make([]item, 0, len(roots))
		for i := len(roots) - 1; i >= 0; i-- {
			stack = append(stack, item{storage: roots[i], path: []string{roots[i].Name}})
		}

		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			spaces, err := tx.SpacesOf(cur.storage.ID)
			if err != nil {
				return err
			}
			for _, sp := range spaces {
				products, err := tx.ProductsOf(sp.ID)
				if err != nil {
					return err
				}
				for _, p := range products {
					attrs, err := tx.AttributesOf(p.ID)
					if err != nil {
						return err
					}
					rows = append(rows, productRow(cur.storage, cur.path, sp, p, attrs))
				}
			}

			children, err := tx.ChildStorages(cur.storage.ID)
			if err != nil {
				return err
			}
			for i := len(children) - 1; i >= 0; i-- {
				c := children[i]
				path := append(append([]string(nil), cur.path...), c.Name)
				stack = append(stack, item{storage: c, path: path})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect snapshot: %w", err)
	}
	return rows, nil
}

func productRow(s *store.Storage, path []string, sp *store.Space, p *store.Product, attrs []*store.Attribute) ProductRow {
	row := ProductRow{
		ProductID:   p.ID,
		Product:     p.Name,
		Price:       p.Price,
		Description: p.Description,
		SpaceID:     sp.ID,
		Space:       sp.Name,
		StorageID:   s.ID,
		StoragePath: strings.Join(path, PathSeparator),
		UpdatedAtMs: p.UpdatedAt.UnixMilli(),
		Attributes:  make([]AttributeCell, 0, len(attrs)),
	}
	for _, a := range attrs {
		row.Attributes = append(row.Attributes, AttributeCell{
			Key:   a.Key,
			Kind:  a.Value.Kind().String(),
			Value: a.Value.String(),
		})
	}
	return row
}
