package store

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// =============================================================================
// Entities
// =============================================================================

// Storage is a node of the containment tree.
//
// A storage has at most one parent; ParentID is empty for roots. Child
// storages and spaces are not stored on the entity, they are derived from
// the children's parent references (Tx.ChildStorages, Tx.SpacesOf).
type Storage struct {
	ID          string
	Name        string
	Description string
	ParentID    string

	// Seq is assigned on insert and orders sibling collections.
	Seq       int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRoot reports whether s has no parent.
func (s *Storage) IsRoot() bool {
	return s.ParentID == ""
}

// Clone returns a copy of s.
func (s *Storage) Clone() *Storage {
	c := *s
	return &c
}

// Space is a container inside a storage that holds products.
type Space struct {
	ID          string
	Name        string
	Size        *float64
	Description string
	StorageID   string

	Seq       int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy of s that shares no pointers with it.
func (s *Space) Clone() *Space {
	c := *s
	c.Size = cloneFloat(s.Size)
	return &c
}

// Product is an item inside a space.
type Product struct {
	ID          string
	Name        string
	Price       *float64
	Description string
	SpaceID     string

	Seq       int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy of p that shares no pointers with it.
func (p *Product) Clone() *Product {
	c := *p
	c.Price = cloneFloat(p.Price)
	return &c
}

// Attribute is a typed key/value fact about a product.
type Attribute struct {
	ProductID string
	Key       string
	Value     Value
	UpdatedAt time.Time
}

// Clone returns a copy of a.
func (a *Attribute) Clone() *Attribute {
	c := *a
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// =============================================================================
// Attribute Values
// =============================================================================

// ValueKind is the type tag of an attribute value.
type ValueKind uint8

const (
	KindText ValueKind = iota + 1
	KindNumber
	KindBool
)

// String returns the persisted name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// ParseValueKind parses a persisted kind name.
func ParseValueKind(s string) (ValueKind, error) {
	switch s {
	case "text":
		return KindText, nil
	case "number":
		return KindNumber, nil
	case "bool":
		return KindBool, nil
	default:
		return 0, fmt.Errorf("unknown attribute type %q", s)
	}
}

// Value is a closed tagged union of text, number and bool. The zero Value
// is invalid; construct values with Text, Number or Bool.
type Value struct {
	kind ValueKind
	text string
	num  float64
	b    bool
}

// Text returns a text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the type tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsValid reports whether v was built by one of the constructors.
func (v Value) IsValid() bool {
	switch v.kind {
	case KindText, KindBool:
		return true
	case KindNumber:
		return !math.IsNaN(v.num) && !math.IsInf(v.num, 0)
	default:
		return false
	}
}

// AsText returns the text payload.
func (v Value) AsText() (string, bool) {
	return v.text, v.kind == KindText
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Interface returns the payload as string, float64 or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// String renders the payload without its type tag.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// ValueOf converts a decoded JSON/protobuf scalar into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case string:
		return Text(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case Value:
		return t, nil
	default:
		return Value{}, fmt.Errorf("unsupported attribute value of type %T", x)
	}
}

// ParseTyped builds a Value from a kind name and its textual payload, as
// typed on the command line ("number", "12.5").
func ParseTyped(kind, raw string) (Value, error) {
	k, err := ParseValueKind(kind)
	if err != nil {
		return Value{}, err
	}
	switch k {
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse number %q: %w", raw, err)
		}
		return Number(f), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parse bool %q: %w", raw, err)
		}
		return Bool(b), nil
	default:
		return Text(raw), nil
	}
}
