package wire

import (
	"fmt"
	"math"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

// Args are the arguments of a request, decoded from a protobuf Struct.
// Numbers arrive as float64.
type Args map[string]any

// Has reports whether key is present and not null.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", errors.NewMissingField(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidation(key, fmt.Sprintf("expected string, got %T", v))
	}
	return s, nil
}

// OptString returns a string argument, or "" when absent.
func (a Args) OptString(key string) (string, error) {
	if !a.Has(key) {
		return "", nil
	}
	return a.String(key)
}

// StringPtr returns nil when the argument is absent, for partial updates.
func (a Args) StringPtr(key string) (*string, error) {
	if !a.Has(key) {
		return nil, nil
	}
	s, err := a.String(key)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FloatPtr returns a numeric argument, or nil when absent.
func (a Args) FloatPtr(key string) (*float64, error) {
	if !a.Has(key) {
		return nil, nil
	}
	f, ok := a[key].(float64)
	if !ok {
		return nil, errors.NewValidation(key, fmt.Sprintf("expected number, got %T", a[key]))
	}
	return &f, nil
}

// Int returns an integer argument, or def when absent.
func (a Args) Int(key string, def int) (int, error) {
	if !a.Has(key) {
		return def, nil
	}
	f, ok := a[key].(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errors.NewValidation(key, "expected integer")
	}
	return int(f), nil
}

// Bool returns a boolean argument, or false when absent.
func (a Args) Bool(key string) (bool, error) {
	if !a.Has(key) {
		return false, nil
	}
	b, ok := a[key].(bool)
	if !ok {
		return false, errors.NewValidation(key, fmt.Sprintf("expected bool, got %T", a[key]))
	}
	return b, nil
}

// Object returns a nested object argument, or nil when absent.
func (a Args) Object(key string) (map[string]any, error) {
	if !a.Has(key) {
		return nil, nil
	}
	m, ok := a[key].(map[string]any)
	if !ok {
		return nil, errors.NewValidation(key, "expected object")
	}
	return m, nil
}
