// Package validation provides centralized input validation.
//
// Every identifier, name and numeric field that reaches the engine passes
// through here before a transaction is opened.
package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

// =============================================================================
// Identifier Validation
// =============================================================================

// idLength is the length of a canonical hyphenated UUID.
const idLength = 36

// ValidateID checks that id is a canonical, lowercase, hyphenated UUID.
//
// uuid.Parse alone also accepts the urn:uuid: and braced forms; those are
// rejected so that one entity has exactly one spelling.
func ValidateID(id string) error {
	if len(id) != idLength {
		return fmt.Errorf("expected %d characters, got %d: %w", idLength, len(id), errors.ErrInvalidIdentifier)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidIdentifier)
	}
	if strings.ToLower(id) != id {
		return fmt.Errorf("identifier must be lowercase: %w", errors.ErrInvalidIdentifier)
	}
	return nil
}

// CheckID validates id and wraps failures with the field name.
func CheckID(field, id string) error {
	if err := ValidateID(id); err != nil {
		return errors.NewInvalidIdentifier(field, id)
	}
	return nil
}

// CheckRef validates a referenced id. A malformed reference matches both
// ErrInvalidReference and ErrInvalidIdentifier.
func CheckRef(field, id string) error {
	if err := ValidateID(id); err != nil {
		return errors.NewMalformedReference(field, id)
	}
	return nil
}

// CheckOptionalRef is CheckRef for references where "" means "none".
func CheckOptionalRef(field, id string) error {
	if id == "" {
		return nil
	}
	return CheckRef(field, id)
}

// NewID returns a fresh identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for entity names.
type NameRules struct {
	MinLength int
	MaxLength int
}

// DefaultNameRules returns the default rules for entity names.
func DefaultNameRules() NameRules {
	return NameRules{
		MinLength: 1,
		MaxLength: 255,
	}
}

// AttributeKeyRules returns the rules for attribute keys.
func AttributeKeyRules() NameRules {
	return NameRules{
		MinLength: 1,
		MaxLength: 128,
	}
}

// ValidateName validates a name according to the given rules.
//
// Storage, space and product names are free text ("Hall A", "Shelf 3 (left)"),
// so only length, surrounding whitespace and control characters are checked.
func ValidateName(name string, rules NameRules) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be blank: %w", errors.ErrInvalidName)
	}
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required: %w", rules.MinLength, errors.ErrInvalidName)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed: %w", rules.MaxLength, errors.ErrInvalidName)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("name cannot start or end with whitespace: %w", errors.ErrInvalidName)
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d: %w", i, errors.ErrInvalidName)
		}
	}

	return nil
}

// ValidateEntityName validates an entity name with default rules.
func ValidateEntityName(name string) error {
	return ValidateName(name, DefaultNameRules())
}

// ValidateAttributeKey validates an attribute key.
func ValidateAttributeKey(key string) error {
	return ValidateName(key, AttributeKeyRules())
}

// ValidateDescription rejects descriptions with NUL bytes or beyond 4096 bytes.
func ValidateDescription(desc string) error {
	if len(desc) > 4096 {
		return errors.NewValidation("description", "too long: maximum 4096 characters")
	}
	if strings.ContainsRune(desc, 0) {
		return errors.NewValidation("description", "null bytes not allowed")
	}
	return nil
}

// =============================================================================
// Numeric Validation
// =============================================================================

// ValidateNonNegative checks an optional quantity such as a size or a price.
// A nil value means "not set" and is always valid.
func ValidateNonNegative(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return errors.NewValidation(field, "must be a finite number")
	}
	if *v < 0 {
		return errors.NewValidation(field, fmt.Sprintf("must not be negative, got %g", *v))
	}
	return nil
}

// ClampDepth maps a requested render depth onto [0, max]. Negative values
// select def.
func ClampDepth(depth, def, max int) int {
	if depth < 0 {
		depth = def
	}
	if depth > max {
		depth = max
	}
	return depth
}
