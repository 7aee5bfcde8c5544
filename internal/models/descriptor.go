package models

import (
	"errors"
	"fmt"
	"strings"
)

// Variant tags the shape of the source table.
type Variant string

const (
	// PerEntity is the small per-country CSV; key column "country".
	PerEntity Variant = "per_entity"
	// Bulk is the gzip-compressed full dataset; key column "location".
	Bulk Variant = "bulk"
)

// ParseVariant converts a user-supplied tag into a Variant.
// Empty input yields def.
func ParseVariant(s string, def Variant) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case string(PerEntity), "country", "entity":
		return PerEntity, nil
	case string(Bulk), "all":
		return Bulk, nil
	default:
		return "", fmt.Errorf("unknown source variant %q", s)
	}
}

// Descriptor identifies one remote table. It doubles as the cache key.
type Descriptor struct {
	Variant Variant
	Entity  string // empty for Bulk
}

// Validate checks the descriptor is well-formed for its variant.
func (d Descriptor) Validate() error {
	switch d.Variant {
	case PerEntity:
		if d.Entity == "" {
			return errors.New("per_entity descriptor requires an entity key")
		}
	case Bulk:
		if d.Entity != "" {
			return errors.New("bulk descriptor must not carry an entity key")
		}
	default:
		return fmt.Errorf("unknown variant %q", d.Variant)
	}
	return nil
}

// Key returns the cache key for the descriptor.
func (d Descriptor) Key() string {
	if d.Variant == Bulk {
		return string(Bulk)
	}
	return string(d.Variant) + ":" + d.Entity
}

func (d Descriptor) String() string {
	return d.Key()
}
