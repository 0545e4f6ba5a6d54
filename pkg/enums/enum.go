// Package enums holds the closed string sets stored in the database and
// exchanged on the wire.
package enums

import (
	"fmt"
	"slices"
)

func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches an already normalized value against set.
func parse[T ~string](kind, raw, normalized string, set []T) (T, error) {
	if v := T(normalized); member(v, set) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
