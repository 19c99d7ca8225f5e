package rules

import (
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/canonical"
)

// CanonicalHash returns the hex sha256 of the canonical JSON form of v.
func CanonicalHash(v any) (string, error) {
	return canonical.Hash(v)
}

func mustHash(v any) string {
	h, err := canonical.Hash(v)
	if err != nil {
		return ""
	}
	return h
}
