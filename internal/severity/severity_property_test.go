//go:build property
// +build property

package severity_test

import (
	"testing"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: FromLegacy(ToLegacy(s)) == s for every internal level.
func TestLegacyBijection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("internal -> legacy -> internal is identity", prop.ForAll(
		func(i int) bool {
			s := severity.All[i]
			return s.Legacy().Internal() == s
		},
		gen.IntRange(0, len(severity.All)-1),
	))

	properties.Property("legacy -> internal -> legacy is identity", prop.ForAll(
		func(i int) bool {
			l := severity.AllLegacy[i]
			return l.Internal().Legacy() == l
		},
		gen.IntRange(0, len(severity.AllLegacy)-1),
	))

	properties.TestingRun(t)
}

// Property: Normalize is total and never produces an invalid level.
func TestNormalizeTotal(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("any token normalizes to a valid level", prop.ForAll(
		func(token string) bool {
			return severity.Normalize(token).Valid()
		},
		gen.AnyString(),
	))

	properties.Property("ordering is preserved through the alias", prop.ForAll(
		func(a, b int) bool {
			sa, sb := severity.All[a], severity.All[b]
			return severity.Compare(sa, sb) == severity.Compare(sa.Legacy().Internal(), sb.Legacy().Internal())
		},
		gen.IntRange(0, 3),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
