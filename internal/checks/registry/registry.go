// Package registry maps platforms to the analyzer checks that serve them.
package registry

import (
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/android"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/backend"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/common"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/frontend"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/ios"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/text"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
)

// ForPlatform returns the platform-specific checks. Other has none; its
// files are covered by the common and text families.
func ForPlatform(p platform.Platform) []checks.Check {
	switch p {
	case platform.Backend:
		return backend.Checks()
	case platform.Frontend:
		return frontend.Checks()
	case platform.IOS:
		return ios.Checks()
	case platform.Android:
		return android.Checks()
	case platform.Other:
		return nil
	default:
		return nil
	}
}

// DefaultChecks returns every check in family dispatch order.
func DefaultChecks() []checks.Check {
	var out []checks.Check
	for _, p := range []platform.Platform{platform.Backend, platform.Frontend, platform.Android, platform.IOS} {
		out = append(out, ForPlatform(p)...)
	}
	out = append(out, common.Checks()...)
	out = append(out, text.Checks()...)
	return out
}

// ForRun returns the checks of the detected platforms plus the
// platform-independent families, which always run.
func ForRun(detected platform.Set) []checks.Check {
	var out []checks.Check
	for _, p := range []platform.Platform{platform.Backend, platform.Frontend, platform.Android, platform.IOS} {
		if detected.Has(p) {
			out = append(out, ForPlatform(p)...)
		}
	}
	out = append(out, common.Checks()...)
	out = append(out, text.Checks()...)
	return out
}

// Rules returns every rule declaration of list, first declaration winning.
func Rules(list []checks.Check) []checks.RuleInfo {
	seen := make(map[string]bool)
	var out []checks.RuleInfo
	for _, c := range list {
		for _, r := range c.Rules {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

// Find returns the check with id.
func Find(list []checks.Check, id string) (checks.Check, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return checks.Check{}, false
}
