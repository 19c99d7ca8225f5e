// Package common holds the cross-platform analyzers. Repository-level checks
// (documentation, monorepo layout, BDD workflow) only run over a full
// repository scan; per-file checks run over whatever the scope contains.
package common

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/tsheuristics"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
)

const source = "common"

func Checks() []checks.Check {
	return []checks.Check{
		{
			ID:          "COMMON_DOCUMENTATION",
			Family:      checks.FamilyCommon,
			Title:       "Documentation coverage",
			Description: "README presence for the repository and architecture layers, and broken relative links in markdown.",
			Rules:       []checks.RuleInfo{ruleMissingReadme, ruleBrokenLink, ruleMissingAlt},
			Run:         CheckDocumentation,
		},
		{
			ID:          "COMMON_MONOREPO_HEALTH",
			Family:      checks.FamilyCommon,
			Title:       "Monorepo health",
			Description: "App count, circular dependencies between apps and cross-app coupling.",
			Rules:       []checks.RuleInfo{ruleExcessiveApps, ruleApproachingLimit, ruleCircularDeps, ruleExcessiveCoupling},
			Run:         CheckMonorepoHealth,
		},
		{
			ID:          "COMMON_NETWORK_RESILIENCE",
			Family:      checks.FamilyCommon,
			Title:       "Network resilience",
			Description: "Network calls without timeouts or retry policy, and apps without connectivity checks.",
			Rules:       []checks.RuleInfo{ruleMissingTimeout, ruleMissingRetry, ruleMissingConnectivity},
			Run:         CheckNetworkResilience,
		},
		{
			ID:          "COMMON_PUSH_NOTIFICATIONS",
			Family:      checks.FamilyCommon,
			Title:       "Push notification handling",
			Description: "Push registration without error handling or token refresh.",
			Rules:       []checks.RuleInfo{ruleMissingTokenRefresh, ruleMissingRegistrationError},
			Run:         CheckPushNotifications,
		},
		{
			ID:          "COMMON_IMAGE_LOADING",
			Family:      checks.FamilyCommon,
			Title:       "Image loading robustness",
			Description: "Remote images without placeholders and img elements without alt text.",
			Rules:       []checks.RuleInfo{ruleMissingPlaceholder, ruleMissingAlt},
			Run:         CheckImageLoading,
		},
		{
			ID:          "COMMON_BDD_WORKFLOW",
			Family:      checks.FamilyCommon,
			Title:       "BDD workflow",
			Description: "Feature file coverage relative to implementation volume.",
			Rules:       []checks.RuleInfo{ruleMissingFeatures, ruleInsufficientFeatures},
			Run:         CheckBDDWorkflow,
		},
		{
			ID:          "COMMON_TS_TOOLING_HEURISTICS",
			Family:      checks.FamilyCommon,
			Title:       "Shared tooling TypeScript heuristics",
			Description: "Shared TS heuristics over code outside app areas, when heuristic_scope is all.",
			Rules:       tsheuristics.Rules(tsheuristics.Shared),
			Run:         CheckToolingHeuristics,
		},
	}
}

// CheckToolingHeuristics runs the shared TS detectors over scripts with no
// app-area marker. Their findings are attributed to platforms by rule id.
func CheckToolingHeuristics(ctx *ctxpkg.Context) ([]report.Finding, error) {
	if !ctx.AllHeuristics() {
		return nil, nil
	}
	return tsheuristics.Scan(ctx, ctx.Scripts(platform.Other), tsheuristics.Shared), nil
}

func fullRepo(ctx *ctxpkg.Context) bool {
	return ctx != nil && ctx.Program != nil && ctx.Program.FullRepo && ctx.Root != ""
}

// walkRepo visits repo-relative paths of files under the root whose
// extension is one of exts, skipping ignored directories.
func walkRepo(ctx *ctxpkg.Context, exts []string, visit func(rel string)) error {
	return filepath.WalkDir(ctx.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == ctx.Root {
				return err
			}
			return nil
		}
		if ctx.Canceled() {
			return ctx.RequestContext.Err()
		}
		rel, rerr := filepath.Rel(ctx.Root, p)
		if rerr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if scope.Ignored(rel, ctx.Config.Ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if scope.Ignored(rel, ctx.Config.Ignore) {
			return nil
		}
		ext := strings.ToLower(path.Ext(rel))
		for _, e := range exts {
			if ext == e {
				visit(rel)
				break
			}
		}
		return nil
	})
}

type scopedFile struct {
	Path     string
	Content  string
	Platform platform.Platform
}

// scopeContents returns every scoped file, parsed or not, sorted by path
// within each group.
func scopeContents(ctx *ctxpkg.Context) []scopedFile {
	var out []scopedFile
	if ctx == nil || ctx.Program == nil {
		return out
	}
	for _, p := range ctx.Program.SourcePaths() {
		sf := ctx.Program.Files[p]
		out = append(out, scopedFile{Path: p, Content: sf.Content, Platform: sf.Platform})
	}
	for _, p := range ctx.Program.TextPaths() {
		tf := ctx.Program.Text[p]
		out = append(out, scopedFile{Path: p, Content: tf.Content, Platform: tf.Platform})
	}
	return out
}

func lineOf(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}
