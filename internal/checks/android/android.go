package android

import (
	"regexp"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/textscan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

type detector struct {
	rule   checks.RuleInfo
	source string
	re     *regexp.Regexp
	unless *regexp.Regexp
}

// Heuristic detectors use the WARN vocabulary of the AST heuristics; the
// legacy text rules keep the lowercase scale of the text scanner.
var detectors = []detector{
	{
		rule:   checks.RuleInfo{ID: "heuristics.android.thread-sleep.ast", Description: "AST heuristic detected Thread.sleep usage in production Kotlin code.", Severity: "WARN"},
		source: "heuristics:text",
		re:     regexp.MustCompile(`\bThread\s*\.\s*sleep\s*\(`),
	},
	{
		rule:   checks.RuleInfo{ID: "heuristics.android.globalscope.ast", Description: "AST heuristic detected GlobalScope coroutine usage in production Kotlin code.", Severity: "WARN"},
		source: "heuristics:text",
		re:     regexp.MustCompile(`\bGlobalScope\s*\.\s*(?:launch|async|produce|actor)\b`),
	},
	{
		rule:   checks.RuleInfo{ID: "heuristics.android.run-blocking.ast", Description: "AST heuristic detected runBlocking usage in production Kotlin code.", Severity: "WARN"},
		source: "heuristics:text",
		re:     regexp.MustCompile(`\brunBlocking\s*(?:<[^>]*>\s*)?[({]`),
	},
	{
		rule:   checks.RuleInfo{ID: "android.asynctask", Description: "AsyncTask usage - deprecated, use Coroutines instead.", Severity: "high"},
		source: "text-scanner",
		re:     regexp.MustCompile(`\bAsyncTask\b`),
	},
	{
		rule:   checks.RuleInfo{ID: "android.findviewbyid", Description: "findViewById usage - use View Binding or Compose instead.", Severity: "high"},
		source: "text-scanner",
		re:     regexp.MustCompile(`\bfindViewById\s*(?:<[^>]*>\s*)?\(`),
	},
	{
		rule:   checks.RuleInfo{ID: "android.room.raw_sql", Description: "Raw SQL detected.", Severity: "high"},
		source: "text-scanner",
		re:     regexp.MustCompile(`(?i)\bRAW_QUERY\b|\bexecSQL\s*\(|\brawQuery\s*\(`),
	},
	{
		rule:   checks.RuleInfo{ID: "android.force_unwrapping", Description: "Force unwrapping (!!) detected.", Severity: "critical"},
		source: "text-scanner",
		re:     regexp.MustCompile(`[\w)\]]!!`),
	},
	{
		rule:   checks.RuleInfo{ID: "android.di.missing_hilt_app", Description: "Application without @HiltAndroidApp.", Severity: "high"},
		source: "text-scanner",
		re:     regexp.MustCompile(`\bclass\s+\w+\s*:\s*Application\b`),
		unless: regexp.MustCompile(`@HiltAndroidApp\b`),
	},
}

func Checks() []checks.Check {
	rules := make([]checks.RuleInfo, 0, len(detectors))
	for _, d := range detectors {
		rules = append(rules, d.rule)
	}
	return []checks.Check{
		{
			ID:          "ANDROID_KOTLIN_HEURISTICS",
			Family:      checks.FamilyAndroid,
			Title:       "Android Kotlin heuristics",
			Description: "Text heuristics over Kotlin sources with comments and string literals masked out.",
			Rules:       rules,
			Run:         CheckKotlinHeuristics,
		},
	}
}

// CheckKotlinHeuristics scans production Kotlin files of the Android app area.
func CheckKotlinHeuristics(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	for _, tf := range ctx.TextFiles(".kt", ".kts") {
		if ctx.Canceled() {
			break
		}
		if tf.Platform != platform.Android || isKotlinTestPath(tf.Path) {
			continue
		}
		masked := textscan.Mask(tf.Content)
		for _, d := range detectors {
			if d.unless != nil && d.unless.MatchString(masked) {
				continue
			}
			if lines := textscan.Lines(masked, d.re); len(lines) > 0 {
				findings = append(findings, checks.FileFinding(d.rule, d.source, tf.Path, lines, ""))
			}
		}
	}
	return findings, nil
}

func isKotlinTestPath(p string) bool {
	n := strings.ToLower(p)
	return strings.Contains(n, "/test/") || strings.Contains(n, "/androidtest/") ||
		strings.HasSuffix(n, "test.kt") || strings.HasSuffix(n, "tests.kt")
}
