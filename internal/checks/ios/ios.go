package ios

import (
	"regexp"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/textscan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

const source = "heuristics:text"

type detector struct {
	rule       checks.RuleInfo
	find       func(masked string) []int
	skipBridge bool
}

func rule(id, description string) checks.RuleInfo {
	return checks.RuleInfo{ID: id, Description: description, Severity: "WARN"}
}

func pattern(expr string) func(string) []int {
	re := regexp.MustCompile(expr)
	return func(masked string) []int { return textscan.Lines(masked, re) }
}

var detectors = []detector{
	{rule: rule("heuristics.ios.force-unwrap.ast", "AST heuristic detected force unwrap usage."), find: forceUnwrapLines},
	{rule: rule("heuristics.ios.anyview.ast", "AST heuristic detected AnyView usage."), find: pattern(`\bAnyView\b`)},
	{rule: rule("heuristics.ios.force-try.ast", "AST heuristic detected force try usage."), find: pattern(`\btry\s*!`)},
	{rule: rule("heuristics.ios.force-cast.ast", "AST heuristic detected force cast usage."), find: pattern(`\bas\s*!`)},
	{rule: rule("heuristics.ios.callback-style.ast", "AST heuristic detected callback-style API signature outside bridge layers."), find: callbackStyleLines, skipBridge: true},
	{rule: rule("heuristics.ios.dispatchqueue.ast", "AST heuristic detected DispatchQueue usage."), find: pattern(`\bDispatchQueue\s*\.`)},
	{rule: rule("heuristics.ios.dispatchgroup.ast", "AST heuristic detected DispatchGroup usage."), find: pattern(`\bDispatchGroup\b`)},
	{rule: rule("heuristics.ios.dispatchsemaphore.ast", "AST heuristic detected DispatchSemaphore usage."), find: pattern(`\bDispatchSemaphore\b`)},
	{rule: rule("heuristics.ios.operation-queue.ast", "AST heuristic detected OperationQueue usage."), find: pattern(`\bOperationQueue\b`)},
	{rule: rule("heuristics.ios.task-detached.ast", "AST heuristic detected Task.detached usage."), find: pattern(`\bTask\s*\.\s*detached\b`)},
	{rule: rule("heuristics.ios.unchecked-sendable.ast", "AST heuristic detected @unchecked Sendable usage."), find: pattern(`@unchecked\s+Sendable\b`)},
	{rule: rule("heuristics.ios.observable-object.ast", "AST heuristic detected ObservableObject usage."), find: pattern(`\bObservableObject\b`)},
	{rule: rule("heuristics.ios.navigation-view.ast", "AST heuristic detected NavigationView usage."), find: pattern(`\bNavigationView\b`)},
	{rule: rule("heuristics.ios.on-tap-gesture.ast", "AST heuristic detected onTapGesture usage where Button may be preferred."), find: pattern(`\bonTapGesture\b`)},
	{rule: rule("heuristics.ios.string-format.ast", "AST heuristic detected String(format:) usage."), find: pattern(`\bString\s*\(\s*format\s*:`)},
	{rule: rule("heuristics.ios.uiscreen-main-bounds.ast", "AST heuristic detected UIScreen.main.bounds usage."), find: pattern(`\bUIScreen\s*\.\s*main\s*\.\s*bounds\b`)},
}

func Checks() []checks.Check {
	rules := make([]checks.RuleInfo, 0, len(detectors))
	for _, d := range detectors {
		rules = append(rules, d.rule)
	}
	return []checks.Check{
		{
			ID:          "IOS_SWIFT_HEURISTICS",
			Family:      checks.FamilyIOS,
			Title:       "iOS Swift heuristics",
			Description: "Text heuristics over Swift sources with comments and string literals masked out.",
			Rules:       rules,
			Run:         CheckSwiftHeuristics,
		},
	}
}

// CheckSwiftHeuristics scans production Swift files of the iOS app area.
func CheckSwiftHeuristics(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	for _, tf := range ctx.TextFiles(".swift") {
		if ctx.Canceled() {
			break
		}
		if tf.Platform != platform.IOS || isSwiftTestPath(tf.Path) {
			continue
		}
		masked := textscan.Mask(tf.Content)
		bridge := isBridgePath(tf.Path)
		for _, d := range detectors {
			if d.skipBridge && bridge {
				continue
			}
			if lines := d.find(masked); len(lines) > 0 {
				findings = append(findings, checks.FileFinding(d.rule, source, tf.Path, lines, ""))
			}
		}
	}
	return findings, nil
}

func isSwiftTestPath(p string) bool {
	return strings.Contains(p, "/Tests/") || strings.Contains(p, "/tests/") ||
		strings.HasSuffix(p, "Tests.swift") || strings.HasSuffix(p, "Test.swift")
}

func isBridgePath(p string) bool {
	n := strings.ToLower(p)
	return strings.Contains(n, "/bridge/") || strings.Contains(n, "/bridges/") || strings.HasSuffix(n, "bridge.swift")
}

var (
	escapingParam  = regexp.MustCompile(`\b(?:completion|handler|callback)\s*:\s*(?:@[A-Za-z0-9_]+\s+)?@escaping\b`)
	escapingVoidFn = regexp.MustCompile(`\bfunc\b[\s\S]{0,180}@escaping[\s\S]{0,120}->\s*Void\b`)
	escapingAttr   = regexp.MustCompile(`@escaping\b`)
)

func callbackStyleLines(masked string) []int {
	idx := textscan.NewIndex(masked)
	var lines []int
	last := 0
	for _, m := range escapingAttr.FindAllStringIndex(masked, -1) {
		start := m[0] - 180
		if start < 0 {
			start = 0
		}
		end := m[0] + 260
		if end > len(masked) {
			end = len(masked)
		}
		segment := masked[start:end]
		if !escapingParam.MatchString(segment) && !escapingVoidFn.MatchString(segment) {
			continue
		}
		if line := idx.Line(m[0]); line != last {
			lines = append(lines, line)
			last = line
		}
	}
	return lines
}

// forceUnwrapLines finds postfix `!` directly after an expression. Negation,
// `!=`, `as!`, `try!` and implicitly unwrapped type annotations are skipped.
func forceUnwrapLines(masked string) []int {
	idx := textscan.NewIndex(masked)
	var lines []int
	last := 0
	for i := 1; i < len(masked); i++ {
		if masked[i] != '!' {
			continue
		}
		prev := masked[i-1]
		if !textscan.IsIdent(prev) && prev != ')' && prev != ']' && prev != '}' {
			continue
		}
		if next := nextNonSpace(masked, i+1); next == '=' || next == '!' {
			continue
		}
		if textscan.IsIdent(prev) {
			start := i - 1
			for start > 0 && textscan.IsIdent(masked[start-1]) {
				start--
			}
			word := masked[start:i]
			if word == "as" || word == "try" || word[0] >= '0' && word[0] <= '9' {
				continue
			}
			if prevNonSpace(masked, start-1) == ':' {
				continue
			}
		}
		if line := idx.Line(i); line != last {
			lines = append(lines, line)
			last = line
		}
	}
	return lines
}

func nextNonSpace(s string, i int) byte {
	for ; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			return s[i]
		}
	}
	return 0
}

func prevNonSpace(s string, i int) byte {
	for ; i >= 0; i-- {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			return s[i]
		}
	}
	return 0
}
