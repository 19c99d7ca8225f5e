package text

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/textscan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

const source = "text-scanner"

var (
	ruleThreshold = checks.RuleInfo{ID: "text.hardcoded-threshold", Description: "Hardcoded numeric threshold in a comparison; extract a named constant.", Severity: "low"}
	ruleTodo      = checks.RuleInfo{ID: "text.todo-fixme-density", Description: "Too many TODO/FIXME markers in one file.", Severity: "medium"}
	ruleRawSQL    = checks.RuleInfo{ID: "text.raw-sql", Description: "Raw SQL statement embedded in source.", Severity: "medium"}
	ruleConsole   = checks.RuleInfo{ID: "text.console-logging", Description: "Console logging left in source.", Severity: "low"}
	ruleSecret    = checks.RuleInfo{ID: "common.security.secret", Description: "Hardcoded credential or private key material.", Severity: "critical"}
)

var (
	thresholdRe = regexp.MustCompile(`(?:[<>]=?|[!=]==?)\s*-?\d{2,}(?:\.\d+)?\b`)
	constDeclRe = regexp.MustCompile(`\b(?:const|let|val|var|static)\s+[A-Z][A-Z0-9_]+\b`)
	markerRe    = regexp.MustCompile(`\b(?:TODO|FIXME|HACK|XXX)\b`)
	rawSQLRe    = regexp.MustCompile(`(?i)["'\x60]\s*(?:SELECT\s+[\w*,\s.()]+\s+FROM\s+\w+|INSERT\s+INTO\s+\w+|UPDATE\s+\w+\s+SET\s+|DELETE\s+FROM\s+\w+)`)
	secretRe    = regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret(?:[_-]?key)?|password|passwd|access[_-]?token|auth[_-]?token|client[_-]?secret)\b["']?\s*[:=]\s*["']([^"'\s$]{8,})["']`)
	placeholder = regexp.MustCompile(`(?i)(example|sample|dummy|changeme|your[_-]?api[_-]?key|your[_-]?token|replace[_-]?me|placeholder|xxxx|<[^>]*>)`)
	awsKeyRe    = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	pemKeyRe    = regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)

	consoleSwiftRe  = regexp.MustCompile(`(?:^|[^\w.])(?:print|debugPrint|NSLog)\s*\(`)
	consoleKotlinRe = regexp.MustCompile(`(?:^|[^\w.])println\s*\(|\bLog\s*\.\s*[dvi]\s*\(`)
	consoleScriptRe = regexp.MustCompile(`\bconsole\s*\.\s*(?:log|debug|info|warn|error|trace)\s*\(`)
)

func Checks() []checks.Check {
	return []checks.Check{
		{
			ID:          "TEXT_PATTERN_SCANNER",
			Family:      checks.FamilyText,
			Title:       "Text pattern scanner",
			Description: "Regex heuristics over every scoped file, including Swift, Kotlin and unparsable scripts.",
			Rules:       []checks.RuleInfo{ruleThreshold, ruleTodo, ruleRawSQL, ruleConsole, ruleSecret},
			Run:         CheckTextPatterns,
		},
	}
}

type file struct {
	path     string
	content  string
	parsed   bool
	unparsed bool
}

func scopedFiles(ctx *ctxpkg.Context) []file {
	var out []file
	if ctx == nil || ctx.Program == nil {
		return out
	}
	for _, p := range ctx.Program.SourcePaths() {
		out = append(out, file{path: p, content: ctx.Program.Files[p].Content, parsed: true})
	}
	for _, p := range ctx.Program.TextPaths() {
		tf := ctx.Program.Text[p]
		out = append(out, file{path: p, content: tf.Content, unparsed: tf.Unparsed})
	}
	return out
}

// CheckTextPatterns runs the regex heuristics. Console logging in parsed
// TS/JS is left to the AST heuristics so it is never reported twice.
func CheckTextPatterns(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	limit := ctx.Config.TodoDensityLimit
	if limit <= 0 {
		limit = 5
	}

	for _, f := range scopedFiles(ctx) {
		if ctx.Canceled() {
			break
		}
		masked := textscan.Mask(f.content)
		if f.parsed || f.unparsed {
			masked = maskScript(f.content)
		}
		test := ctxpkg.IsTestPath(f.path)

		if !test {
			if lines := thresholdLines(masked); len(lines) > 0 {
				findings = append(findings, checks.FileFinding(ruleThreshold, source, f.path, lines, ""))
			}
		}

		if markers := textscan.Lines(f.content, markerRe); len(markers) >= limit {
			finding := checks.FileFinding(ruleTodo, source, f.path, markers,
				fmt.Sprintf("%d TODO/FIXME markers (limit %d).", len(markers), limit))
			finding.Metrics["markers"] = float64(len(markers))
			findings = append(findings, finding)
		}

		if lines := textscan.Lines(f.content, rawSQLRe); len(lines) > 0 {
			findings = append(findings, checks.FileFinding(ruleRawSQL, source, f.path, lines, ""))
		}

		if re := consolePattern(f); re != nil && !test {
			if lines := textscan.Lines(masked, re); len(lines) > 0 {
				findings = append(findings, checks.FileFinding(ruleConsole, source, f.path, lines, ""))
			}
		}

		if !test {
			if lines := secretLines(f.content); len(lines) > 0 {
				findings = append(findings, checks.FileFinding(ruleSecret, source, f.path, lines, ""))
			}
		}
	}
	return findings, nil
}

func consolePattern(f file) *regexp.Regexp {
	switch strings.ToLower(path.Ext(f.path)) {
	case ".swift":
		return consoleSwiftRe
	case ".kt", ".kts":
		return consoleKotlinRe
	}
	if f.unparsed {
		return consoleScriptRe
	}
	return nil
}

func thresholdLines(masked string) []int {
	lines := strings.Split(masked, "\n")
	var out []int
	for i, line := range lines {
		if constDeclRe.MatchString(line) {
			continue
		}
		for _, m := range thresholdRe.FindAllStringIndex(line, -1) {
			// `=>` and `->` are arrows, not comparisons.
			if m[0] > 0 && line[m[0]] == '>' && (line[m[0]-1] == '=' || line[m[0]-1] == '-') {
				continue
			}
			out = append(out, i+1)
			break
		}
	}
	return out
}

func secretLines(content string) []int {
	seen := make(map[int]bool)
	var out []int
	add := func(l int) {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	idx := textscan.NewIndex(content)
	for _, m := range secretRe.FindAllStringSubmatchIndex(content, -1) {
		if placeholder.MatchString(content[m[2]:m[3]]) {
			continue
		}
		add(idx.Line(m[0]))
	}
	for _, re := range []*regexp.Regexp{awsKeyRe, pemKeyRe} {
		for _, l := range textscan.Lines(content, re) {
			add(l)
		}
	}
	sort.Ints(out)
	return out
}

// maskScript blanks JS comments and quoted strings. Template literals are
// blanked too; their substitutions rarely hold thresholds worth reporting.
func maskScript(src string) string {
	out := []byte(textscan.Mask(src))
	inQuote := byte(0)
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case inQuote != 0:
			if c == '\\' && i+1 < len(out) && out[i+1] != '\n' {
				out[i], out[i+1] = ' ', ' '
				i++
				continue
			}
			if c == inQuote {
				inQuote = 0
				continue
			}
			if c != '\n' {
				out[i] = ' '
			} else if inQuote != '`' {
				inQuote = 0
			}
		case c == '\'' || c == '`':
			inQuote = c
		}
	}
	return string(out)
}
