// Package tsheuristics holds the TypeScript/JavaScript detectors shared by
// the Backend and Frontend analyzers. Each detector inspects one parsed
// file and returns the lines it fired on.
package tsheuristics

import (
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/project"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

// Source tags findings produced from the parsed program.
const Source = "heuristics:ast"

type Detector struct {
	Rule checks.RuleInfo
	Find func(sf *project.SourceFile) []int
}

func rule(id, description string) checks.RuleInfo {
	return checks.RuleInfo{ID: id, Description: description, Severity: "WARN"}
}

// Shared runs on every TS/JS file of an app area.
var Shared = []Detector{
	{Rule: rule("heuristics.ts.console-log.ast", "AST heuristic detected console.log usage."), Find: callLines("console.log")},
	{Rule: rule("heuristics.ts.console-error.ast", "AST heuristic detected console.error usage."), Find: callLines("console.error")},
	{Rule: rule("heuristics.ts.empty-catch.ast", "AST heuristic detected an empty catch block."), Find: emptyCatchLines},
	{Rule: rule("heuristics.ts.explicit-any.ast", "AST heuristic detected explicit any usage."), Find: posLines(func(sf *project.SourceFile) []project.Pos { return sf.AnyTypes })},
	{Rule: rule("heuristics.ts.debugger.ast", "AST heuristic detected a debugger statement."), Find: posLines(func(sf *project.SourceFile) []project.Pos { return sf.Debuggers })},
	{Rule: rule("heuristics.ts.eval.ast", "AST heuristic detected eval usage."), Find: callLines("eval")},
	{Rule: rule("heuristics.ts.function-constructor.ast", "AST heuristic detected the Function constructor."), Find: callLines("Function")},
	{Rule: rule("heuristics.ts.set-timeout-string.ast", "AST heuristic detected setTimeout with a string callback."), Find: stringCallbackLines("setTimeout")},
	{Rule: rule("heuristics.ts.set-interval-string.ast", "AST heuristic detected setInterval with a string callback."), Find: stringCallbackLines("setInterval")},
	{Rule: rule("heuristics.ts.with-statement.ast", "AST heuristic detected a with statement."), Find: withStatementLines},
	{Rule: rule("heuristics.ts.delete-operator.ast", "AST heuristic detected delete operator usage."), Find: posLines(func(sf *project.SourceFile) []project.Pos { return sf.Deletes })},
	{Rule: rule("heuristics.ts.process-exit.ast", "AST heuristic detected process.exit usage."), Find: callLines("process.exit")},
	{Rule: rule("heuristics.ts.process-env-mutation.ast", "AST heuristic detected process.env mutation."), Find: envMutationLines},
	{Rule: rule("heuristics.ts.child-process-import.ast", "AST heuristic detected child_process import."), Find: importLines("child_process")},
	{Rule: rule("heuristics.ts.child-process-exec.ast", "AST heuristic detected child_process exec usage."), Find: childProcessLines("exec")},
	{Rule: rule("heuristics.ts.child-process-exec-sync.ast", "AST heuristic detected child_process execSync usage."), Find: childProcessLines("execSync")},
	{Rule: rule("heuristics.ts.child-process-exec-file.ast", "AST heuristic detected child_process execFile usage."), Find: childProcessLines("execFile")},
	{Rule: rule("heuristics.ts.child-process-spawn.ast", "AST heuristic detected child_process spawn usage."), Find: childProcessLines("spawn")},
	{Rule: rule("heuristics.ts.child-process-spawn-sync.ast", "AST heuristic detected child_process spawnSync usage."), Find: childProcessLines("spawnSync")},
	{Rule: rule("heuristics.ts.child-process-fork.ast", "AST heuristic detected child_process fork usage."), Find: childProcessLines("fork")},
	{Rule: rule("heuristics.ts.child-process-shell-true.ast", "AST heuristic detected child_process invoked with shell: true."), Find: shellTrueLines},
	{Rule: rule("heuristics.ts.buffer-alloc-unsafe.ast", "AST heuristic detected Buffer.allocUnsafe usage."), Find: callLines("Buffer.allocUnsafe")},
	{Rule: rule("heuristics.ts.insecure-token-math-random.ast", "AST heuristic detected Math.random used to build a token."), Find: mathRandomTokenLines},
	{Rule: rule("heuristics.ts.weak-crypto-hash.ast", "AST heuristic detected a weak crypto hash (md5/sha1)."), Find: weakHashLines},
	{Rule: rule("heuristics.ts.tls-reject-unauthorized-false.ast", "AST heuristic detected rejectUnauthorized: false."), Find: rejectUnauthorizedLines},
}

// Browser runs on Frontend files only.
var Browser = []Detector{
	{Rule: rule("heuristics.ts.inner-html.ast", "AST heuristic detected innerHTML assignment."), Find: innerHTMLLines},
	{Rule: rule("heuristics.ts.insert-adjacent-html.ast", "AST heuristic detected insertAdjacentHTML usage."), Find: methodLines("insertAdjacentHTML")},
	{Rule: rule("heuristics.ts.document-write.ast", "AST heuristic detected document.write usage."), Find: callLines("document.write", "document.writeln")},
	{Rule: rule("heuristics.ts.local-storage-token.ast", "AST heuristic detected a token persisted in localStorage."), Find: localStorageTokenLines},
}

// Rules lists the rule declarations of detectors.
func Rules(detectors ...[]Detector) []checks.RuleInfo {
	var out []checks.RuleInfo
	for _, group := range detectors {
		for _, d := range group {
			out = append(out, d.Rule)
		}
	}
	return out
}

// Scan applies detectors to every non-test file and emits one finding per
// rule and file.
func Scan(ctx *ctxpkg.Context, files []*project.SourceFile, detectors ...[]Detector) []report.Finding {
	var findings []report.Finding
	for _, sf := range files {
		if ctx.Canceled() {
			break
		}
		if ctxpkg.IsTestPath(sf.Path) {
			continue
		}
		for _, group := range detectors {
			for _, d := range group {
				lines := d.Find(sf)
				if len(lines) == 0 {
					continue
				}
				findings = append(findings, checks.FileFinding(d.Rule, Source, sf.Path, lines, ""))
			}
		}
	}
	return findings
}

func uniqueLines(lines []int) []int {
	seen := make(map[int]bool, len(lines))
	out := lines[:0]
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func callLines(callees ...string) func(*project.SourceFile) []int {
	return func(sf *project.SourceFile) []int {
		var lines []int
		for _, c := range sf.CallsTo(callees...) {
			lines = append(lines, c.Line)
		}
		return uniqueLines(lines)
	}
}

func methodLines(method string) func(*project.SourceFile) []int {
	return func(sf *project.SourceFile) []int {
		var lines []int
		for _, c := range sf.Calls {
			if strings.HasSuffix(c.Callee, "."+method) {
				lines = append(lines, c.Line)
			}
		}
		return uniqueLines(lines)
	}
}

func posLines(get func(*project.SourceFile) []project.Pos) func(*project.SourceFile) []int {
	return func(sf *project.SourceFile) []int {
		var lines []int
		for _, p := range get(sf) {
			lines = append(lines, p.Line)
		}
		return uniqueLines(lines)
	}
}

func emptyCatchLines(sf *project.SourceFile) []int {
	var lines []int
	for _, c := range sf.Catches {
		if c.Empty {
			lines = append(lines, c.Line)
		}
	}
	return uniqueLines(lines)
}

func stringCallbackLines(callee string) func(*project.SourceFile) []int {
	return func(sf *project.SourceFile) []int {
		var lines []int
		for _, c := range sf.CallsTo(callee, "window."+callee, "global."+callee) {
			args := sf.Args(c)
			if len(args) > 0 && (args[0].Kind == project.TokenString || args[0].Kind == project.TokenTemplate) {
				lines = append(lines, c.Line)
			}
		}
		return uniqueLines(lines)
	}
}

func withStatementLines(sf *project.SourceFile) []int {
	var lines []int
	for i, t := range sf.Code {
		if !t.Is(project.TokenIdent, "with") || i+1 >= len(sf.Code) || !sf.Code[i+1].Is(project.TokenPunct, "(") {
			continue
		}
		if i > 0 && (sf.Code[i-1].Is(project.TokenPunct, ".") || sf.Code[i-1].Is(project.TokenPunct, "?.")) {
			continue
		}
		lines = append(lines, t.Line)
	}
	return uniqueLines(lines)
}

func envMutationLines(sf *project.SourceFile) []int {
	code := sf.Code
	var lines []int
	for i := 0; i+4 < len(code); i++ {
		if !code[i].Is(project.TokenIdent, "process") || !code[i+1].Is(project.TokenPunct, ".") || !code[i+2].Is(project.TokenIdent, "env") {
			continue
		}
		j := i + 3
		switch {
		case code[j].Is(project.TokenPunct, ".") && code[j+1].Kind == project.TokenIdent:
			j += 2
		case code[j].Is(project.TokenPunct, "["):
			depth := 0
			for ; j < len(code); j++ {
				if code[j].Is(project.TokenPunct, "[") {
					depth++
				} else if code[j].Is(project.TokenPunct, "]") {
					depth--
					if depth == 0 {
						j++
						break
					}
				}
			}
		default:
			continue
		}
		if j < len(code) && code[j].Kind == project.TokenPunct {
			switch code[j].Text {
			case "=", "+=", "-=", "||=", "&&=", "??=":
				lines = append(lines, code[i].Line)
			}
		}
		if i > 0 && code[i-1].Is(project.TokenIdent, "delete") {
			lines = append(lines, code[i].Line)
		}
	}
	return uniqueLines(lines)
}

func importLines(module string) func(*project.SourceFile) []int {
	return func(sf *project.SourceFile) []int {
		var lines []int
		for _, imp := range sf.Imports {
			if imp.Spec == module || imp.Spec == "node:"+module {
				lines = append(lines, imp.Line)
			}
		}
		return uniqueLines(lines)
	}
}

func childProcessLines(fn string) func(*project.SourceFile) []int {
	return func(sf *project.SourceFile) []int {
		if !sf.ImportsModule("child_process") {
			return nil
		}
		var lines []int
		for _, c := range sf.Calls {
			if c.Callee == fn || strings.HasSuffix(c.Callee, "."+fn) {
				lines = append(lines, c.Line)
			}
		}
		return uniqueLines(lines)
	}
}

func shellTrueLines(sf *project.SourceFile) []int {
	if !sf.ImportsModule("child_process") {
		return nil
	}
	var lines []int
	for _, c := range sf.Calls {
		args := sf.Args(c)
		for i := 0; i+2 < len(args); i++ {
			if args[i].Is(project.TokenIdent, "shell") && args[i+1].Is(project.TokenPunct, ":") && args[i+2].Is(project.TokenIdent, "true") {
				lines = append(lines, c.Line)
				break
			}
		}
	}
	return uniqueLines(lines)
}

var tokenWords = []string{"token", "secret", "nonce", "password", "session", "otp"}

func mentionsTokenWord(s string) bool {
	s = strings.ToLower(s)
	for _, w := range tokenWords {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func mathRandomTokenLines(sf *project.SourceFile) []int {
	var lines []int
	for _, c := range sf.CallsTo("Math.random") {
		if c.Line-1 < len(sf.Lines) && mentionsTokenWord(sf.Lines[c.Line-1]) {
			lines = append(lines, c.Line)
		}
	}
	return uniqueLines(lines)
}

func weakHashLines(sf *project.SourceFile) []int {
	var lines []int
	for _, c := range sf.Calls {
		if c.Callee != "createHash" && !strings.HasSuffix(c.Callee, ".createHash") {
			continue
		}
		args := sf.Args(c)
		if len(args) == 0 || args[0].Kind != project.TokenString {
			continue
		}
		switch strings.ToLower(args[0].Text) {
		case "md5", "sha1", "md4":
			lines = append(lines, c.Line)
		}
	}
	return uniqueLines(lines)
}

func rejectUnauthorizedLines(sf *project.SourceFile) []int {
	code := sf.Code
	var lines []int
	for i := 0; i+2 < len(code); i++ {
		if code[i].Is(project.TokenIdent, "rejectUnauthorized") && code[i+1].Is(project.TokenPunct, ":") && code[i+2].Is(project.TokenIdent, "false") {
			lines = append(lines, code[i].Line)
		}
	}
	return uniqueLines(lines)
}

func innerHTMLLines(sf *project.SourceFile) []int {
	code := sf.Code
	var lines []int
	for i := 1; i+1 < len(code); i++ {
		t := code[i]
		if !t.Is(project.TokenIdent, "innerHTML") && !t.Is(project.TokenIdent, "outerHTML") {
			continue
		}
		if code[i-1].Is(project.TokenPunct, ".") && (code[i+1].Is(project.TokenPunct, "=") || code[i+1].Is(project.TokenPunct, "+=")) {
			lines = append(lines, t.Line)
		}
	}
	for _, el := range sf.JSX {
		if el.HasAttr("dangerouslySetInnerHTML") {
			lines = append(lines, el.Line)
		}
	}
	return uniqueLines(lines)
}

func localStorageTokenLines(sf *project.SourceFile) []int {
	var lines []int
	for _, c := range sf.CallsTo("localStorage.setItem", "window.localStorage.setItem") {
		args := sf.Args(c)
		if len(args) > 0 && (args[0].Kind == project.TokenString || args[0].Kind == project.TokenTemplate) && mentionsTokenWord(args[0].Text) {
			lines = append(lines, c.Line)
		}
	}
	return uniqueLines(lines)
}
