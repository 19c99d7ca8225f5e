package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

var (
	ruleExcessiveApps     = checks.RuleInfo{ID: "common.monorepo.excessive_apps", Description: "Monorepo holds more apps than it can govern.", Severity: "CRITICAL"}
	ruleApproachingLimit  = checks.RuleInfo{ID: "common.monorepo.approaching_limit", Description: "Monorepo is close to the app limit.", Severity: "HIGH"}
	ruleCircularDeps      = checks.RuleInfo{ID: "common.monorepo.circular_dependencies", Description: "Apps depend on each other in a cycle.", Severity: "CRITICAL"}
	ruleExcessiveCoupling = checks.RuleInfo{ID: "common.monorepo.excessive_coupling", Description: "A file imports heavily from another app.", Severity: "HIGH"}
)

const (
	appLimit         = 5
	couplingPerFile  = 10
	appsDir          = "apps"
	packageJSONField = "name"
)

// CheckMonorepoHealth evaluates the apps/ layout. App counting needs the
// repository on disk; dependency checks use the parsed program.
func CheckMonorepoHealth(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	if ctx == nil || ctx.Program == nil {
		return findings, nil
	}

	packages := map[string]string{}
	if ctx.Root != "" {
		apps := listApps(ctx.Root)
		if fullRepo(ctx) {
			switch n := len(apps); {
			case n > appLimit:
				findings = append(findings, report.Finding{
					RuleID:   ruleExcessiveApps.ID,
					Severity: ruleExcessiveApps.Severity,
					FilePath: appsDir,
					Message:  fmt.Sprintf("Monorepo has %d apps (threshold: %d).", n, appLimit),
					Metrics:  map[string]float64{"apps": float64(n), "threshold": appLimit},
					Source:   source,
				})
			case n > appLimit-1:
				findings = append(findings, report.Finding{
					RuleID:   ruleApproachingLimit.ID,
					Severity: ruleApproachingLimit.Severity,
					FilePath: appsDir,
					Message:  fmt.Sprintf("Monorepo has %d apps and is approaching the limit of %d.", n, appLimit),
					Metrics:  map[string]float64{"apps": float64(n), "threshold": appLimit},
					Source:   source,
				})
			}
		}
		for _, app := range apps {
			if name := packageName(filepath.Join(ctx.Root, appsDir, app, "package.json")); name != "" {
				packages[name] = app
			}
		}
	}

	graph := make(map[string]map[string]bool)
	for _, p := range ctx.Program.SourcePaths() {
		from := appOf(p)
		if from == "" {
			continue
		}
		counts := make(map[string]int)
		firstLine := make(map[string]int)
		for _, imp := range ctx.Program.Files[p].Imports {
			to := appOf(ctx.Program.ResolveImport(p, imp.Spec))
			if to == "" {
				to = packageApp(packages, imp.Spec)
			}
			if to == "" || to == from {
				continue
			}
			if graph[from] == nil {
				graph[from] = make(map[string]bool)
			}
			graph[from][to] = true
			counts[to]++
			if firstLine[to] == 0 {
				firstLine[to] = imp.Line
			}
		}
		for _, to := range sortedKeys(counts) {
			if counts[to] <= couplingPerFile {
				continue
			}
			findings = append(findings, report.Finding{
				RuleID:   ruleExcessiveCoupling.ID,
				Severity: ruleExcessiveCoupling.Severity,
				FilePath: p,
				Line:     firstLine[to],
				Message:  fmt.Sprintf("Excessive coupling: %s imports from %s %d times in this file.", from, to, counts[to]),
				Metrics:  map[string]float64{"imports": float64(counts[to]), "threshold": couplingPerFile},
				Source:   source,
			})
		}
	}

	for _, cycle := range findCycles(graph) {
		file := filepath.ToSlash(filepath.Join(appsDir, cycle[0], "package.json"))
		if ctx.Root == "" || !exists(filepath.Join(ctx.Root, filepath.FromSlash(file))) {
			file = appsDir + "/" + cycle[0]
		}
		findings = append(findings, report.Finding{
			RuleID:   ruleCircularDeps.ID,
			Severity: ruleCircularDeps.Severity,
			FilePath: file,
			Message:  "Circular dependency detected: " + strings.Join(append(cycle, cycle[0]), " → "),
			Source:   source,
		})
	}
	return findings, nil
}

func listApps(root string) []string {
	entries, err := os.ReadDir(filepath.Join(root, appsDir))
	if err != nil {
		return nil
	}
	var apps []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			apps = append(apps, e.Name())
		}
	}
	sort.Strings(apps)
	return apps
}

func packageName(file string) string {
	data, err := os.ReadFile(file)
	if err != nil {
		return ""
	}
	var pkg map[string]any
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	name, _ := pkg[packageJSONField].(string)
	return name
}

func packageApp(packages map[string]string, spec string) string {
	for name, app := range packages {
		if spec == name || strings.HasPrefix(spec, name+"/") {
			return app
		}
	}
	return ""
}

// appOf returns the app directory name of a path under apps/, or "".
func appOf(p string) string {
	if !strings.HasPrefix(p, appsDir+"/") {
		return ""
	}
	rest := strings.TrimPrefix(p, appsDir+"/")
	i := strings.Index(rest, "/")
	if i <= 0 {
		return ""
	}
	return rest[:i]
}

// findCycles returns each elementary cycle once, rotated so its smallest
// app comes first.
func findCycles(graph map[string]map[string]bool) [][]string {
	seen := make(map[string]bool)
	var cycles [][]string
	nodes := sortedKeys(graph)

	var stack []string
	onStack := make(map[string]bool)
	var visit func(start, n string)
	visit = func(start, n string) {
		stack = append(stack, n)
		onStack[n] = true
		for _, next := range sortedKeys(graph[n]) {
			if next == start {
				cycle := append([]string(nil), stack...)
				key := strings.Join(cycle, ">")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			// Only extend through nodes greater than start so each cycle is
			// found from its smallest member.
			if next > start && !onStack[next] {
				visit(start, next)
			}
		}
		stack = stack[:len(stack)-1]
		onStack[n] = false
	}
	for _, n := range nodes {
		visit(n, n)
	}
	return cycles
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
