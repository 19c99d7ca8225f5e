package backend

import (
	"fmt"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/tsheuristics"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

var unusedExportRule = checks.RuleInfo{
	ID:          "backend.unused-export",
	Description: "Exported symbol is not imported anywhere else in the repository.",
	Severity:    "INFO",
}

func Checks() []checks.Check {
	return []checks.Check{
		{
			ID:          "BACKEND_TS_HEURISTICS",
			Family:      checks.FamilyBackend,
			Title:       "Backend TypeScript heuristics",
			Description: "AST heuristics over backend TypeScript/JavaScript sources.",
			Rules:       tsheuristics.Rules(tsheuristics.Shared),
			Run:         CheckHeuristics,
		},
		{
			ID:          "BACKEND_UNUSED_EXPORTS",
			Family:      checks.FamilyBackend,
			Title:       "Unused backend exports",
			Description: "Cross-file check for exports no other module imports.",
			Rules:       []checks.RuleInfo{unusedExportRule},
			Run:         CheckUnusedExports,
		},
	}
}

// CheckHeuristics runs the shared TS detectors over backend files.
func CheckHeuristics(ctx *ctxpkg.Context) ([]report.Finding, error) {
	return tsheuristics.Scan(ctx, ctx.Scripts(platform.Backend), tsheuristics.Shared), nil
}

// CheckUnusedExports flags named exports of imported backend modules that
// no importer consumes. It only runs over a full-repository program, since
// a partial scope cannot see every importer.
func CheckUnusedExports(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	if ctx == nil || ctx.Program == nil || !ctx.Program.FullRepo {
		return findings, nil
	}

	for _, sf := range ctx.Scripts(platform.Backend) {
		if ctxpkg.IsTestPath(sf.Path) || len(ctx.Program.Importers(sf.Path)) == 0 {
			continue
		}
		seen := make(map[string]bool)
		for _, exp := range sf.Exports {
			if seen[exp.Name] || exp.Kind == "commonjs" {
				continue
			}
			seen[exp.Name] = true
			if ctx.Program.ExportUsedElsewhere(sf.Path, exp.Name) {
				continue
			}
			findings = append(findings, report.Finding{
				RuleID:   unusedExportRule.ID,
				Severity: unusedExportRule.Severity,
				FilePath: sf.Path,
				Line:     exp.Line,
				Message:  fmt.Sprintf("Export %q is never imported by another module.", exp.Name),
				Source:   tsheuristics.Source,
			})
		}
	}
	return findings, nil
}
