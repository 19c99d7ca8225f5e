package frontend

import (
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/tsheuristics"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

func Checks() []checks.Check {
	return []checks.Check{
		{
			ID:          "FRONTEND_TS_HEURISTICS",
			Family:      checks.FamilyFrontend,
			Title:       "Frontend TypeScript heuristics",
			Description: "AST heuristics over web frontend sources, including browser DOM sinks.",
			Rules:       tsheuristics.Rules(tsheuristics.Shared, tsheuristics.Browser),
			Run:         CheckHeuristics,
		},
	}
}

// CheckHeuristics runs the shared and browser TS detectors over frontend files.
func CheckHeuristics(ctx *ctxpkg.Context) ([]report.Finding, error) {
	return tsheuristics.Scan(ctx, ctx.Scripts(platform.Frontend), tsheuristics.Shared, tsheuristics.Browser), nil
}
