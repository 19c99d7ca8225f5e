package common

import (
	"fmt"
	"path"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

var (
	ruleMissingFeatures      = checks.RuleInfo{ID: "workflow.bdd.missing_feature_files", Description: "Large codebase without any .feature file.", Severity: "CRITICAL"}
	ruleInsufficientFeatures = checks.RuleInfo{ID: "workflow.bdd.insufficient_features", Description: "Too few .feature files for the size of the codebase.", Severity: "ERROR"}
)

const (
	bddMissingAbove      = 50
	bddInsufficientAbove = 20
	bddMinFeatures       = 3
)

var implExts = []string{".swift", ".kt", ".kts", ".ts", ".tsx", ".js", ".jsx"}

// CheckBDDWorkflow compares the number of .feature files with the number of
// production source files in the repository.
func CheckBDDWorkflow(ctx *ctxpkg.Context) ([]report.Finding, error) {
	var findings []report.Finding
	if !fullRepo(ctx) {
		return findings, nil
	}

	impl, features := 0, 0
	err := walkRepo(ctx, append([]string{".feature"}, implExts...), func(rel string) {
		if strings.ToLower(path.Ext(rel)) == ".feature" {
			features++
			return
		}
		if !ctxpkg.IsTestPath(rel) {
			impl++
		}
	})
	if err != nil {
		return nil, err
	}

	metrics := map[string]float64{"implementation_files": float64(impl), "feature_files": float64(features)}
	switch {
	case impl > bddMissingAbove && features == 0:
		findings = append(findings, report.Finding{
			RuleID:   ruleMissingFeatures.ID,
			Severity: ruleMissingFeatures.Severity,
			FilePath: report.ProjectRoot,
			Message:  fmt.Sprintf("No .feature files found for %d implementation files.", impl),
			Metrics:  metrics,
			Source:   source,
		})
	case impl > bddInsufficientAbove && features < bddMinFeatures:
		findings = append(findings, report.Finding{
			RuleID:   ruleInsufficientFeatures.ID,
			Severity: ruleInsufficientFeatures.Severity,
			FilePath: report.ProjectRoot,
			Message:  fmt.Sprintf("Only %d .feature files for %d implementation files (minimum %d).", features, impl, bddMinFeatures),
			Metrics:  metrics,
			Source:   source,
		})
	}
	return findings, nil
}
