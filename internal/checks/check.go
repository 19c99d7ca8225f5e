package checks

import (
	context "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

type Family string

const (
	FamilyBackend  Family = "BACKEND"
	FamilyFrontend Family = "FRONTEND"
	FamilyAndroid  Family = "ANDROID"
	FamilyIOS      Family = "IOS"
	FamilyCommon   Family = "COMMON"
	FamilyText     Family = "TEXT"
)

// Families lists every analyzer family in dispatch order.
var Families = []Family{FamilyBackend, FamilyFrontend, FamilyAndroid, FamilyIOS, FamilyCommon, FamilyText}

// RuleInfo declares a rule id a check may emit. The rule catalog derives its
// heuristic rules from these declarations; the platform comes from the id.
type RuleInfo struct {
	ID          string
	Description string
	Severity    string
}

type Check struct {
	ID          string
	Family      Family
	Title       string
	Description string
	Rules       []RuleInfo
	Run         func(*context.Context) ([]report.Finding, error)
}

// RuleIDs returns the ids declared by the check.
func (c Check) RuleIDs() []string {
	out := make([]string, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, r.ID)
	}
	return out
}

// FileFinding builds the single finding a rule produces for one file. The
// first hit anchors the finding and the hit count is kept as a metric.
func FileFinding(rule RuleInfo, source, file string, lines []int, message string) report.Finding {
	f := report.Finding{
		RuleID:   rule.ID,
		Severity: rule.Severity,
		FilePath: file,
		Message:  message,
		Source:   source,
	}
	if f.Message == "" {
		f.Message = rule.Description
	}
	if len(lines) > 0 {
		f.Line = lines[0]
		f.Metrics = map[string]float64{"occurrences": float64(len(lines))}
	}
	return f
}
