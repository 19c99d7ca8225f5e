package report

import (
	"fmt"
	"sort"
)

// Finding is what an analyzer emits. Severity keeps the analyzer's own
// vocabulary; normalization happens when findings are merged against the
// rule catalog.
type Finding struct {
	RuleID   string             `json:"ruleId"`
	Severity string             `json:"severity"`
	FilePath string             `json:"filePath"`
	Line     int                `json:"line"`
	Column   int                `json:"column,omitempty"`
	Message  string             `json:"message"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Source   string             `json:"source,omitempty"`
}

// ProjectRoot is the file path used by findings about the repository as a
// whole rather than one file.
const ProjectRoot = "PROJECT_ROOT"

// Key identifies a finding for deduplication.
func (f Finding) Key() string {
	return fmt.Sprintf("%s::%s::%d", f.RuleID, f.FilePath, f.Line)
}

// Dedupe drops findings whose key was already seen, keeping the first.
func Dedupe(findings []Finding) []Finding {
	seen := make(map[string]bool, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		k := f.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}

// SortStable orders findings by file, line, column and rule id.
func SortStable(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleID < b.RuleID
	})
}
