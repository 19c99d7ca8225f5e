package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/scan"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/app/ui"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/scanner"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	msges "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/messages"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/rules"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

// maxLocations bounds the file list printed under one aggregated finding.
const maxLocations = 5

// Printer renders gate results for humans.
type Printer struct {
	W       io.Writer
	Palette ui.Palette
}

// NewPrinter writes to f, with color when f is a terminal.
func NewPrinter(f *os.File) Printer {
	return Printer{W: f, Palette: ui.PaletteFor(f)}
}

func (p Printer) line(color, format string, args ...any) {
	fmt.Fprintln(p.W, p.Palette.Wrap(color, fmt.Sprintf(format, args...)))
}

// PrintFindings prints findings grouped by rule and severity, most severe
// first.
func (p Printer) PrintFindings(findings []report.Finding) {
	if len(findings) == 0 {
		p.line(ui.ColorGreen, "%s", msges.GetUIMessage("ConsoleNoIssues"))
		return
	}

	aggregated := aggregateFindingsForConsole(findings)
	sort.Slice(aggregated, func(i, j int) bool {
		wi, wj := severityWeight(aggregated[i].Severity), severityWeight(aggregated[j].Severity)
		if wi == wj {
			return aggregated[i].RuleID < aggregated[j].RuleID
		}
		return wi > wj
	})

	fmt.Fprintln(p.W)
	p.line(ui.ColorWhite, "%s", msges.GetUIMessage("ConsoleFindingsTitle"))
	for _, item := range aggregated {
		fmt.Fprintln(p.W)
		p.line(p.Palette.Severity(item.Severity), "[%s] %s", item.Severity, item.RuleID)
		if item.Count > 1 {
			p.line(ui.ColorGray, " - %s", msges.GetUIMessage("ConsoleOccurrences", item.Count))
		}
		p.line(ui.ColorGray, " - %s", item.Message)
		for i, loc := range item.Locations {
			if i == maxLocations {
				p.line(ui.ColorGray, "   ... and %d more", len(item.Locations)-maxLocations)
				break
			}
			p.line(ui.ColorGray, "   - %s", loc)
		}
	}
}

type consoleFinding struct {
	RuleID    string
	Severity  string
	Message   string
	Count     int
	Locations []string
}

func aggregateFindingsForConsole(findings []report.Finding) []consoleFinding {
	type key struct {
		RuleID   string
		Severity string
	}

	grouped := make(map[key]*consoleFinding)
	for _, f := range findings {
		k := key{RuleID: f.RuleID, Severity: string(severity.Normalize(f.Severity))}
		loc := location(f)
		if _, ok := grouped[k]; !ok {
			grouped[k] = &consoleFinding{
				RuleID:    f.RuleID,
				Severity:  k.Severity,
				Message:   f.Message,
				Count:     1,
				Locations: []string{loc},
			}
			continue
		}
		grouped[k].Count++
		grouped[k].Locations = append(grouped[k].Locations, loc)
	}

	out := make([]consoleFinding, 0, len(grouped))
	for _, v := range grouped {
		v.Locations = uniqueSortedStrings(v.Locations)
		out = append(out, *v)
	}
	return out
}

func location(f report.Finding) string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.FilePath, f.Line)
	}
	return f.FilePath
}

func uniqueSortedStrings(items []string) []string {
	if len(items) <= 1 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// PrintDecision prints the verdict, the policy that produced it and every
// violation with its fix.
func (p Printer) PrintDecision(d gate.Decision) {
	statusColor := ui.ColorGreen
	switch {
	case d.Blocked():
		statusColor = ui.ColorRed
	case d.Warn:
		statusColor = ui.ColorYellow
	}

	fmt.Fprintln(p.W)
	p.line(statusColor, "%s", msges.GetUIMessage("DecisionLine", d.Stage, d.Status))
	p.line(ui.ColorGray, "%s", msges.GetUIMessage("DecisionPolicy", d.Policy.Trace.Bundle, d.Policy.BlockOnOrAbove, d.Policy.WarnOnOrAbove))

	maxSev := string(d.MaxSeverity)
	if maxSev == "" {
		maxSev = "-"
	}
	ev := d.EvidenceSummary
	p.line(ui.ColorGray, "%s", msges.GetUIMessage("DecisionScope", ev.FilesScanned, ev.TotalFindings, maxSev))
	if ev.SnapshotID != "" {
		p.line(ui.ColorGray, "%s", msges.GetUIMessage("DecisionEvidence", ev.Kind, ev.SnapshotID))
	}
	if ev.AgeSeconds != nil {
		p.line(ui.ColorGray, "%s", msges.GetUIMessage("DecisionEvidenceAge", *ev.AgeSeconds, ev.MaxAgeSeconds))
	}
	if d.RepoState.Branch != "" {
		p.line(ui.ColorGray, "%s", msges.GetUIMessage("DecisionRepo", d.RepoState.Branch))
	}

	if len(d.Violations) > 0 {
		fmt.Fprintln(p.W)
		p.line(ui.ColorWhite, "%s", msges.GetUIMessage("ConsoleViolationsTitle"))
		for _, v := range d.Violations {
			msg := msges.GetMessage(v.Code)
			p.line(p.Palette.Severity(string(v.Severity)), "[%s] %s (%s)", v.Severity, msg.Title, v.Code)
			p.line(ui.ColorGray, " - %s", v.Message)
			if msg.Fix != "" {
				p.line(ui.ColorGray, " - %s: %s", msges.GetUIMessage("ConsoleFixLabel"), msg.Fix)
			}
		}
	}

	if len(d.Warnings) > 0 {
		fmt.Fprintln(p.W)
		p.line(ui.ColorWhite, "%s", msges.GetUIMessage("ConsoleWarningsTitle"))
		for _, w := range d.Warnings {
			p.line(ui.ColorYellow, " - %s", w)
		}
	}
}

// PrintScanSummary prints one line per analyzer that ran, then the ones
// that failed.
func (p Printer) PrintScanSummary(stats map[string]scanner.CheckStat, errs map[string]error) {
	if len(stats) == 0 && len(errs) == 0 {
		return
	}
	fmt.Fprintln(p.W)
	p.line(ui.ColorWhite, "%s", msges.GetUIMessage("ConsoleScanSummaryTitle"))

	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		fi, fj := stats[ids[i]].Family, stats[ids[j]].Family
		if fi == fj {
			return ids[i] < ids[j]
		}
		return fi < fj
	})

	for _, id := range ids {
		st := stats[id]
		status, color := msges.GetUIMessage("CheckStatusNotFound"), ui.ColorGreen
		if st.Findings > 0 {
			status, color = msges.GetUIMessage("CheckStatusFound"), ui.ColorRed
		}
		if _, failed := errs[id]; failed {
			status, color = msges.GetUIMessage("CheckStatusFailed"), ui.ColorYellow
		}
		suffix := ""
		if st.Findings > 0 {
			suffix = fmt.Sprintf(" (x%d)", st.Findings)
		}
		fmt.Fprintf(p.W, " [%s] %s%s %s\n", status, p.Palette.Wrap(color, id), suffix,
			p.Palette.Wrap(ui.ColorGray, st.Duration.Round(time.Millisecond).String()))
	}

	failed := make([]string, 0, len(errs))
	for id := range errs {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		p.line(ui.ColorYellow, " \t`-- %s: %v", id, errs[id])
	}
}

func (p Printer) PrintCoverage(c rules.Coverage) {
	p.line(ui.ColorGray, "%s", msges.GetUIMessage("CoverageLine", c.Available, c.Evaluated, c.Matched))
}

// PrintVerify prints the outcome of verifying an evidence file.
func (p Printer) PrintVerify(path string, v evidence.Verified) {
	base := filepath.Base(path)
	if !v.Valid {
		reason := v.Reason
		if v.Detail != "" {
			reason += " (" + v.Detail + ")"
		}
		p.line(ui.ColorRed, "%s", msges.GetUIMessage("VerifyInvalid", base, reason))
		return
	}
	snapshot := "-"
	if v.Contract != nil && v.Contract.Integrity != nil {
		snapshot = evidence.SnapshotID(v.Contract.Integrity.PayloadHash)
	}
	p.line(ui.ColorGreen, "%s", msges.GetUIMessage("VerifyValid", base, v.SourceVersion, snapshot))
}

// PrintRun prints everything a human wants after `pumuki gate`.
func (p Printer) PrintRun(res scan.Result) {
	p.PrintFindings(res.Findings)
	p.PrintScanSummary(res.CheckStats, res.CheckErrors)
	p.PrintDecision(res.Decision)
	p.PrintCoverage(res.Coverage)
}

// CheckReport is the per-analyzer entry of a JSON report.
type CheckReport struct {
	Family     string `json:"family"`
	Findings   int    `json:"findings"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Report is the machine-readable result of a gate run.
type Report struct {
	RunID        string                 `json:"run_id"`
	Decision     gate.Decision          `json:"decision"`
	Findings     []report.Finding       `json:"findings"`
	Coverage     rules.Coverage         `json:"coverage"`
	Unmapped     []string               `json:"unmapped_rule_ids,omitempty"`
	EvidencePath string                 `json:"evidence_path"`
	Written      bool                   `json:"evidence_written"`
	DurationMS   int64                  `json:"duration_ms"`
	Checks       map[string]CheckReport `json:"checks,omitempty"`
}

func NewReport(res scan.Result) Report {
	findings := res.Findings
	if findings == nil {
		findings = []report.Finding{}
	}
	checks := make(map[string]CheckReport, len(res.CheckStats))
	for id, st := range res.CheckStats {
		checks[id] = CheckReport{
			Family:     string(st.Family),
			Findings:   st.Findings,
			DurationMS: st.Duration.Milliseconds(),
		}
	}
	for id, err := range res.CheckErrors {
		cr := checks[id]
		cr.Error = err.Error()
		checks[id] = cr
	}
	return Report{
		RunID:        res.RunID,
		Decision:     res.Decision,
		Findings:     findings,
		Coverage:     res.Coverage,
		Unmapped:     res.Unmapped,
		EvidencePath: res.EvidencePath,
		Written:      res.Written,
		DurationMS:   res.Duration.Milliseconds(),
		Checks:       checks,
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// SaveJSONReport writes v to path, creating parent directories.
func SaveJSONReport(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(file, v); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func severityWeight(s string) int {
	return severity.Normalize(s).Rank()
}
