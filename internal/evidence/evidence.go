// Package evidence builds, seals, verifies and persists the evidence
// contract a gate run leaves behind for hooks, CI and reporting tools.
package evidence

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/rules"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

const (
	Version       = "1"
	LegacyVersion = "1.0"
	Algorithm     = "sha256"

	StatusAllowed = "ALLOWED"
	StatusBlocked = "BLOCKED"
)

// TimeLayout is the timestamp format of generated_at and the ledger.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

type Finding struct {
	RuleID    string          `json:"ruleId"`
	Severity  severity.Legacy `json:"severity"`
	File      string          `json:"file"`
	Line      int             `json:"line"`
	Column    int             `json:"column,omitempty"`
	Message   string          `json:"message"`
	Platforms []string        `json:"platforms"`
}

func (f Finding) key() findingKey {
	return findingKey{f.RuleID, f.File, f.Line}
}

type findingKey struct {
	rule string
	file string
	line int
}

type Snapshot struct {
	Stage         string                        `json:"stage"`
	Outcome       string                        `json:"outcome"`
	Findings      []Finding                     `json:"findings"`
	FilesScanned  int                           `json:"files_scanned"`
	FilesAffected int                           `json:"files_affected"`
	Platforms     map[string]platform.Detection `json:"platforms"`
}

type SeverityMetrics struct {
	GateStatus      string                  `json:"gate_status"`
	TotalViolations int                     `json:"total_violations"`
	BySeverity      map[severity.Legacy]int `json:"by_severity"`
}

// Violation is a gate policy fact recorded in the contract.
type Violation struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Severity severity.Legacy `json:"severity"`
}

type AIGate struct {
	Status     string      `json:"status"`
	Violations []Violation `json:"violations"`
}

type LedgerEntry struct {
	RuleID    string `json:"ruleId"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	FirstSeen string `json:"firstSeen"`
	LastSeen  string `json:"lastSeen"`
}

type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Body is the hashed part of the contract.
type Body struct {
	Version         string          `json:"version"`
	GeneratedAt     string          `json:"generated_at"`
	Tool            Tool            `json:"tool"`
	Snapshot        Snapshot        `json:"snapshot"`
	SeverityMetrics SeverityMetrics `json:"severity_metrics"`
	Rulesets        []rules.Ruleset `json:"rulesets"`
	AIGate          AIGate          `json:"ai_gate"`
	Coverage        *rules.Coverage `json:"coverage,omitempty"`
}

type Integrity struct {
	Algorithm   string `json:"algorithm"`
	PayloadHash string `json:"payload_hash"`
}

// Contract is the persisted envelope: the body fields plus integrity. The
// ledger rides beside the body and is not covered by the hash, since it
// depends on whichever contract was on disk before the run.
type Contract struct {
	Body
	Ledger    []LedgerEntry `json:"ledger,omitempty"`
	Integrity *Integrity    `json:"integrity,omitempty"`
}

type Input struct {
	Stage        string
	Status       string
	Findings     []report.Finding
	Violations   []Violation
	FilesScanned int
	Detected     platform.Set
	Rulesets     []rules.Ruleset
	Coverage     *rules.Coverage
	Tool         Tool
	Now          time.Time
}

// Build assembles the contract body. Findings are expected on any severity
// vocabulary; they are written on the legacy scale.
func Build(in Input) Body {
	now := in.Now.UTC().Format(TimeLayout)
	findings := normalizeFindings(in.Findings, in.Detected)

	metrics := SeverityMetrics{
		GateStatus:      in.Status,
		TotalViolations: len(findings),
		BySeverity:      make(map[severity.Legacy]int, len(severity.AllLegacy)),
	}
	for _, l := range severity.AllLegacy {
		metrics.BySeverity[l] = 0
	}
	affected := make(map[string]bool)
	for _, f := range findings {
		metrics.BySeverity[f.Severity]++
		if f.File != report.ProjectRoot {
			affected[f.File] = true
		}
	}

	violations := append([]Violation{}, in.Violations...)
	for i := range violations {
		violations[i].Message = norm.NFC.String(violations[i].Message)
	}

	return Body{
		Version:     Version,
		GeneratedAt: now,
		Tool:        in.Tool,
		Snapshot: Snapshot{
			Stage:         in.Stage,
			Outcome:       in.Status,
			Findings:      findings,
			FilesScanned:  in.FilesScanned,
			FilesAffected: len(affected),
			Platforms:     platformsOf(in.Detected),
		},
		SeverityMetrics: metrics,
		Rulesets:        normalizeRulesets(in.Rulesets),
		AIGate:          AIGate{Status: in.Status, Violations: violations},
		Coverage:        in.Coverage,
	}
}

// NormalizePath makes a path repo-relative style: forward slashes, NFC.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return norm.NFC.String(p)
}

func normalizeFindings(in []report.Finding, detected platform.Set) []Finding {
	seen := make(map[findingKey]bool, len(in))
	out := make([]Finding, 0, len(in))
	for _, f := range in {
		file := NormalizePath(f.FilePath)
		if file == "" {
			file = "unknown"
		}
		ef := Finding{
			RuleID:    f.RuleID,
			Severity:  severity.Normalize(f.Severity).Legacy(),
			File:      file,
			Line:      f.Line,
			Column:    f.Column,
			Message:   norm.NFC.String(f.Message),
			Platforms: []string{},
		}
		if seen[ef.key()] {
			continue
		}
		seen[ef.key()] = true
		for _, p := range platform.Attribute(file, f.RuleID, detected) {
			ef.Platforms = append(ef.Platforms, p.String())
		}
		sort.Strings(ef.Platforms)
		out = append(out, ef)
	}
	sort.SliceStable(out, func(i, j int) bool { return lessKey(out[i].key(), out[j].key()) })
	return out
}

func lessKey(a, b findingKey) bool {
	if a.rule != b.rule {
		return a.rule < b.rule
	}
	if a.file != b.file {
		return a.file < b.file
	}
	return a.line < b.line
}

func platformsOf(set platform.Set) map[string]platform.Detection {
	out := make(map[string]platform.Detection, len(set))
	for p, d := range set {
		out[p.String()] = d
	}
	return out
}

func normalizeRulesets(in []rules.Ruleset) []rules.Ruleset {
	seen := make(map[rules.Ruleset]bool, len(in))
	out := make([]rules.Ruleset, 0, len(in))
	for _, rs := range in {
		if seen[rs] {
			continue
		}
		seen[rs] = true
		out = append(out, rs)
	}
	rules.SortRulesets(out)
	return out
}

// UpdateLedger lists the findings of body stamped with its generated_at,
// keeping firstSeen for findings already present in prev. Findings that
// disappeared drop out of the ledger.
func UpdateLedger(body Body, prev *Contract) []LedgerEntry {
	findings, now := body.Snapshot.Findings, body.GeneratedAt
	prior := make(map[findingKey]LedgerEntry)
	if prev != nil {
		for _, e := range prev.Ledger {
			prior[findingKey{e.RuleID, e.File, e.Line}] = e
		}
	}
	out := make([]LedgerEntry, 0, len(findings))
	for _, f := range findings {
		e := LedgerEntry{RuleID: f.RuleID, File: f.File, Line: f.Line, FirstSeen: now, LastSeen: now}
		if p, ok := prior[f.key()]; ok && p.FirstSeen != "" {
			e.FirstSeen = p.FirstSeen
		}
		out = append(out, e)
	}
	return out
}
