package gate

import (
	"fmt"
	"sort"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/sdd"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

const (
	StatusAllowed = evidence.StatusAllowed
	StatusBlocked = evidence.StatusBlocked
)

const (
	CodeEvidenceMissing          = "EVIDENCE_MISSING"
	CodeEvidenceInvalid          = "EVIDENCE_INVALID"
	CodeEvidenceTimestampInvalid = "EVIDENCE_TIMESTAMP_INVALID"
	CodeEvidenceStale            = "EVIDENCE_STALE"
	CodeEvidenceGateBlocked      = "EVIDENCE_GATE_BLOCKED"
	CodeProtectedBranch          = "GITFLOW_PROTECTED_BRANCH"
)

// Violation is a policy-level fact, not a code defect. Every violation the
// gate raises is CRITICAL, so it blocks under any policy.
type Violation struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Severity severity.Severity `json:"severity"`
}

func violation(code, msg string) Violation {
	return Violation{Code: code, Message: msg, Severity: severity.Critical}
}

// EvidenceSummary describes the evidence the decision is about.
type EvidenceSummary struct {
	Kind          string                  `json:"kind"`
	SourceVersion string                  `json:"source_version,omitempty"`
	MaxAgeSeconds int                     `json:"max_age_seconds"`
	AgeSeconds    *int                    `json:"age_seconds,omitempty"`
	SnapshotID    string                  `json:"snapshot_id,omitempty"`
	PayloadHash   string                  `json:"payload_hash,omitempty"`
	FilesScanned  int                     `json:"files_scanned"`
	TotalFindings int                     `json:"total_findings"`
	BySeverity    map[severity.Legacy]int `json:"by_severity,omitempty"`
}

type Decision struct {
	Stage           Stage             `json:"stage"`
	Status          string            `json:"status"`
	Warn            bool              `json:"warn"`
	MaxSeverity     severity.Severity `json:"max_severity,omitempty"`
	Policy          Policy            `json:"policy"`
	EvidenceSummary EvidenceSummary   `json:"evidence_summary"`
	RepoState       gitexec.RepoState `json:"repo_state"`
	Violations      []Violation       `json:"violations"`
	Warnings        []string          `json:"warnings,omitempty"`
}

func (d Decision) Blocked() bool { return d.Status == StatusBlocked }

// EvidenceViolations converts the violations onto the evidence scale.
func (d Decision) EvidenceViolations() []evidence.Violation {
	out := make([]evidence.Violation, 0, len(d.Violations))
	for _, v := range d.Violations {
		out = append(out, evidence.Violation{Code: v.Code, Message: v.Message, Severity: v.Severity.Legacy()})
	}
	return out
}

type Input struct {
	Stage    Stage
	Policy   Policy
	Findings []report.Finding
	// Evidence is passed through to the decision. A non-nil AgeSeconds is
	// checked against MaxAgeSeconds.
	Evidence          EvidenceSummary
	RepoState         gitexec.RepoState
	ProtectedBranches []string
	// SDD is only consulted at PRE_WRITE.
	SDD *sdd.Decision
	// Violations raised by the caller, e.g. about a persisted evidence file.
	Violations []Violation
	// Notes are configuration fallbacks from earlier pipeline steps.
	Notes []string
}

// Evaluate is a pure function of its input.
func Evaluate(in Input) Decision {
	violations := append([]Violation{}, in.Violations...)

	if ev := in.Evidence; ev.AgeSeconds != nil && ev.MaxAgeSeconds > 0 && *ev.AgeSeconds > ev.MaxAgeSeconds {
		violations = append(violations, violation(CodeEvidenceStale,
			fmt.Sprintf("Evidence is stale (%ds > %ds for %s).", *ev.AgeSeconds, ev.MaxAgeSeconds, in.Stage)))
	}

	if in.Stage != CI && in.RepoState.Branch != "" && contains(in.ProtectedBranches, in.RepoState.Branch) {
		violations = append(violations, violation(CodeProtectedBranch,
			fmt.Sprintf("Direct work on protected branch %q is not allowed.", in.RepoState.Branch)))
	}

	if in.Stage == PreWrite && in.SDD != nil && !in.SDD.Allowed {
		violations = append(violations, violation(in.SDD.Code, in.SDD.Message))
	}

	levels := make([]severity.Severity, 0, len(in.Findings)+len(violations))
	for _, f := range in.Findings {
		levels = append(levels, severity.Normalize(f.Severity))
	}
	for _, v := range violations {
		levels = append(levels, v.Severity)
	}
	top := severity.Max(levels...)

	d := Decision{
		Stage:           in.Stage,
		Status:          StatusAllowed,
		MaxSeverity:     top,
		Policy:          in.Policy,
		EvidenceSummary: in.Evidence,
		RepoState:       in.RepoState,
		Violations:      violations,
	}
	d.Policy.Trace.Notes = mergeNotes(in.Policy.Trace.Notes, in.Notes)

	switch {
	case top != "" && top.AtLeast(in.Policy.BlockOnOrAbove):
		d.Status = StatusBlocked
	case top != "" && top.AtLeast(in.Policy.WarnOnOrAbove):
		d.Warn = true
		d.Warnings = append(d.Warnings, fmt.Sprintf("%d finding(s) at or above %s", countAtLeast(in.Findings, in.Policy.WarnOnOrAbove), in.Policy.WarnOnOrAbove.Legacy()))
	}
	for _, n := range d.Policy.Trace.Notes {
		d.Warnings = append(d.Warnings, "fallback: "+n)
	}
	return d
}

func countAtLeast(findings []report.Finding, threshold severity.Severity) int {
	n := 0
	for _, f := range findings {
		if severity.Normalize(f.Severity).AtLeast(threshold) {
			n++
		}
	}
	return n
}

func mergeNotes(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, n := range list {
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
