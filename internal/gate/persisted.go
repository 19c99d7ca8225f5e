package gate

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/sdd"
)

// PersistedInput judges an evidence file left behind by an earlier run
// instead of a fresh scan.
type PersistedInput struct {
	Stage             Stage
	Policy            Policy
	File              string
	Read              evidence.ReadResult
	Now               time.Time
	MaxAgeSeconds     int
	RepoState         gitexec.RepoState
	ProtectedBranches []string
	SDD               *sdd.Decision
}

// EvaluatePersisted checks presence, validity, freshness and stored status
// of the evidence, then applies the usual decision rule to its findings.
func EvaluatePersisted(in PersistedInput) Decision {
	name := filepath.Base(in.File)
	if in.File == "" {
		name = ".ai_evidence.json"
	}
	summary := EvidenceSummary{Kind: string(in.Read.Kind), MaxAgeSeconds: in.MaxAgeSeconds}
	var violations []Violation
	var findings []report.Finding

	switch in.Read.Kind {
	case evidence.ReadMissing:
		violations = append(violations, violation(CodeEvidenceMissing, name+" is missing."))
	case evidence.ReadInvalid:
		version := in.Read.Version
		if version == "" {
			version = "unknown"
		}
		violations = append(violations, violation(CodeEvidenceInvalid,
			fmt.Sprintf("%s is invalid (version=%s, reason=%s).", name, version, in.Read.Reason)))
	case evidence.ReadValid:
		c := in.Read.Contract
		summary.SourceVersion = in.Read.SourceVersion
		summary.FilesScanned = c.Snapshot.FilesScanned
		summary.TotalFindings = c.SeverityMetrics.TotalViolations
		summary.BySeverity = c.SeverityMetrics.BySeverity
		if c.Integrity != nil {
			summary.PayloadHash = c.Integrity.PayloadHash
			summary.SnapshotID = evidence.SnapshotID(c.Integrity.PayloadHash)
		}

		generated, err := time.Parse(time.RFC3339, c.GeneratedAt)
		if err != nil {
			violations = append(violations, violation(CodeEvidenceTimestampInvalid,
				fmt.Sprintf("Evidence timestamp %q is invalid.", c.GeneratedAt)))
		} else {
			age := int(in.Now.Sub(generated) / time.Second)
			if age < 0 {
				age = 0
			}
			summary.AgeSeconds = &age
		}
		if c.AIGate.Status == evidence.StatusBlocked {
			violations = append(violations, violation(CodeEvidenceGateBlocked, "Evidence AI gate status is BLOCKED."))
		}
		for _, f := range c.Snapshot.Findings {
			findings = append(findings, report.Finding{
				RuleID:   f.RuleID,
				Severity: string(f.Severity.Internal()),
				FilePath: f.File,
				Line:     f.Line,
				Column:   f.Column,
				Message:  f.Message,
			})
		}
	}

	return Evaluate(Input{
		Stage:             in.Stage,
		Policy:            in.Policy,
		Findings:          findings,
		Evidence:          summary,
		RepoState:         in.RepoState,
		ProtectedBranches: in.ProtectedBranches,
		SDD:               in.SDD,
		Violations:        violations,
	})
}
