//go:build property
// +build property

package evidence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

var severityTokens = []string{"critical", "HIGH", "error", "warn", "MEDIUM", "info", "low", "nonsense", ""}

func genFindings() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflect.TypeOf(report.Finding{}), map[string]gopter.Gen{
		"RuleID":   gen.OneConstOf("heuristics.ts.console-log.ast", "text.raw-sql", "common.security.secret"),
		"Severity": gen.IntRange(0, len(severityTokens)-1).Map(func(i int) string { return severityTokens[i] }),
		"FilePath": gen.OneConstOf("apps/backend/a.ts", "apps/web/b.tsx", "apps/ios/C.swift", "tools/x.ts"),
		"Line":     gen.IntRange(1, 40),
		"Message":  gen.AlphaString(),
	}))
}

// Property: by_severity always sums to the number of findings.
func TestSeverityMetricsSum(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("by_severity sums to len(findings)", prop.ForAll(
		func(findings []report.Finding) bool {
			b := Build(Input{Stage: "PRE_PUSH", Status: StatusAllowed, Findings: findings, Now: t0})
			total := 0
			for _, n := range b.SeverityMetrics.BySeverity {
				total += n
			}
			return total == len(b.Snapshot.Findings) && total == b.SeverityMetrics.TotalViolations
		},
		genFindings(),
	))

	properties.TestingRun(t)
}

// Property: sealing is independent of finding order and always verifies.
func TestSealDeterministicAndVerifiable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("reversed input yields the same hash", prop.ForAll(
		func(findings []report.Finding) bool {
			unique := report.Dedupe(findings)
			reversed := make([]report.Finding, len(unique))
			for i, f := range unique {
				reversed[len(unique)-1-i] = f
			}
			a, errA := Seal(Build(Input{Stage: "CI", Status: StatusAllowed, Findings: unique, Now: t0}))
			b, errB := Seal(Build(Input{Stage: "CI", Status: StatusAllowed, Findings: reversed, Now: t0}))
			if errA != nil || errB != nil {
				return false
			}
			return a.Integrity.PayloadHash == b.Integrity.PayloadHash
		},
		genFindings(),
	))

	properties.Property("verify(serialize(seal(body))) is valid", prop.ForAll(
		func(findings []report.Finding) bool {
			c, err := Seal(Build(Input{Stage: "PRE_COMMIT", Status: StatusBlocked, Findings: findings, Now: t0}))
			if err != nil {
				return false
			}
			data, err := json.Marshal(c)
			if err != nil {
				return false
			}
			return Verify(data).Valid
		},
		genFindings(),
	))

	properties.Property("any changed message flips verification", prop.ForAll(
		func(findings []report.Finding, suffix string) bool {
			c, err := Seal(Build(Input{Stage: "PRE_COMMIT", Status: StatusAllowed, Findings: findings, Now: t0}))
			if err != nil || len(c.Snapshot.Findings) == 0 {
				return true
			}
			c.Snapshot.Findings[0].Message += fmt.Sprintf("#%s", suffix)
			data, err := json.Marshal(c)
			if err != nil {
				return false
			}
			v := Verify(data)
			return !v.Valid && v.Reason == ReasonHashMismatch
		},
		genFindings(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
