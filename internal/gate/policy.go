package gate

import (
	"fmt"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/canonical"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/rules"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

const (
	SourceDefault      = "default"
	SourceSkillsPolicy = "skills.policy"
	SourceHardMode     = "hard-mode"
)

// Trace records where the thresholds of a policy came from.
type Trace struct {
	Source string   `json:"source"`
	Bundle string   `json:"bundle"`
	Hash   string   `json:"hash"`
	Notes  []string `json:"notes,omitempty"`
}

type Policy struct {
	Stage          Stage             `json:"stage"`
	ResolvedStage  Stage             `json:"resolved_stage"`
	BlockOnOrAbove severity.Severity `json:"blockOnOrAbove"`
	WarnOnOrAbove  severity.Severity `json:"warnOnOrAbove"`
	Trace          Trace             `json:"trace"`
}

type thresholds struct {
	block severity.Severity
	warn  severity.Severity
}

var defaults = map[Stage]thresholds{
	PreCommit: {block: severity.Critical, warn: severity.High},
	PrePush:   {block: severity.High, warn: severity.Medium},
	CI:        {block: severity.High, warn: severity.Medium},
}

var hardMode = thresholds{block: severity.High, warn: severity.Medium}

// DefaultPolicy is the built-in policy for stage.
func DefaultPolicy(stage Stage) Policy {
	return newPolicy(stage, SourceDefault, defaults[stage.PolicyStage()])
}

// ResolvePolicy picks the thresholds for stage. Hard mode wins over a
// repo-local skills policy, which wins over the defaults. A malformed or
// incomplete skills policy falls back to the defaults and says so in the
// trace notes.
func ResolvePolicy(stage Stage, pr rules.PolicyResult, hard bool) Policy {
	notes := append([]string(nil), pr.Notes...)

	if hard {
		p := newPolicy(stage, SourceHardMode, hardMode)
		p.Trace.Notes = notes
		return p
	}

	if pr.Policy != nil {
		sp, ok := pr.Policy.Stages[string(stage.PolicyStage())]
		switch {
		case !ok:
			notes = append(notes, fmt.Sprintf("%s has no %s stage; using defaults", rules.SkillsPolicyFile, stage.PolicyStage()))
		case !sp.BlockOnOrAbove.Valid() || !sp.WarnOnOrAbove.Valid():
			notes = append(notes, fmt.Sprintf("%s %s thresholds invalid; using defaults", rules.SkillsPolicyFile, stage.PolicyStage()))
		default:
			p := newPolicy(stage, SourceSkillsPolicy, thresholds{
				block: sp.BlockOnOrAbove.Internal(),
				warn:  sp.WarnOnOrAbove.Internal(),
			})
			p.Trace.Notes = notes
			return p
		}
	}

	p := DefaultPolicy(stage)
	p.Trace.Notes = notes
	return p
}

// WithThresholds returns a copy of p with explicit thresholds, retraced as
// an override.
func (p Policy) WithThresholds(block, warn severity.Severity) Policy {
	out := newPolicy(p.Stage, p.Trace.Source, thresholds{block: block, warn: warn})
	out.Trace.Notes = append([]string(nil), p.Trace.Notes...)
	return out
}

func newPolicy(stage Stage, source string, t thresholds) Policy {
	resolved := stage.PolicyStage()
	return Policy{
		Stage:          stage,
		ResolvedStage:  resolved,
		BlockOnOrAbove: t.block,
		WarnOnOrAbove:  t.warn,
		Trace: Trace{
			Source: source,
			Bundle: fmt.Sprintf("gate-policy.%s.%s", source, resolved),
			Hash:   thresholdHash(resolved, source, t),
		},
	}
}

func thresholdHash(stage Stage, source string, t thresholds) string {
	h, err := canonical.Hash(map[string]string{
		"stage":          string(stage),
		"source":         source,
		"blockOnOrAbove": string(t.block.Legacy()),
		"warnOnOrAbove":  string(t.warn.Legacy()),
	})
	if err != nil {
		return ""
	}
	return h
}
