// Package rules builds the rule catalog of a run from the built-in baseline,
// the analyzer heuristics, skills bundles and project-declared rules, and
// resolves analyzer findings against it.
package rules

import (
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

// SourceKind orders rule sources by precedence, lowest first.
type SourceKind int

const (
	SourceBaseline SourceKind = iota
	SourceHeuristic
	SourceSkills
	SourceProject
)

func (k SourceKind) String() string {
	switch k {
	case SourceBaseline:
		return "baseline"
	case SourceHeuristic:
		return "heuristic"
	case SourceSkills:
		return "skills"
	case SourceProject:
		return "project"
	default:
		return "unknown"
	}
}

func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// imposesSeverity reports whether rules of this kind replace the analyzer's
// severity with their own.
func (k SourceKind) imposesSeverity() bool {
	return k == SourceSkills || k == SourceProject
}

// Source identifies where a rule was declared. Bundle, Version and Hash are
// set for skills bundles; project rules carry their file path as Bundle.
type Source struct {
	Kind    SourceKind `json:"kind"`
	Bundle  string     `json:"bundle,omitempty"`
	Version string     `json:"version,omitempty"`
	Hash    string     `json:"hash,omitempty"`
}

type Mode string

const (
	ModeAuto        Mode = "AUTO"
	ModeDeclarative Mode = "DECLARATIVE"
)

type Rule struct {
	ID             string            `json:"id"`
	Description    string            `json:"description"`
	Severity       severity.Severity `json:"severity"`
	Platform       platform.Platform `json:"platform"`
	EvaluationMode Mode              `json:"evaluationMode"`
	Stage          string            `json:"stage,omitempty"`
	Locked         bool              `json:"locked"`
	Confidence     string            `json:"confidence,omitempty"`
	Source         Source            `json:"source"`
	// MapsTo lists the analyzer rule ids this rule takes over.
	MapsTo []string `json:"mapsTo,omitempty"`
	// OverrideLocked lets a project rule replace a locked skills rule.
	OverrideLocked bool `json:"-"`
}

// Ruleset names one rule collection that took part in a run.
type Ruleset struct {
	Platform string `json:"platform"`
	Bundle   string `json:"bundle"`
	Version  string `json:"version"`
	Hash     string `json:"hash"`
}

// Coverage is diagnostic only; the gate never reads it.
type Coverage struct {
	Available    int      `json:"rules_available"`
	Evaluated    int      `json:"rules_evaluated"`
	Matched      int      `json:"rules_matched"`
	Unmatched    int      `json:"rules_unmatched"`
	MatchedIDs   []string `json:"matched_rule_ids"`
	UnmatchedIDs []string `json:"unmatched_rule_ids"`
}
