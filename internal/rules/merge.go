package rules

import (
	"fmt"
	"sort"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

// Catalog is the authoritative rule set of one run.
type Catalog struct {
	Rules map[string]Rule
	// Aliases maps an analyzer rule id to the rule ids that took it over.
	Aliases            map[string][]string
	Rulesets           []Ruleset
	Fallbacks          []string
	UnmappedHeuristics map[string]bool
}

// Merge unions rule sources, deduplicating by id. A higher-precedence
// source replaces a lower one and on equal precedence the later
// declaration wins. A locked skills rule is only replaced by a project rule
// that allows overriding locked rules.
func Merge(sources ...[]Rule) Catalog {
	c := Catalog{
		Rules:              make(map[string]Rule),
		Aliases:            make(map[string][]string),
		UnmappedHeuristics: make(map[string]bool),
	}
	for _, list := range sources {
		for _, r := range list {
			prev, ok := c.Rules[r.ID]
			if !ok {
				c.Rules[r.ID] = r
				continue
			}
			winner, loser := r, prev
			if prev.Source.Kind > r.Source.Kind {
				winner, loser = prev, r
			}
			if winner.Source.Kind == SourceProject && loser.Source.Kind == SourceSkills && loser.Locked && !winner.OverrideLocked {
				c.Fallbacks = append(c.Fallbacks, fmt.Sprintf("project rule %s cannot override locked skills rule from %s", r.ID, loser.Source.Bundle))
				winner = loser
			}
			c.Rules[r.ID] = winner
		}
	}

	for _, id := range c.ids() {
		for _, target := range c.Rules[id].MapsTo {
			if target == id {
				continue
			}
			c.Aliases[target] = append(c.Aliases[target], id)
		}
	}
	c.Rulesets = rulesetsOf(c.Rules)
	return c
}

func (c Catalog) ids() []string {
	out := make([]string, 0, len(c.Rules))
	for id := range c.Rules {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func rulesetsOf(rules map[string]Rule) []Ruleset {
	seen := make(map[Ruleset]bool)
	var out []Ruleset
	for _, r := range rules {
		rs := Ruleset{
			Platform: r.Platform.String(),
			Bundle:   r.Source.Bundle,
			Version:  r.Source.Version,
			Hash:     r.Source.Hash,
		}
		if rs.Bundle == "" {
			rs.Bundle = r.Source.Kind.String()
		}
		if !seen[rs] {
			seen[rs] = true
			out = append(out, rs)
		}
	}
	SortRulesets(out)
	return out
}

// SortRulesets orders by platform, bundle, version and hash.
func SortRulesets(list []Ruleset) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.Bundle != b.Bundle {
			return a.Bundle < b.Bundle
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Hash < b.Hash
	})
}

// AddFallbacks appends configuration fallback notes.
func (c *Catalog) AddFallbacks(notes ...string) {
	c.Fallbacks = append(c.Fallbacks, notes...)
}

// Resolve finds the rule a finding belongs to: its own id, or a rule that
// took the id over. When several rules alias the id, the one filed under
// the finding's platform wins. Unresolved ids are recorded as unmapped.
func (c Catalog) Resolve(f report.Finding) (Rule, bool) {
	if r, ok := c.Rules[f.RuleID]; ok {
		return r, true
	}
	aliases := c.Aliases[f.RuleID]
	if len(aliases) == 0 {
		if c.UnmappedHeuristics != nil {
			c.UnmappedHeuristics[f.RuleID] = true
		}
		return Rule{}, false
	}
	p := platform.Classify(f.FilePath)
	for _, id := range aliases {
		if r := c.Rules[id]; r.Platform == p {
			return r, true
		}
	}
	return c.Rules[aliases[0]], true
}

// Apply rewrites findings onto their resolved rules. Skills and project
// rules impose their id and severity; baseline and heuristic rules keep the
// analyzer's severity. Severities come out on the internal scale.
func (c Catalog) Apply(findings []report.Finding) []report.Finding {
	out := make([]report.Finding, 0, len(findings))
	for _, f := range findings {
		r, ok := c.Resolve(f)
		switch {
		case ok && r.Source.Kind.imposesSeverity():
			f.RuleID = r.ID
			f.Severity = string(r.Severity)
		case ok && f.Severity == "":
			f.Severity = string(r.Severity)
		default:
			f.Severity = string(severity.Normalize(f.Severity))
		}
		out = append(out, f)
	}
	return out
}

// Unmapped returns the unresolved rule ids seen by Resolve, sorted.
func (c Catalog) Unmapped() []string {
	out := make([]string, 0, len(c.UnmappedHeuristics))
	for id := range c.UnmappedHeuristics {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ComputeCoverage reports how many catalog rules were evaluated this run and
// how many of those matched at least one finding. evaluated holds the rule
// ids the run executed, before alias resolution; findings are expected to
// have gone through Apply.
func ComputeCoverage(c Catalog, evaluated []string, findings []report.Finding) Coverage {
	evalSet := make(map[string]bool)
	for _, id := range evaluated {
		if _, ok := c.Rules[id]; ok {
			evalSet[id] = true
		}
		for _, alias := range c.Aliases[id] {
			evalSet[alias] = true
		}
	}
	matched := make(map[string]bool)
	for _, f := range findings {
		if evalSet[f.RuleID] {
			matched[f.RuleID] = true
		}
	}

	cov := Coverage{
		Available:    len(c.Rules),
		Evaluated:    len(evalSet),
		MatchedIDs:   []string{},
		UnmatchedIDs: []string{},
	}
	for id := range evalSet {
		if matched[id] {
			cov.MatchedIDs = append(cov.MatchedIDs, id)
		} else {
			cov.UnmatchedIDs = append(cov.UnmatchedIDs, id)
		}
	}
	sort.Strings(cov.MatchedIDs)
	sort.Strings(cov.UnmatchedIDs)
	cov.Matched = len(cov.MatchedIDs)
	cov.Unmatched = len(cov.UnmatchedIDs)
	return cov
}
