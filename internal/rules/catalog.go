package rules

import (
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
)

// Declared holds the repo-local rule artifacts of a run.
type Declared struct {
	Lock    LockResult
	Policy  PolicyResult
	Project *ProjectRuleSet
}

// LoadDeclared reads the skills lock, the skills policy and the project
// rule file of root. Problems with any of them become notes, never errors.
func LoadDeclared(root string) Declared {
	return Declared{
		Lock:    LoadSkillsLock(root),
		Policy:  LoadSkillsPolicy(root),
		Project: LoadProjectRules(root),
	}
}

// Notes returns every fallback note collected while loading.
func (d Declared) Notes() []string {
	var out []string
	out = append(out, d.Lock.Notes...)
	out = append(out, d.Policy.Notes...)
	if d.Project != nil {
		out = append(out, d.Project.Notes...)
	}
	return out
}

// Build merges the four sources for stage. list is the set of checks the
// run executes; their heuristics are dropped when an active skills or
// project rule takes them over.
func (d Declared) Build(list []checks.Check, stage string) Catalog {
	skills := Skills(d.Lock.Lock, d.Policy.Policy, stage)
	project := d.Project.Active(stage)
	heuristics := WithoutMapped(Heuristic(list), skills, project)

	c := Merge(Baseline(), heuristics, skills, project)
	c.AddFallbacks(d.Notes()...)
	return c
}
