package rules

import (
	"sort"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/registry"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

const (
	heuristicPrefix = "heuristics."

	BaselineBundle  = "baseline"
	HeuristicBundle = "heuristics.ast"
	builtinVersion  = "1.0.0"
)

// Baseline returns the built-in rules that are always active: every
// analyzer rule outside the heuristics namespace, at its declared severity.
func Baseline() []Rule {
	return fromInfos(registry.Rules(registry.DefaultChecks()), SourceBaseline, func(id string) bool {
		return !strings.HasPrefix(id, heuristicPrefix)
	})
}

// Heuristic derives the AST heuristic rules declared by list. Heuristics
// without a declared severity default to WARN.
func Heuristic(list []checks.Check) []Rule {
	return fromInfos(registry.Rules(list), SourceHeuristic, func(id string) bool {
		return strings.HasPrefix(id, heuristicPrefix)
	})
}

func fromInfos(infos []checks.RuleInfo, kind SourceKind, keep func(string) bool) []Rule {
	var out []Rule
	for _, info := range infos {
		if !keep(info.ID) {
			continue
		}
		sev := severity.Medium
		if strings.TrimSpace(info.Severity) != "" {
			sev = severity.Normalize(info.Severity)
		}
		out = append(out, Rule{
			ID:             info.ID,
			Description:    info.Description,
			Severity:       sev,
			Platform:       rulePlatform(info.ID),
			EvaluationMode: ModeAuto,
			Locked:         kind == SourceBaseline,
			Source:         Source{Kind: kind},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	bundle := BaselineBundle
	if kind == SourceHeuristic {
		bundle = HeuristicBundle
	}
	hash := mustHash(hashView(out))
	for i := range out {
		out[i].Source.Bundle = bundle
		out[i].Source.Version = builtinVersion
		out[i].Source.Hash = hash
	}
	return out
}

// rulePlatform picks the single platform a rule is filed under. Ids that
// co-attribute to several platforms are filed under Other.
func rulePlatform(id string) platform.Platform {
	ps := platform.ClassifyRule(id)
	if len(ps) == 1 {
		return ps[0]
	}
	return platform.Other
}

type hashedRule struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Platform string `json:"platform"`
	Mode     string `json:"evaluationMode"`
}

func hashView(rules []Rule) []hashedRule {
	out := make([]hashedRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, hashedRule{ID: r.ID, Severity: string(r.Severity), Platform: r.Platform.String(), Mode: string(r.EvaluationMode)})
	}
	return out
}
