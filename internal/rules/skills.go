package rules

import (
	"sort"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

var stageRank = map[string]int{
	"PRE_WRITE":  10,
	"PRE_COMMIT": 10,
	"PRE_PUSH":   20,
	"CI":         30,
}

// StageApplies reports whether a rule declared for ruleStage is active at
// stage. Rules without a stage apply everywhere.
func StageApplies(ruleStage, stage string) bool {
	if ruleStage == "" {
		return true
	}
	want, ok := stageRank[ruleStage]
	if !ok {
		return true
	}
	return stageRank[stage] >= want
}

func promotes(stage string) bool {
	return stage == "PRE_PUSH" || stage == "CI"
}

// skillsToHeuristic links skills rule ids to the analyzer heuristic that
// detects them.
var skillsToHeuristic = map[string]string{
	"skills.ios.no-force-unwrap":                   "heuristics.ios.force-unwrap.ast",
	"skills.ios.no-force-try":                      "heuristics.ios.force-try.ast",
	"skills.ios.no-anyview":                        "heuristics.ios.anyview.ast",
	"skills.ios.no-force-cast":                     "heuristics.ios.force-cast.ast",
	"skills.ios.no-callback-style-outside-bridges": "heuristics.ios.callback-style.ast",
	"skills.ios.no-dispatchqueue":                  "heuristics.ios.dispatchqueue.ast",
	"skills.ios.no-dispatchgroup":                  "heuristics.ios.dispatchgroup.ast",
	"skills.ios.no-dispatchsemaphore":              "heuristics.ios.dispatchsemaphore.ast",
	"skills.ios.no-operation-queue":                "heuristics.ios.operation-queue.ast",
	"skills.ios.no-task-detached":                  "heuristics.ios.task-detached.ast",
	"skills.ios.no-unchecked-sendable":             "heuristics.ios.unchecked-sendable.ast",
	"skills.ios.no-observable-object":              "heuristics.ios.observable-object.ast",
	"skills.ios.no-navigation-view":                "heuristics.ios.navigation-view.ast",
	"skills.ios.no-on-tap-gesture":                 "heuristics.ios.on-tap-gesture.ast",
	"skills.ios.no-string-format":                  "heuristics.ios.string-format.ast",
	"skills.ios.no-uiscreen-main-bounds":           "heuristics.ios.uiscreen-main-bounds.ast",
	"skills.backend.no-empty-catch":                "heuristics.ts.empty-catch.ast",
	"skills.backend.no-console-log":                "heuristics.ts.console-log.ast",
	"skills.backend.avoid-explicit-any":            "heuristics.ts.explicit-any.ast",
	"skills.frontend.no-empty-catch":               "heuristics.ts.empty-catch.ast",
	"skills.frontend.no-console-log":               "heuristics.ts.console-log.ast",
	"skills.frontend.avoid-explicit-any":           "heuristics.ts.explicit-any.ast",
	"skills.android.no-thread-sleep":               "heuristics.android.thread-sleep.ast",
	"skills.android.no-globalscope":                "heuristics.android.globalscope.ast",
	"skills.android.no-runblocking":                "heuristics.android.run-blocking.ast",
}

// HeuristicFor returns the analyzer heuristic a skills rule maps to.
func HeuristicFor(skillsID string) (string, bool) {
	h, ok := skillsToHeuristic[skillsID]
	return h, ok
}

// Skills returns the active rules of the enabled bundles for stage.
// Promotion to ERROR only happens at PRE_PUSH and CI.
func Skills(lock *SkillsLock, policy *SkillsPolicy, stage string) []Rule {
	if lock == nil {
		return nil
	}
	var out []Rule
	for _, b := range lock.Bundles {
		if !policy.BundleEnabled(b.Name) {
			continue
		}
		for _, sr := range b.Rules {
			if !StageApplies(sr.Stage, stage) {
				continue
			}
			sev := severity.Legacy(strings.ToUpper(sr.Severity)).Internal()
			if promotes(stage) && policy.promoted(b.Name, sr.ID) && !sev.AtLeast(severity.High) {
				sev = severity.High
			}
			r := Rule{
				ID:          sr.ID,
				Description: sr.Description,
				Severity:    sev,
				Platform:    platform.Parse(sr.Platform),
				Stage:       sr.Stage,
				Locked:      sr.Locked == nil || *sr.Locked,
				Confidence:  sr.Confidence,
				Source: Source{
					Kind:    SourceSkills,
					Bundle:  b.Name,
					Version: b.Version,
					Hash:    b.Hash,
				},
			}
			if h, ok := skillsToHeuristic[sr.ID]; ok {
				r.MapsTo = []string{h}
				r.EvaluationMode = ModeAuto
			} else {
				r.EvaluationMode = Mode(strings.ToUpper(sr.EvaluationMode))
				if r.EvaluationMode != ModeAuto {
					r.EvaluationMode = ModeDeclarative
				}
			}
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithoutMapped drops the heuristic rules taken over by an active rule's
// MapsTo list.
func WithoutMapped(heuristics []Rule, active ...[]Rule) []Rule {
	mapped := make(map[string]bool)
	for _, list := range active {
		for _, r := range list {
			for _, id := range r.MapsTo {
				mapped[id] = true
			}
		}
	}
	out := make([]Rule, 0, len(heuristics))
	for _, r := range heuristics {
		if !mapped[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
