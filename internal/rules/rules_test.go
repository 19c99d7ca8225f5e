package rules

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/registry"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func boolPtr(b bool) *bool { return &b }

func testLock(t *testing.T, mutate func(*SkillsLock)) []byte {
	t.Helper()
	rules := []SkillsRule{
		{ID: "skills.backend.no-console-log", Description: "No console.log", Severity: "WARN", Platform: "backend", SourceSkill: "backend-guidelines", SourcePath: "skills/backend/SKILL.md"},
		{ID: "skills.backend.no-empty-catch", Description: "No empty catch", Severity: "ERROR", Platform: "backend", SourceSkill: "backend-guidelines", SourcePath: "skills/backend/SKILL.md", Stage: "PRE_PUSH"},
		{ID: "skills.backend.prefer-result-types", Description: "Prefer result types", Severity: "INFO", Platform: "backend", SourceSkill: "backend-guidelines", SourcePath: "skills/backend/SKILL.md", Locked: boolPtr(false)},
	}
	lock := SkillsLock{
		Version:         "1.0",
		CompilerVersion: "1.2.0",
		GeneratedAt:     "2026-01-10T10:00:00Z",
		Bundles: []SkillsBundle{
			{Name: "backend-guidelines", Version: "2.1.0", Source: "file:skills/backend", Hash: BundleHash(rules), Rules: rules},
		},
	}
	if mutate != nil {
		mutate(&lock)
	}
	data, err := json.Marshal(lock)
	require.NoError(t, err)
	return data
}

func TestMergePrecedenceProjectOverBaseline(t *testing.T) {
	base := []Rule{{ID: "text.raw-sql", Severity: severity.Medium, Source: Source{Kind: SourceBaseline}}}
	project := []Rule{{ID: "text.raw-sql", Severity: severity.Critical, Source: Source{Kind: SourceProject, Bundle: ".pumuki/custom-rules.json"}}}

	// Declaration order must not matter across different precedences.
	for _, order := range [][][]Rule{{base, project}, {project, base}} {
		c := Merge(order...)
		require.Contains(t, c.Rules, "text.raw-sql")
		assert.Equal(t, severity.Critical, c.Rules["text.raw-sql"].Severity)
		assert.Equal(t, SourceProject, c.Rules["text.raw-sql"].Source.Kind)
	}
}

func TestMergeEqualPrecedenceLaterWins(t *testing.T) {
	first := []Rule{{ID: "x", Severity: severity.Low, Source: Source{Kind: SourceSkills, Bundle: "a"}}}
	second := []Rule{{ID: "x", Severity: severity.High, Source: Source{Kind: SourceSkills, Bundle: "b"}}}
	c := Merge(first, second)
	assert.Equal(t, "b", c.Rules["x"].Source.Bundle)
	assert.Equal(t, severity.High, c.Rules["x"].Severity)
}

func TestMergeLockedSkillsRule(t *testing.T) {
	skills := []Rule{{ID: "skills.ios.no-force-unwrap", Severity: severity.High, Locked: true, Source: Source{Kind: SourceSkills, Bundle: "ios-guidelines"}}}
	project := []Rule{{ID: "skills.ios.no-force-unwrap", Severity: severity.Low, Source: Source{Kind: SourceProject}}}

	c := Merge(skills, project)
	assert.Equal(t, SourceSkills, c.Rules["skills.ios.no-force-unwrap"].Source.Kind)
	require.Len(t, c.Fallbacks, 1)
	assert.Contains(t, c.Fallbacks[0], "cannot override locked")

	project[0].OverrideLocked = true
	c = Merge(skills, project)
	assert.Equal(t, SourceProject, c.Rules["skills.ios.no-force-unwrap"].Source.Kind)
	assert.Empty(t, c.Fallbacks)
}

func TestSkillsStageGatingAndPromotion(t *testing.T) {
	lock, err := ParseSkillsLock(testLock(t, nil))
	require.NoError(t, err)
	policy := &SkillsPolicy{
		Version:              "1.0",
		DefaultBundleEnabled: true,
		Bundles: map[string]BundlePolicy{
			"backend-guidelines": {Enabled: true, PromoteToErrorRuleIDs: []string{"skills.backend.no-console-log"}},
		},
	}

	byID := func(list []Rule) map[string]Rule {
		out := make(map[string]Rule)
		for _, r := range list {
			out[r.ID] = r
		}
		return out
	}

	commit := byID(Skills(lock, policy, "PRE_COMMIT"))
	assert.NotContains(t, commit, "skills.backend.no-empty-catch")
	assert.Equal(t, severity.Medium, commit["skills.backend.no-console-log"].Severity)
	assert.Equal(t, []string{"heuristics.ts.console-log.ast"}, commit["skills.backend.no-console-log"].MapsTo)
	assert.True(t, commit["skills.backend.no-console-log"].Locked)
	assert.False(t, commit["skills.backend.prefer-result-types"].Locked)
	assert.Equal(t, ModeDeclarative, commit["skills.backend.prefer-result-types"].EvaluationMode)

	preWrite := byID(Skills(lock, policy, "PRE_WRITE"))
	assert.Equal(t, len(commit), len(preWrite))

	push := byID(Skills(lock, policy, "PRE_PUSH"))
	assert.Contains(t, push, "skills.backend.no-empty-catch")
	assert.Equal(t, severity.High, push["skills.backend.no-console-log"].Severity)
	assert.Equal(t, platform.Backend, push["skills.backend.no-console-log"].Platform)

	policy.Bundles["backend-guidelines"] = BundlePolicy{Enabled: false}
	assert.Empty(t, Skills(lock, policy, "CI"))
}

func TestBundleEnabledDefaults(t *testing.T) {
	var none *SkillsPolicy
	assert.True(t, none.BundleEnabled("anything"))

	p := &SkillsPolicy{DefaultBundleEnabled: false, Bundles: map[string]BundlePolicy{"on": {Enabled: true}}}
	assert.True(t, p.BundleEnabled("on"))
	assert.False(t, p.BundleEnabled("other"))
}

func TestStageApplies(t *testing.T) {
	tests := []struct {
		rule, stage string
		want        bool
	}{
		{"", "PRE_COMMIT", true},
		{"PRE_COMMIT", "PRE_WRITE", true},
		{"PRE_PUSH", "PRE_COMMIT", false},
		{"PRE_PUSH", "CI", true},
		{"CI", "PRE_PUSH", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StageApplies(tt.rule, tt.stage), "%s at %s", tt.rule, tt.stage)
	}
}

func TestLoadSkillsLock(t *testing.T) {
	t.Run("missing file is not a fallback", func(t *testing.T) {
		res := LoadSkillsLock(t.TempDir())
		assert.Nil(t, res.Lock)
		assert.Empty(t, res.Notes)
	})

	t.Run("valid lock", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, SkillsLockFile, string(testLock(t, nil)))
		res := LoadSkillsLock(root)
		require.NotNil(t, res.Lock)
		assert.Empty(t, res.Notes)
		assert.Len(t, res.Hash, 64)
		assert.False(t, res.Lock.Bundles[0].Drift)
	})

	t.Run("drift is flagged but bundle kept", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, SkillsLockFile, string(testLock(t, func(l *SkillsLock) {
			l.Bundles[0].Rules[0].Severity = "CRITICAL"
		})))
		res := LoadSkillsLock(root)
		require.NotNil(t, res.Lock)
		assert.True(t, res.Lock.Bundles[0].Drift)
		assert.Equal(t, []string{"bundle hash drift: backend-guidelines@2.1.0"}, res.Notes)
	})

	t.Run("schema violation", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, SkillsLockFile, string(testLock(t, func(l *SkillsLock) {
			l.Bundles[0].Rules[0].Severity = "SEVERE"
		})))
		res := LoadSkillsLock(root)
		assert.Nil(t, res.Lock)
		require.Len(t, res.Notes, 1)
		assert.True(t, strings.HasPrefix(res.Notes[0], "skills.lock.json invalid"))
	})

	t.Run("bad semver", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, SkillsLockFile, string(testLock(t, func(l *SkillsLock) {
			l.Bundles[0].Version = "v2"
		})))
		res := LoadSkillsLock(root)
		assert.Nil(t, res.Lock)
		assert.Len(t, res.Notes, 1)
	})

	t.Run("malformed json", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, SkillsLockFile, "{not json")
		res := LoadSkillsLock(root)
		assert.Nil(t, res.Lock)
		assert.Len(t, res.Notes, 1)
	})
}

func TestLockHashIgnoresOrder(t *testing.T) {
	a, err := ParseSkillsLock(testLock(t, nil))
	require.NoError(t, err)
	b, err := ParseSkillsLock(testLock(t, func(l *SkillsLock) {
		r := l.Bundles[0].Rules
		r[0], r[2] = r[2], r[0]
		l.GeneratedAt = "2026-02-01T00:00:00Z"
	}))
	require.NoError(t, err)
	assert.Equal(t, LockHash(a), LockHash(b))
	assert.False(t, b.Bundles[0].Drift)
}

func TestLoadSkillsPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, SkillsPolicyFile, `{
  "version": "1.0",
  "defaultBundleEnabled": true,
  "stages": {
    "PRE_COMMIT": {"blockOnOrAbove": "ERROR", "warnOnOrAbove": "WARN"},
    "PRE_PUSH": {"blockOnOrAbove": "ERROR", "warnOnOrAbove": "WARN"},
    "CI": {"blockOnOrAbove": "WARN", "warnOnOrAbove": "INFO"}
  },
  "bundles": {"ios-guidelines": {"enabled": false}}
}`)
	res := LoadSkillsPolicy(root)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Policy)
	assert.Equal(t, severity.LegacyWarn, res.Policy.Stages["CI"].BlockOnOrAbove)
	assert.False(t, res.Policy.BundleEnabled("ios-guidelines"))
	assert.Len(t, res.Hash, 64)

	writeFile(t, root, SkillsPolicyFile, `{"version": "1.0", "stages": {}}`)
	res = LoadSkillsPolicy(root)
	assert.Error(t, res.Err)
	assert.Nil(t, res.Policy)
	require.Len(t, res.Notes, 1)
	assert.Contains(t, res.Notes[0], "skills.policy.json invalid")
}

func TestBaselineAndHeuristicSplit(t *testing.T) {
	base := Baseline()
	heur := Heuristic(registry.DefaultChecks())
	require.NotEmpty(t, base)
	require.NotEmpty(t, heur)

	for _, r := range base {
		assert.False(t, strings.HasPrefix(r.ID, "heuristics."), r.ID)
		assert.Equal(t, SourceBaseline, r.Source.Kind)
	}
	for _, r := range heur {
		assert.True(t, strings.HasPrefix(r.ID, "heuristics."), r.ID)
		assert.Equal(t, ModeAuto, r.EvaluationMode)
	}

	c := Merge(base, heur)
	assert.Equal(t, severity.Medium, c.Rules["heuristics.ts.console-log.ast"].Severity)
	assert.Equal(t, severity.Critical, c.Rules["workflow.bdd.missing_feature_files"].Severity)
	assert.Equal(t, platform.IOS, c.Rules["heuristics.ios.force-unwrap.ast"].Platform)
	assert.Equal(t, platform.Other, c.Rules["heuristics.ts.console-log.ast"].Platform)
}

func TestApplyResolvesAliases(t *testing.T) {
	lock, err := ParseSkillsLock(testLock(t, nil))
	require.NoError(t, err)
	d := Declared{Lock: LockResult{Lock: lock}}
	c := d.Build(registry.DefaultChecks(), "PRE_PUSH")

	assert.NotContains(t, c.Rules, "heuristics.ts.console-log.ast")
	assert.Equal(t, []string{"skills.backend.no-console-log"}, c.Aliases["heuristics.ts.console-log.ast"])

	findings := []report.Finding{
		{RuleID: "heuristics.ts.console-log.ast", Severity: "WARN", FilePath: "apps/backend/src/a.ts", Line: 3},
		{RuleID: "heuristics.ts.eval.ast", Severity: "WARN", FilePath: "apps/backend/src/a.ts", Line: 4},
		{RuleID: "text.raw-sql", Severity: "medium", FilePath: "apps/ios/A.swift", Line: 1},
		{RuleID: "vendor.unknown", Severity: "blocker", FilePath: "x.ts", Line: 1},
	}
	got := c.Apply(findings)
	require.Len(t, got, 4)

	assert.Equal(t, "skills.backend.no-console-log", got[0].RuleID)
	assert.Equal(t, "MEDIUM", got[0].Severity)
	assert.Equal(t, "heuristics.ts.eval.ast", got[1].RuleID)
	assert.Equal(t, "MEDIUM", got[1].Severity)
	assert.Equal(t, "MEDIUM", got[2].Severity)
	assert.Equal(t, "CRITICAL", got[3].Severity)
	assert.Equal(t, []string{"vendor.unknown"}, c.Unmapped())
}

func TestResolvePrefersFindingPlatform(t *testing.T) {
	c := Merge([]Rule{
		{ID: "skills.backend.no-console-log", Platform: platform.Backend, MapsTo: []string{"h"}, Source: Source{Kind: SourceSkills}},
		{ID: "skills.frontend.no-console-log", Platform: platform.Frontend, MapsTo: []string{"h"}, Source: Source{Kind: SourceSkills}},
	})
	r, ok := c.Resolve(report.Finding{RuleID: "h", FilePath: "apps/web/src/a.tsx"})
	require.True(t, ok)
	assert.Equal(t, "skills.frontend.no-console-log", r.ID)

	r, ok = c.Resolve(report.Finding{RuleID: "h", FilePath: "scripts/tool.ts"})
	require.True(t, ok)
	assert.Equal(t, "skills.backend.no-console-log", r.ID)
}

func TestComputeCoverage(t *testing.T) {
	c := Merge([]Rule{
		{ID: "a", Source: Source{Kind: SourceBaseline}},
		{ID: "b", Source: Source{Kind: SourceBaseline}},
		{ID: "c", Source: Source{Kind: SourceBaseline}},
		{ID: "skills.x", MapsTo: []string{"h"}, Source: Source{Kind: SourceSkills}},
	})
	cov := ComputeCoverage(c, []string{"a", "b", "h", "not-in-catalog"}, []report.Finding{
		{RuleID: "a"}, {RuleID: "a"}, {RuleID: "skills.x"}, {RuleID: "c"},
	})
	assert.Equal(t, 4, cov.Available)
	assert.Equal(t, 3, cov.Evaluated)
	assert.Equal(t, []string{"a", "skills.x"}, cov.MatchedIDs)
	assert.Equal(t, []string{"b"}, cov.UnmatchedIDs)
	assert.Equal(t, cov.Evaluated, cov.Matched+cov.Unmatched)
}

func TestRulesetsDeduplicated(t *testing.T) {
	c := Merge(Baseline())
	seen := make(map[Ruleset]bool)
	for _, rs := range c.Rulesets {
		assert.False(t, seen[rs])
		seen[rs] = true
		assert.Equal(t, BaselineBundle, rs.Bundle)
		assert.Len(t, rs.Hash, 64)
	}
}

const customRules = `{
  "version": "1.0",
  "generatedAt": "2026-01-01T00:00:00Z",
  "allowOverrideLocked": false,
  "rules": [
    {
      "id": "project.backend.no-legacy-client",
      "description": "Legacy HTTP client is banned",
      "severity": "ERROR",
      "platform": "backend",
      "when": "file.platform == 'backend' && file.ext == '.ts'",
      "pattern": "LegacyHttpClient"
    },
    {
      "id": "project.generic.no-tmp-dirs",
      "description": "Sources must not live in tmp folders",
      "severity": "WARN",
      "platform": "generic",
      "when": "file.path.contains('/tmp/')",
      "stage": "PRE_PUSH"
    },
    {
      "id": "project.broken",
      "description": "Does not compile",
      "severity": "INFO",
      "platform": "generic",
      "when": "file.missing("
    },
    {
      "id": "text.raw-sql",
      "description": "Raw SQL is an error here",
      "severity": "CRITICAL",
      "platform": "generic"
    }
  ]
}`

func TestProjectRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".pumuki/custom-rules.json", customRules)

	set := LoadProjectRules(root)
	require.NotNil(t, set)
	assert.Equal(t, ".pumuki/custom-rules.json", set.Path)
	require.Len(t, set.Notes, 1)
	assert.Contains(t, set.Notes[0], "project.broken")
	require.Len(t, set.Rules, 3)

	assert.Len(t, set.Active("PRE_COMMIT"), 2)
	assert.Len(t, set.Active("CI"), 3)
	assert.Len(t, set.Declarative("PRE_COMMIT"), 1)

	files := []FileInput{
		{Path: "apps/backend/src/api.ts", Content: "import x from 'y'\nconst c = new LegacyHttpClient()\n"},
		{Path: "apps/web/src/api.ts", Content: "const c = new LegacyHttpClient()\n"},
		{Path: "apps/backend/tmp/x.ts", Content: "export {}\n"},
	}
	got, err := EvaluateProjectRules(context.Background(), set.Declarative("PRE_PUSH"), files)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "project.backend.no-legacy-client", got[0].RuleID)
	assert.Equal(t, 2, got[0].Line)
	assert.Equal(t, "HIGH", got[0].Severity)
	assert.Equal(t, "project.generic.no-tmp-dirs", got[1].RuleID)
	assert.Equal(t, "apps/backend/tmp/x.ts", got[1].FilePath)

	c := Merge(Baseline(), set.Active("PRE_PUSH"))
	assert.Equal(t, severity.Critical, c.Rules["text.raw-sql"].Severity)
}

func TestProjectRulesFallbackFileAndMalformed(t *testing.T) {
	assert.Nil(t, LoadProjectRules(t.TempDir()))

	root := t.TempDir()
	writeFile(t, root, "pumuki.custom-rules.json", `{"version": "2.0", "rules": []}`)
	set := LoadProjectRules(root)
	require.NotNil(t, set)
	assert.Equal(t, "pumuki.custom-rules.json", set.Path)
	assert.Empty(t, set.Rules)
	assert.Len(t, set.Notes, 1)
}

func TestEvaluateProjectRulesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := EvaluateProjectRules(ctx, nil, []FileInput{{Path: "a.ts"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateProjectRulesIsolatesFailingRule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".pumuki/custom-rules.json", `{
  "version": "1.0",
  "rules": [
    {"id": "a.bad", "description": "Reads a missing key", "severity": "INFO", "platform": "generic", "when": "file.nope == 'x'"},
    {"id": "b.sql", "description": "Raw SQL", "severity": "ERROR", "platform": "generic", "pattern": "SELECT"}
  ]
}`)
	set := LoadProjectRules(root)
	require.NotNil(t, set)
	require.Len(t, set.Rules, 2)

	files := []FileInput{
		{Path: "apps/backend/a.ts", Content: "db.query('SELECT 1')\n"},
		{Path: "apps/backend/b.ts", Content: "db.query('SELECT 2')\n"},
	}
	got, err := EvaluateProjectRules(context.Background(), set.Declarative("PRE_COMMIT"), files)
	require.Error(t, err)
	require.Len(t, got, 2)
	for _, f := range got {
		assert.Equal(t, "b.sql", f.RuleID)
		assert.Equal(t, "HIGH", f.Severity)
	}

	failures := ProjectRuleFailures(err)
	require.Len(t, failures, 1)
	assert.Equal(t, "a.bad", failures[0].RuleID)
	assert.Equal(t, "apps/backend/a.ts", failures[0].Path)
	assert.Nil(t, ProjectRuleFailures(nil))
}

func TestCanonicalHashKeyOrderIndependent(t *testing.T) {
	a, err := CanonicalHash(map[string]any{"b": 1, "a": []int{1, 2}})
	require.NoError(t, err)
	b, err := CanonicalHash(json.RawMessage(`{"a":[1,2],  "b":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
