package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/sdd"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

type fakeGit struct {
	staged []string
	state  gitexec.RepoState
}

func (f fakeGit) ListTracked(context.Context) ([]string, error) { return f.staged, nil }
func (f fakeGit) ListStaged(context.Context) ([]string, error)  { return f.staged, nil }
func (f fakeGit) ListRange(context.Context, string, string) ([]string, error) {
	return f.staged, nil
}
func (f fakeGit) ListWorkingTree(context.Context) ([]string, error) { return f.staged, nil }
func (f fakeGit) CaptureState(context.Context) (gitexec.RepoState, error) {
	return f.state, nil
}

var runAt = time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)

const consoleLogFile = "apps/backend/src/server.ts"

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func stagedRepo(t *testing.T) (string, *Runner, config.RunConfig) {
	t.Helper()
	root := t.TempDir()
	write(t, root, consoleLogFile, "export function handler() {\n  console.log(\"hi\");\n}\n")
	cfg := config.DefaultRunConfig()
	cfg.RepoRoot = root
	r := &Runner{
		Git: fakeGit{staged: []string{consoleLogFile}, state: gitexec.RepoState{Branch: "feature/x"}},
		Now: func() time.Time { return runAt },
	}
	return root, r, cfg
}

func stagePolicy(t *testing.T, root, block, warn string) {
	t.Helper()
	write(t, root, "skills.policy.json", `{
  "version": "1.0",
  "defaultBundleEnabled": true,
  "stages": {
    "PRE_COMMIT": {"blockOnOrAbove": "`+block+`", "warnOnOrAbove": "`+warn+`"},
    "PRE_PUSH": {"blockOnOrAbove": "ERROR", "warnOnOrAbove": "WARN"},
    "CI": {"blockOnOrAbove": "ERROR", "warnOnOrAbove": "WARN"}
  },
  "bundles": {}
}`)
}

func staged(stage gate.Stage) Request {
	return Request{Stage: stage, Scope: scope.Request{Kind: scope.KindStaged}}
}

func TestRunConsoleLogWarns(t *testing.T) {
	root, r, cfg := stagedRepo(t)
	stagePolicy(t, root, "CRITICAL", "WARN")

	res, err := r.Run(context.Background(), cfg, staged(gate.PreCommit))
	require.NoError(t, err)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, "heuristics.ts.console-log.ast", f.RuleID)
	assert.Equal(t, string(severity.Medium), f.Severity)
	assert.Equal(t, consoleLogFile, f.FilePath)

	d := res.Decision
	assert.Equal(t, gate.StatusAllowed, d.Status)
	assert.True(t, d.Warn)
	assert.NotEmpty(t, d.Warnings)
	assert.Equal(t, "gate-policy.skills.policy.PRE_COMMIT", d.Policy.Trace.Bundle)

	snap := res.Contract.Snapshot
	require.Len(t, snap.Findings, 1)
	assert.Equal(t, []string{"backend"}, snap.Findings[0].Platforms)
	assert.Equal(t, severity.LegacyWarn, snap.Findings[0].Severity)
	assert.Equal(t, 1, snap.FilesScanned)
	assert.True(t, res.Written)
	assert.Equal(t, evidence.SnapshotID(res.Contract.Integrity.PayloadHash), d.EvidenceSummary.SnapshotID)
	assert.Equal(t, 1, res.Coverage.Matched)
}

func TestRunConsoleLogBlocksAtMedium(t *testing.T) {
	root, r, cfg := stagedRepo(t)
	stagePolicy(t, root, "WARN", "INFO")

	res, err := r.Run(context.Background(), cfg, staged(gate.PreCommit))
	require.NoError(t, err)
	assert.Equal(t, gate.StatusBlocked, res.Decision.Status)
	assert.Empty(t, res.Decision.Violations)
	assert.Len(t, res.Contract.Snapshot.Findings, 1)
	assert.Equal(t, evidence.StatusBlocked, res.Contract.AIGate.Status)
}

func TestRunEmptyScope(t *testing.T) {
	root := t.TempDir()
	cfg := config.DefaultRunConfig()
	cfg.RepoRoot = root
	r := &Runner{Git: fakeGit{state: gitexec.RepoState{Branch: "feature/x"}}, Now: func() time.Time { return runAt }, DryRun: true}

	res, err := r.Run(context.Background(), cfg, staged(gate.PreCommit))
	require.NoError(t, err)
	assert.True(t, res.Scope.Empty)
	assert.Equal(t, gate.StatusAllowed, res.Decision.Status)
	assert.Equal(t, 0, res.Contract.Snapshot.FilesScanned)
	assert.Empty(t, res.Contract.Snapshot.Findings)
	assert.False(t, res.Written)
	_, statErr := os.Stat(cfg.EvidenceFile())
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunScopeFailureIsFatal(t *testing.T) {
	cfg := config.DefaultRunConfig()
	cfg.RepoRoot = filepath.Join(t.TempDir(), "missing")
	r := &Runner{Git: fakeGit{}}

	_, err := r.Run(context.Background(), cfg, staged(gate.PrePush))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scope.ErrScopeResolution))

	cfg.RepoRoot = t.TempDir()
	_, err = r.Run(context.Background(), cfg, Request{Stage: gate.CI, Scope: scope.Request{Kind: scope.KindRange}})
	assert.True(t, errors.Is(err, scope.ErrScopeResolution))
}

func TestRunPreWriteRequiresSDD(t *testing.T) {
	_, r, cfg := stagedRepo(t)
	r.DryRun = true

	res, err := r.Run(context.Background(), cfg, staged(gate.PreWrite))
	require.NoError(t, err)
	assert.Equal(t, gate.StatusBlocked, res.Decision.Status)
	require.Len(t, res.Decision.Violations, 1)
	assert.Equal(t, sdd.CodeOpenSpecMissing, res.Decision.Violations[0].Code)
	assert.Equal(t, gate.PreWrite, res.Decision.Policy.Stage)
	assert.Equal(t, gate.PreCommit, res.Decision.Policy.ResolvedStage)

	cfg.SDDBypass = true
	res, err = r.Run(context.Background(), cfg, staged(gate.PreWrite))
	require.NoError(t, err)
	assert.Equal(t, gate.StatusAllowed, res.Decision.Status)
}

func TestRunProtectedBranch(t *testing.T) {
	_, r, cfg := stagedRepo(t)
	r.Git = fakeGit{staged: []string{consoleLogFile}, state: gitexec.RepoState{Branch: "main"}}

	res, err := r.Run(context.Background(), cfg, staged(gate.PrePush))
	require.NoError(t, err)
	assert.Equal(t, gate.StatusBlocked, res.Decision.Status)
	require.Len(t, res.Contract.AIGate.Violations, 1)
	assert.Equal(t, gate.CodeProtectedBranch, res.Contract.AIGate.Violations[0].Code)
}

func TestRunProjectRules(t *testing.T) {
	root, r, cfg := stagedRepo(t)
	write(t, root, ".pumuki/custom-rules.json", `{
  "version": "1.0",
  "rules": [
    {
      "id": "project.backend.no-hi",
      "description": "Say hello properly.",
      "severity": "ERROR",
      "platform": "backend",
      "when": "file.platform == 'backend'",
      "pattern": "\"hi\""
    }
  ]
}`)

	res, err := r.Run(context.Background(), cfg, staged(gate.PrePush))
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, "project.backend.no-hi")
	assert.Equal(t, gate.StatusBlocked, res.Decision.Status)
	assert.Equal(t, severity.High, res.Decision.MaxSeverity)
}

func TestRunProjectRuleFailureKeepsOthers(t *testing.T) {
	root, r, cfg := stagedRepo(t)
	write(t, root, ".pumuki/custom-rules.json", `{
  "version": "1.0",
  "rules": [
    {"id": "project.a.bad", "description": "Reads a missing key.", "severity": "INFO", "platform": "generic", "when": "file.nope == 'x'"},
    {"id": "project.b.no-hi", "description": "Say hello properly.", "severity": "ERROR", "platform": "backend", "pattern": "\"hi\""}
  ]
}`)

	res, err := r.Run(context.Background(), cfg, staged(gate.PrePush))
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, "project.b.no-hi")
	assert.Equal(t, gate.StatusBlocked, res.Decision.Status)

	var noted bool
	for _, n := range res.Decision.Policy.Trace.Notes {
		if strings.Contains(n, "project.a.bad") {
			noted = true
		}
	}
	assert.True(t, noted, "notes: %v", res.Decision.Policy.Trace.Notes)
}

func TestRunLedgerCarriesOver(t *testing.T) {
	_, r, cfg := stagedRepo(t)

	first, err := r.Run(context.Background(), cfg, staged(gate.PreCommit))
	require.NoError(t, err)
	require.Len(t, first.Contract.Ledger, 1)

	r.Now = func() time.Time { return runAt.Add(time.Hour) }
	second, err := r.Run(context.Background(), cfg, staged(gate.PreCommit))
	require.NoError(t, err)
	require.Len(t, second.Contract.Ledger, 1)
	assert.Equal(t, first.Contract.Ledger[0].FirstSeen, second.Contract.Ledger[0].FirstSeen)
	assert.NotEqual(t, second.Contract.Ledger[0].FirstSeen, second.Contract.Ledger[0].LastSeen)
}

func TestCheckPersistedEvidence(t *testing.T) {
	_, r, cfg := stagedRepo(t)

	d := r.Check(context.Background(), cfg, gate.PrePush)
	assert.Equal(t, gate.StatusBlocked, d.Status)
	assert.Equal(t, gate.CodeEvidenceMissing, d.Violations[0].Code)

	_, err := r.Run(context.Background(), cfg, staged(gate.PrePush))
	require.NoError(t, err)

	d = r.Check(context.Background(), cfg, gate.PrePush)
	assert.Equal(t, gate.StatusAllowed, d.Status)
	require.NotNil(t, d.EvidenceSummary.AgeSeconds)
	assert.Equal(t, 0, *d.EvidenceSummary.AgeSeconds)

	r.Now = func() time.Time { return runAt.Add(time.Hour) }
	d = r.Check(context.Background(), cfg, gate.PrePush)
	assert.Equal(t, gate.StatusBlocked, d.Status)
	assert.Equal(t, gate.CodeEvidenceStale, d.Violations[0].Code)
}
