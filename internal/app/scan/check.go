package scan

import (
	"context"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/logging"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/rules"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/sdd"
)

// Check judges the evidence left by an earlier run without scanning. It is
// what an editor or agent hook calls before writing code.
func (r *Runner) Check(ctx context.Context, cfg config.RunConfig, stage gate.Stage) gate.Decision {
	log := logging.OrNop(r.Logger).With("stage", stage)
	ctx, span := tracer().Start(ctx, "pumuki.gate.check")
	defer span.End()
	span.SetAttributes(AttrStage.String(string(stage)))

	var repoState gitexec.RepoState
	if r.Git != nil {
		if st, err := r.Git.CaptureState(ctx); err != nil {
			log.Warnw("git state unavailable", "error", err)
		} else {
			repoState = st
		}
	}

	now := r.now()
	var sddDecision *sdd.Decision
	if stage == gate.PreWrite {
		d := sdd.Evaluate(cfg.RepoRoot, now, cfg.SDDBypass)
		sddDecision = &d
	}

	path := cfg.EvidenceFile()
	d := gate.EvaluatePersisted(gate.PersistedInput{
		Stage:             stage,
		Policy:            gate.ResolvePolicy(stage, rules.LoadSkillsPolicy(cfg.RepoRoot), cfg.HardMode),
		File:              path,
		Read:              evidence.Read(path),
		Now:               now,
		MaxAgeSeconds:     cfg.MaxAgeSeconds[string(stage)],
		RepoState:         repoState,
		ProtectedBranches: cfg.ProtectedBranches,
		SDD:               sddDecision,
	})
	span.SetAttributes(AttrStatus.String(d.Status))
	log.Infow("persisted evidence judged", "status", d.Status, "violations", len(d.Violations))
	return d
}
