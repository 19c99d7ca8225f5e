// Package scan drives one gate run: resolve the scope, analyze it, merge
// rules, decide and leave the evidence behind.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/registry"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/scanner"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/evidence"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/logging"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/project"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/rules"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/sdd"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/version"
)

// Git is what a run needs from the repository.
type Git interface {
	scope.Git
	CaptureState(ctx context.Context) (gitexec.RepoState, error)
}

type Request struct {
	Stage gate.Stage
	Scope scope.Request
}

// Result is everything a caller may want to report about a run. Only
// Decision and Contract are part of the collaborator contract.
type Result struct {
	RunID        string
	Decision     gate.Decision
	Contract     evidence.Contract
	EvidencePath string
	Written      bool
	Scope        scope.Result
	Findings     []report.Finding
	Coverage     rules.Coverage
	Unmapped     []string
	CheckErrors  map[string]error
	CheckStats   map[string]scanner.CheckStat
	ParseErrors  map[string]error
	Duration     time.Duration
}

// Runner holds the collaborators of a run. The zero value is usable once
// Git is set; Run fills it from the config otherwise.
type Runner struct {
	Git    Git
	Logger *zap.SugaredLogger
	Now    func() time.Time
	// DryRun skips persisting the evidence.
	DryRun bool
}

// Run executes one gate run with git rooted at cfg.RepoRoot.
func Run(ctx context.Context, cfg config.RunConfig, req Request) (Result, error) {
	r := &Runner{Git: gitexec.New(cfg.RepoRoot)}
	return r.Run(ctx, cfg, req)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run returns an error only when the scope cannot be resolved or the run
// is canceled. Everything else degrades into notes, logs and violations.
func (r *Runner) Run(ctx context.Context, cfg config.RunConfig, req Request) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString(), EvidencePath: cfg.EvidenceFile()}
	log := logging.OrNop(r.Logger).With("run_id", res.RunID, "stage", req.Stage)

	ctx, span := tracer().Start(ctx, "pumuki.gate.run")
	defer span.End()
	span.SetAttributes(AttrRunID.String(res.RunID), AttrStage.String(string(req.Stage)), AttrScope.String(string(req.Scope.Kind)))

	if !req.Stage.Valid() {
		err := fmt.Errorf("unknown stage %q", req.Stage)
		fail(span, err)
		return res, err
	}

	sctx, sspan := phase(ctx, "scope")
	resolved, err := scope.Resolve(sctx, cfg, r.Git, req.Scope)
	sspan.End()
	if err != nil {
		fail(span, err)
		log.Errorw("scope resolution failed", "error", err)
		return res, err
	}
	res.Scope = resolved
	for _, d := range resolved.Dropped {
		log.Debugw("dropped missing file", "file", d)
	}

	root := resolved.Root
	now := r.now()
	stage := string(req.Stage)
	declared := rules.LoadDeclared(root)
	policy := gate.ResolvePolicy(req.Stage, declared.Policy, cfg.HardMode)

	var repoState gitexec.RepoState
	if r.Git != nil {
		if st, err := r.Git.CaptureState(ctx); err != nil {
			log.Warnw("git state unavailable", "error", err)
		} else {
			repoState = st
		}
	}

	var sddDecision *sdd.Decision
	if req.Stage == gate.PreWrite {
		d := sdd.Evaluate(root, now, cfg.SDDBypass)
		sddDecision = &d
	}

	detected := platform.Detect(resolved.Rel)
	list := registry.ForRun(detected)
	catalog := declared.Build(list, stage)

	var findings []report.Finding
	var evaluated []string
	if !resolved.Empty {
		findings, evaluated, err = r.analyze(ctx, cfg, &res, declared, &catalog, list, detected, stage, req.Scope.Kind == scope.KindRepo, log)
		if err != nil {
			fail(span, err)
			return res, err
		}
	}

	sanitizer, badPatterns := report.NewSanitizer(cfg.RedactionPatterns)
	for _, e := range badPatterns {
		catalog.AddFallbacks(fmt.Sprintf("redaction pattern skipped: %v", e))
	}
	applied := catalog.Apply(findings)
	for i := range applied {
		applied[i] = sanitizer.Finding(applied[i])
	}
	applied = report.Dedupe(applied)
	report.SortStable(applied)

	res.Findings = applied
	res.Unmapped = catalog.Unmapped()
	res.Coverage = rules.ComputeCoverage(catalog, evaluated, applied)
	for _, id := range res.Unmapped {
		log.Debugw("finding without catalog rule", "rule", id)
	}

	_, gspan := phase(ctx, "gate")
	decision := gate.Evaluate(gate.Input{
		Stage:             req.Stage,
		Policy:            policy,
		Findings:          applied,
		Evidence:          gate.EvidenceSummary{Kind: "fresh", MaxAgeSeconds: cfg.MaxAgeSeconds[stage], FilesScanned: len(resolved.Rel)},
		RepoState:         repoState,
		ProtectedBranches: cfg.ProtectedBranches,
		SDD:               sddDecision,
		Notes:             catalog.Fallbacks,
	})
	gspan.SetAttributes(AttrStatus.String(decision.Status))
	gspan.End()

	_, espan := phase(ctx, "evidence")
	var previous *evidence.Contract
	if prev := evidence.Read(res.EvidencePath); prev.Kind == evidence.ReadValid {
		previous = prev.Contract
	}
	coverage := res.Coverage
	body := evidence.Build(evidence.Input{
		Stage:        stage,
		Status:       decision.Status,
		Findings:     applied,
		Violations:   decision.EvidenceViolations(),
		FilesScanned: len(resolved.Rel),
		Detected:     detected,
		Rulesets:     catalog.Rulesets,
		Coverage:     &coverage,
		Tool:         evidence.Tool{Name: version.ToolName, Version: version.Value},
		Now:          now,
	})
	contract, err := evidence.Seal(body)
	if err != nil {
		espan.End()
		fail(span, err)
		return res, err
	}
	contract.Ledger = evidence.UpdateLedger(body, previous)
	if !r.DryRun {
		if err := evidence.Write(res.EvidencePath, contract); err != nil {
			fail(espan, err)
			log.Errorw("evidence not written", "path", res.EvidencePath, "error", err)
		} else {
			res.Written = true
		}
	}
	espan.End()

	decision.EvidenceSummary.PayloadHash = contract.Integrity.PayloadHash
	decision.EvidenceSummary.SnapshotID = evidence.SnapshotID(contract.Integrity.PayloadHash)
	decision.EvidenceSummary.TotalFindings = contract.SeverityMetrics.TotalViolations
	decision.EvidenceSummary.BySeverity = contract.SeverityMetrics.BySeverity

	res.Decision = decision
	res.Contract = contract
	res.Duration = time.Since(start)

	span.SetAttributes(AttrStatus.String(decision.Status), AttrFiles.Int(len(resolved.Rel)), AttrFindings.Int(len(applied)))
	meters().record(ctx, stage, decision.Status, len(applied), res.Duration.Seconds())
	log.Infow("gate decided",
		"status", decision.Status,
		"files", len(resolved.Rel),
		"findings", len(applied),
		"violations", len(decision.Violations),
		"policy", decision.Policy.Trace.Bundle,
	)
	return res, nil
}

// analyze builds the program and runs the analyzers and the declarative
// project rules. It returns raw findings and the rule ids evaluated. Project
// rules that fail to evaluate become fallback notes on catalog.
func (r *Runner) analyze(ctx context.Context, cfg config.RunConfig, res *Result, declared rules.Declared, catalog *rules.Catalog, list []checks.Check, detected platform.Set, stage string, fullRepo bool, log *zap.SugaredLogger) ([]report.Finding, []string, error) {
	root := res.Scope.Root

	pctx, pspan := phase(ctx, "project")
	builder := project.Builder{MaxFileBytes: cfg.MaxFileBytes, Concurrency: cfg.MaxConcurrency, Logger: log}
	prog, err := builder.Build(pctx, root, res.Scope.Rel)
	pspan.End()
	if err != nil {
		return nil, nil, fmt.Errorf("build program: %w", err)
	}
	prog.FullRepo = fullRepo
	res.ParseErrors = prog.ParseErrors

	actx, aspan := phase(ctx, "analyzers")
	scanCtx := &ctxpkg.Context{
		Root:     root,
		Program:  prog,
		Files:    res.Scope.Rel,
		Config:   cfg,
		Detected: detected,
	}
	byCheck, checkErrs, stats, err := scanner.New(list, cfg.MaxConcurrency, log).Run(actx, scanCtx)
	aspan.End()
	res.CheckErrors = checkErrs
	res.CheckStats = stats
	if err != nil {
		return nil, nil, fmt.Errorf("analyzers: %w", err)
	}
	findings := scanner.Flatten(list, byCheck)

	var evaluated []string
	for _, info := range registry.Rules(list) {
		evaluated = append(evaluated, info.ID)
	}

	declarative := declared.Project.Declarative(stage)
	if len(declarative) > 0 {
		inputs := make([]rules.FileInput, 0, len(res.Scope.Rel))
		for _, rel := range res.Scope.Rel {
			if content, ok := prog.Content(rel); ok {
				inputs = append(inputs, rules.FileInput{Path: rel, Content: content})
			}
		}
		projectFindings, err := rules.EvaluateProjectRules(ctx, declarative, inputs)
		var failed map[string]bool
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			failed = make(map[string]bool)
			for _, pe := range rules.ProjectRuleFailures(err) {
				failed[pe.RuleID] = true
				catalog.AddFallbacks(fmt.Sprintf("project rule %s disabled on %s: %v", pe.RuleID, pe.Path, pe.Err))
				log.Warnw("project rule failed", "rule", pe.RuleID, "file", pe.Path, "error", pe.Err)
			}
		}
		findings = append(findings, projectFindings...)
		for _, pr := range declarative {
			if !failed[pr.ID] {
				evaluated = append(evaluated, pr.ID)
			}
		}
	}
	return findings, evaluated, nil
}
