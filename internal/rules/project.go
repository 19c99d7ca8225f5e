package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

// ProjectRuleFiles are looked up in order; the first one present wins.
var ProjectRuleFiles = []string{".pumuki/custom-rules.json", "pumuki.custom-rules.json"}

const projectSource = "project-rules"

type projectFile struct {
	Version             string            `json:"version"`
	GeneratedAt         string            `json:"generatedAt"`
	SourceFiles         []string          `json:"source_files"`
	AllowOverrideLocked bool              `json:"allowOverrideLocked"`
	Rules               []projectRuleSpec `json:"rules"`
}

type projectRuleSpec struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	Platform       string   `json:"platform"`
	Stage          string   `json:"stage"`
	Confidence     string   `json:"confidence"`
	Locked         *bool    `json:"locked"`
	EvaluationMode string   `json:"evaluationMode"`
	MapsTo         []string `json:"mapsTo"`
	When           string   `json:"when"`
	Pattern        string   `json:"pattern"`
	Message        string   `json:"message"`
}

// ProjectRule is a repo-declared rule. Rules with a when condition or a
// pattern are evaluated by EvaluateProjectRules; the rest only restate an
// analyzer rule through MapsTo or their own id.
type ProjectRule struct {
	Rule
	Message string
	When    string

	prg     cel.Program
	pattern *regexp.Regexp
}

func (r ProjectRule) declarative() bool {
	return r.prg != nil || r.pattern != nil
}

type ProjectRuleSet struct {
	Path                string
	Hash                string
	AllowOverrideLocked bool
	Rules               []ProjectRule
	Notes               []string
}

// Active returns the catalog rules that apply at stage.
func (s *ProjectRuleSet) Active(stage string) []Rule {
	if s == nil {
		return nil
	}
	var out []Rule
	for _, r := range s.Rules {
		if StageApplies(r.Stage, stage) {
			out = append(out, r.Rule)
		}
	}
	return out
}

// Declarative returns the rules EvaluateProjectRules runs at stage.
func (s *ProjectRuleSet) Declarative(stage string) []ProjectRule {
	if s == nil {
		return nil
	}
	var out []ProjectRule
	for _, r := range s.Rules {
		if r.declarative() && StageApplies(r.Stage, stage) {
			out = append(out, r)
		}
	}
	return out
}

// LoadProjectRules reads the project rule file of root. It returns nil when
// no file exists. Rules that fail to compile are skipped with a note; a
// malformed file yields an empty set with a note.
func LoadProjectRules(root string) *ProjectRuleSet {
	for _, name := range ProjectRuleFiles {
		p := filepath.Join(root, filepath.FromSlash(name))
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		set := &ProjectRuleSet{Path: name}
		if err != nil {
			set.Notes = append(set.Notes, fmt.Sprintf("%s unreadable: %v", name, err))
			return set
		}
		parseProjectRules(set, data)
		return set
	}
	return nil
}

func parseProjectRules(set *ProjectRuleSet, data []byte) {
	var pf projectFile
	if err := decodeValidated("custom-rules", data, &pf); err != nil {
		set.Notes = append(set.Notes, fmt.Sprintf("%s invalid: %v", set.Path, err))
		return
	}
	set.AllowOverrideLocked = pf.AllowOverrideLocked

	env, err := projectEnv()
	if err != nil {
		set.Notes = append(set.Notes, fmt.Sprintf("%s: %v", set.Path, err))
		return
	}
	for _, spec := range pf.Rules {
		r, err := compileProjectRule(env, spec, set)
		if err != nil {
			set.Notes = append(set.Notes, fmt.Sprintf("%s rule %s skipped: %v", set.Path, spec.ID, err))
			continue
		}
		set.Rules = append(set.Rules, r)
	}
	sort.SliceStable(set.Rules, func(i, j int) bool { return set.Rules[i].ID < set.Rules[j].ID })

	set.Hash = mustHash(pf.Rules)
	for i := range set.Rules {
		set.Rules[i].Source.Hash = set.Hash
	}
}

func projectEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(cel.Variable("file", cel.MapType(cel.StringType, cel.StringType)))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func compileProjectRule(env *cel.Env, spec projectRuleSpec, set *ProjectRuleSet) (ProjectRule, error) {
	r := ProjectRule{
		Rule: Rule{
			ID:             spec.ID,
			Description:    spec.Description,
			Severity:       severity.Legacy(strings.ToUpper(spec.Severity)).Internal(),
			Platform:       platform.Parse(spec.Platform),
			EvaluationMode: ModeAuto,
			Stage:          spec.Stage,
			Locked:         spec.Locked == nil || *spec.Locked,
			Confidence:     spec.Confidence,
			Source:         Source{Kind: SourceProject, Bundle: set.Path, Version: "1.0"},
			MapsTo:         append([]string(nil), spec.MapsTo...),
			OverrideLocked: set.AllowOverrideLocked,
		},
		Message: spec.Message,
		When:    spec.When,
	}
	if spec.When != "" {
		ast, issues := env.Compile(spec.When)
		if issues != nil && issues.Err() != nil {
			return r, fmt.Errorf("compile when: %w", issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return r, fmt.Errorf("when must be a boolean expression, got %v", ast.OutputType())
		}
		prg, err := env.Program(ast, cel.CostLimit(10000))
		if err != nil {
			return r, fmt.Errorf("program: %w", err)
		}
		r.prg = prg
	}
	if spec.Pattern != "" {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return r, fmt.Errorf("pattern: %w", err)
		}
		r.pattern = re
	}
	if r.declarative() || strings.EqualFold(spec.EvaluationMode, string(ModeDeclarative)) {
		r.EvaluationMode = ModeDeclarative
	}
	return r, nil
}

// FileInput is one scoped file handed to project rule evaluation.
type FileInput struct {
	Path    string
	Content string
}

// EvaluateProjectRules runs the declarative project rules over files. A rule
// fires on a file when its when condition holds and, if it has a pattern,
// the pattern matches at least one line. Rules without a pattern report the
// file once at line 1.
//
// A rule whose condition fails to evaluate is disabled for the rest of the
// run and the others keep going. The returned error joins one
// *ProjectRuleError per disabled rule, unless ctx was canceled.
func EvaluateProjectRules(ctx context.Context, list []ProjectRule, files []FileInput) ([]report.Finding, error) {
	var findings []report.Finding
	var failures []error
	disabled := make(map[int]bool)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		vars := map[string]any{"file": map[string]string{
			"path":     f.Path,
			"platform": platform.Classify(f.Path).String(),
			"ext":      strings.ToLower(path.Ext(f.Path)),
		}}
		for i, r := range list {
			if disabled[i] {
				continue
			}
			if r.prg != nil {
				ok, err := evalBool(r.prg, vars)
				if err != nil {
					disabled[i] = true
					failures = append(failures, &ProjectRuleError{RuleID: r.ID, Path: f.Path, Err: err})
					continue
				}
				if !ok {
					continue
				}
			}
			var lines []int
			if r.pattern != nil {
				lines = matchLines(r.pattern, f.Content)
				if len(lines) == 0 {
					continue
				}
			} else {
				lines = []int{1}
			}
			msg := r.Message
			if msg == "" {
				msg = r.Description
			}
			finding := report.Finding{
				RuleID:   r.ID,
				Severity: string(r.Severity),
				FilePath: f.Path,
				Line:     lines[0],
				Message:  msg,
				Source:   projectSource,
			}
			if r.pattern != nil {
				finding.Metrics = map[string]float64{"occurrences": float64(len(lines))}
			}
			findings = append(findings, finding)
		}
	}
	return findings, errors.Join(failures...)
}

// ProjectRuleError reports a project rule disabled after its condition
// failed on Path.
type ProjectRuleError struct {
	RuleID string
	Path   string
	Err    error
}

func (e *ProjectRuleError) Error() string {
	return fmt.Sprintf("rule %s on %s: %v", e.RuleID, e.Path, e.Err)
}

func (e *ProjectRuleError) Unwrap() error { return e.Err }

// ProjectRuleFailures lists the rule errors held by an error returned from
// EvaluateProjectRules.
func ProjectRuleFailures(err error) []*ProjectRuleError {
	if err == nil {
		return nil
	}
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	var out []*ProjectRuleError
	for _, e := range errs {
		var pe *ProjectRuleError
		if errors.As(e, &pe) {
			out = append(out, pe)
		}
	}
	return out
}

func evalBool(prg cel.Program, vars map[string]any) (bool, error) {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("result not bool")
	}
	return val, nil
}

func matchLines(re *regexp.Regexp, content string) []int {
	var out []int
	for i, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			out = append(out, i+1)
		}
	}
	return out
}
