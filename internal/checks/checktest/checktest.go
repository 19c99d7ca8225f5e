// Package checktest builds check contexts over throwaway repositories.
package checktest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/project"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

// WriteFiles creates files (repo-relative slash paths) under root.
func WriteFiles(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// Context writes files to a temp repository and builds the program over all
// of them. full marks the program as a full repository scan.
func Context(t testing.TB, files map[string]string, full bool) *ctxpkg.Context {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, root, files)

	rel := make([]string, 0, len(files))
	for p := range files {
		rel = append(rel, p)
	}
	sort.Strings(rel)
	return ContextFor(t, root, rel, full)
}

// ContextFor builds a context over rel inside an existing root.
func ContextFor(t testing.TB, root string, rel []string, full bool) *ctxpkg.Context {
	t.Helper()
	cfg := config.DefaultRunConfig()
	cfg.RepoRoot = root

	b := &project.Builder{MaxFileBytes: cfg.MaxFileBytes, Concurrency: 2}
	prog, err := b.Build(context.Background(), root, rel)
	if err != nil {
		t.Fatalf("build program: %v", err)
	}
	prog.FullRepo = full

	return &ctxpkg.Context{
		RequestContext: context.Background(),
		Root:           root,
		Program:        prog,
		Files:          rel,
		Config:         cfg,
		Detected:       platform.Detect(rel),
	}
}

// ByRule groups findings by rule id.
func ByRule(findings []report.Finding) map[string][]report.Finding {
	out := make(map[string][]report.Finding)
	for _, f := range findings {
		out[f.RuleID] = append(out[f.RuleID], f)
	}
	return out
}

// RuleIDs returns the sorted distinct rule ids of findings.
func RuleIDs(findings []report.Finding) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range findings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			out = append(out, f.RuleID)
		}
	}
	sort.Strings(out)
	return out
}
