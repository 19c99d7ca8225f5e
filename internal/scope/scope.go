package scope

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
)

type Kind string

const (
	KindRepo        Kind = "repo"
	KindStaged      Kind = "staged"
	KindRange       Kind = "range"
	KindWorkingTree Kind = "workingTree"
)

// ParseKind accepts the canonical names plus a few CLI spellings.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "repo", "all":
		return KindRepo, nil
	case "staged":
		return KindStaged, nil
	case "range":
		return KindRange, nil
	case "workingtree", "working-tree", "worktree":
		return KindWorkingTree, nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}

type Request struct {
	Kind    Kind   `json:"kind"`
	FromRef string `json:"fromRef,omitempty"`
	ToRef   string `json:"toRef,omitempty"`
}

func (r Request) Validate() error {
	switch r.Kind {
	case KindRepo, KindStaged, KindWorkingTree:
		return nil
	case KindRange:
		if strings.TrimSpace(r.FromRef) == "" || strings.TrimSpace(r.ToRef) == "" {
			return errors.New("range scope requires both fromRef and toRef")
		}
		return nil
	default:
		return fmt.Errorf("unknown scope kind %q", r.Kind)
	}
}

// Result is an ordered, deduplicated file list. Files are absolute; Rel
// holds the same files relative to Root with forward slashes.
type Result struct {
	Root    string
	Files   []string
	Rel     []string
	Empty   bool
	Dropped []string
	Ignored int
}

// ErrScopeResolution marks the fatal error class: nothing can be evaluated.
var ErrScopeResolution = errors.New("scope resolution failed")

// Git is the subset of git the resolver needs.
type Git interface {
	ListTracked(ctx context.Context) ([]string, error)
	ListStaged(ctx context.Context) ([]string, error)
	ListRange(ctx context.Context, from, to string) ([]string, error)
	ListWorkingTree(ctx context.Context) ([]string, error)
}

var SupportedExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".swift": true, ".kt": true, ".kts": true,
}

var ignoredSegments = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"coverage":     true,
	".git":         true,
	".next":        true,
	"vendor":       true,
	"pods":         true,
	"deriveddata":  true,
	".gradle":      true,
}

var archiveExtensions = map[string]bool{
	".zip": true, ".tar": true, ".gz": true, ".tgz": true,
	".jar": true, ".aar": true, ".ipa": true, ".apk": true,
}

// selfAnalysisDirs hold the analyzer's own detector sources.
var selfAnalysisDirs = []string{"infrastructure/ast/", "core/facts/detectors/"}

// Ignored reports whether a repo-relative path is excluded from analysis.
func Ignored(rel string, extra []string) bool {
	rel = filepath.ToSlash(rel)
	lower := strings.ToLower(rel)
	for _, seg := range strings.Split(lower, "/") {
		if ignoredSegments[seg] {
			return true
		}
	}
	for _, dir := range selfAnalysisDirs {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return true
		}
	}
	base := path.Base(lower)
	if archiveExtensions[path.Ext(base)] {
		return true
	}
	if strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".min.mjs") || strings.HasSuffix(base, "-min.js") {
		return true
	}
	if strings.Contains(base, ".generated.") || strings.HasSuffix(base, ".g.ts") || strings.HasSuffix(base, ".d.ts") {
		return true
	}
	for _, g := range extra {
		if ok, _ := path.Match(g, rel); ok {
			return true
		}
		if ok, _ := path.Match(g, path.Base(rel)); ok {
			return true
		}
		if strings.HasSuffix(g, "/**") && strings.HasPrefix(rel, strings.TrimSuffix(g, "**")) {
			return true
		}
	}
	return false
}

// Supported reports whether the extension is one the analyzers understand.
func Supported(rel string) bool {
	return SupportedExtensions[strings.ToLower(path.Ext(filepath.ToSlash(rel)))]
}

// Resolve turns a scope request into a concrete file list. A request that
// matches nothing returns Empty=true and no error.
func Resolve(ctx context.Context, cfg config.RunConfig, git Git, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrScopeResolution, err)
	}
	root, err := filepath.Abs(cfg.RepoRoot)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrScopeResolution, err)
	}
	st, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("%w: repo root unreadable: %v", ErrScopeResolution, err)
	}
	if !st.IsDir() {
		return Result{}, fmt.Errorf("%w: repo root %s is not a directory", ErrScopeResolution, root)
	}

	candidates, err := list(ctx, root, git, req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrScopeResolution, err)
	}

	res := Result{Root: root}
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		rel := filepath.ToSlash(filepath.Clean(c))
		if seen[rel] {
			continue
		}
		seen[rel] = true
		if !Supported(rel) {
			continue
		}
		if Ignored(rel, cfg.Ignore) {
			res.Ignored++
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			res.Dropped = append(res.Dropped, rel)
			continue
		}
		res.Rel = append(res.Rel, rel)
	}

	sort.Strings(res.Rel)
	sort.Strings(res.Dropped)
	res.Files = make([]string, len(res.Rel))
	for i, rel := range res.Rel {
		res.Files[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	res.Empty = len(res.Files) == 0
	return res, nil
}

func list(ctx context.Context, root string, git Git, req Request) ([]string, error) {
	switch req.Kind {
	case KindStaged:
		if git == nil {
			return nil, errors.New("staged scope requires git")
		}
		return git.ListStaged(ctx)
	case KindRange:
		if git == nil {
			return nil, errors.New("range scope requires git")
		}
		return git.ListRange(ctx, req.FromRef, req.ToRef)
	case KindWorkingTree:
		if git == nil {
			return nil, errors.New("workingTree scope requires git")
		}
		return git.ListWorkingTree(ctx)
	default:
		if git != nil {
			if files, err := git.ListTracked(ctx); err == nil {
				return files, nil
			}
		}
		return walk(ctx, root)
	}
}

// walk lists files under root when git is unavailable, pruning ignored
// directories early.
func walk(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if p != root && ignoredSegments[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}
