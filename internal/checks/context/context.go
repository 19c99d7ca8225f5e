package context

import (
	"context"
	"path"
	"strings"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/project"
)

// Context is the read-only view every check receives. Checks must not
// mutate anything reachable from it.
type Context struct {
	RequestContext context.Context
	Root           string
	Program        *project.Program
	Files          []string
	Config         config.RunConfig
	Detected       platform.Set
}

// Scripts returns parsed TS/JS files on the given platforms, sorted by path.
func (c *Context) Scripts(platforms ...platform.Platform) []*project.SourceFile {
	if c == nil || c.Program == nil {
		return nil
	}
	var out []*project.SourceFile
	for _, p := range c.Program.SourcePaths() {
		sf := c.Program.Files[p]
		if matchesPlatform(sf.Platform, platforms) {
			out = append(out, sf)
		}
	}
	return out
}

// TextFiles returns text-stream files whose extension is one of exts (all
// when exts is empty), sorted by path.
func (c *Context) TextFiles(exts ...string) []*project.TextFile {
	if c == nil || c.Program == nil {
		return nil
	}
	var out []*project.TextFile
	for _, p := range c.Program.TextPaths() {
		if len(exts) > 0 && !hasExt(p, exts) {
			continue
		}
		out = append(out, c.Program.Text[p])
	}
	return out
}

// Canceled reports whether the run was canceled.
func (c *Context) Canceled() bool {
	return c != nil && c.RequestContext != nil && c.RequestContext.Err() != nil
}

// AllHeuristics reports whether shared tooling code outside app areas is
// analyzed too.
func (c *Context) AllHeuristics() bool {
	return c != nil && c.Config.HeuristicScope == config.HeuristicScopeAll
}

func matchesPlatform(p platform.Platform, want []platform.Platform) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if p == w {
			return true
		}
	}
	return false
}

func hasExt(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsTestPath reports whether a path belongs to test sources.
func IsTestPath(p string) bool {
	n := platform.NormalizePath(p)
	base := path.Base(n)
	switch {
	case strings.Contains(n, "/__tests__/"), strings.Contains(n, "/test/"), strings.Contains(n, "/tests/"),
		strings.HasPrefix(n, "test/"), strings.HasPrefix(n, "tests/"):
		return true
	case strings.Contains(base, ".test."), strings.Contains(base, ".spec."):
		return true
	case strings.HasSuffix(base, "tests.swift"), strings.HasSuffix(base, "test.swift"),
		strings.HasSuffix(base, "test.kt"), strings.HasSuffix(base, "tests.kt"):
		return true
	case strings.Contains(n, "/androidtest/"), strings.Contains(n, "/uitests/"):
		return true
	}
	return false
}
