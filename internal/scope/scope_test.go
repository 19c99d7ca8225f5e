package scope

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gitexec"
)

type fakeGit struct {
	tracked []string
	staged  []string
	rng     []string
	work    []string
	err     error
}

func (f fakeGit) ListTracked(context.Context) ([]string, error) { return f.tracked, f.err }
func (f fakeGit) ListStaged(context.Context) ([]string, error)  { return f.staged, f.err }
func (f fakeGit) ListRange(_ context.Context, _, _ string) ([]string, error) {
	return f.rng, f.err
}
func (f fakeGit) ListWorkingTree(context.Context) ([]string, error) { return f.work, f.err }

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll() error: %v", err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
	}
}

func cfgFor(root string) config.RunConfig {
	cfg := config.DefaultRunConfig()
	cfg.RepoRoot = root
	return cfg
}

func TestResolveStagedDropsDeletedAndIgnored(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"apps/backend/src/a.ts",
		"apps/web/dist/bundle.js",
		"apps/web/src/vendor.min.js",
		"README.md",
	)
	git := fakeGit{staged: []string{
		"apps/backend/src/a.ts",
		"apps/backend/src/a.ts",
		"apps/backend/src/deleted.ts",
		"apps/web/dist/bundle.js",
		"apps/web/src/vendor.min.js",
		"README.md",
	}}

	res, err := Resolve(context.Background(), cfgFor(root), git, Request{Kind: KindStaged})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !reflect.DeepEqual(res.Rel, []string{"apps/backend/src/a.ts"}) {
		t.Fatalf("unexpected files: %v", res.Rel)
	}
	if !reflect.DeepEqual(res.Dropped, []string{"apps/backend/src/deleted.ts"}) {
		t.Fatalf("unexpected dropped: %v", res.Dropped)
	}
	if res.Ignored != 2 {
		t.Fatalf("unexpected ignored count: %d", res.Ignored)
	}
	if res.Empty {
		t.Fatalf("scope should not be empty")
	}
	if !filepath.IsAbs(res.Files[0]) {
		t.Fatalf("files must be absolute: %s", res.Files[0])
	}
}

func TestResolveEmptyStagedIsNotAnError(t *testing.T) {
	root := t.TempDir()
	res, err := Resolve(context.Background(), cfgFor(root), fakeGit{}, Request{Kind: KindStaged})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !res.Empty || len(res.Files) != 0 {
		t.Fatalf("expected empty scope, got %+v", res)
	}
}

func TestResolveRepoWalksWithoutGit(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"apps/ios/App/View.swift",
		"node_modules/pkg/index.js",
		"infrastructure/ast/text/scanner.js",
		"tools/gen.generated.ts",
		"apps/android/app/Main.kt",
	)
	res, err := Resolve(context.Background(), cfgFor(root), nil, Request{Kind: KindRepo})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := []string{"apps/android/app/Main.kt", "apps/ios/App/View.swift"}
	if !reflect.DeepEqual(res.Rel, want) {
		t.Fatalf("unexpected files: %v", res.Rel)
	}
}

func TestResolveUserIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "apps/backend/src/a.ts", "apps/backend/legacy/b.ts")
	cfg := cfgFor(root)
	cfg.Ignore = []string{"apps/backend/legacy/**"}
	res, err := Resolve(context.Background(), cfg, nil, Request{Kind: KindRepo})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !reflect.DeepEqual(res.Rel, []string{"apps/backend/src/a.ts"}) {
		t.Fatalf("unexpected files: %v", res.Rel)
	}
}

func TestResolveFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RunConfig
		git  Git
		req  Request
	}{
		{name: "missing root", cfg: cfgFor(filepath.Join(t.TempDir(), "nope")), req: Request{Kind: KindRepo}},
		{name: "range without refs", cfg: cfgFor(t.TempDir()), git: fakeGit{}, req: Request{Kind: KindRange}},
		{name: "git failure", cfg: cfgFor(t.TempDir()), git: fakeGit{err: errors.New("boom")}, req: Request{Kind: KindStaged}},
		{name: "staged without git", cfg: cfgFor(t.TempDir()), req: Request{Kind: KindStaged}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(context.Background(), tt.cfg, tt.git, tt.req)
			if !errors.Is(err, ErrScopeResolution) {
				t.Fatalf("expected ErrScopeResolution, got %v", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"staged": KindStaged, "working-tree": KindWorkingTree, "repo": KindRepo, "range": KindRange} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q)=%v,%v", in, got, err)
		}
	}
	if _, err := ParseKind("everything"); err == nil {
		t.Fatalf("expected error for unknown scope")
	}
}

func TestResolveStagedFromSubdirectoryRoot(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	top := t.TempDir()
	gitCmd := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = top
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	gitCmd("init", "-q")
	writeFiles(t, top, "svc/apps/backend/a.ts", "web/src/b.ts")
	gitCmd("add", ".")

	root := filepath.Join(top, "svc")
	res, err := Resolve(context.Background(), cfgFor(root), gitexec.New(root), Request{Kind: KindStaged})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Empty {
		t.Fatalf("Resolve() empty, dropped=%v", res.Dropped)
	}
	if want := []string{"apps/backend/a.ts"}; !reflect.DeepEqual(res.Rel, want) {
		t.Errorf("Rel = %v, want %v", res.Rel, want)
	}
	if len(res.Dropped) != 0 {
		t.Errorf("Dropped = %v, want none", res.Dropped)
	}
}
