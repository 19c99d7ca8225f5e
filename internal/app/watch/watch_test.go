package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
)

func watcherFor(root string) *Watcher {
	cfg := config.DefaultRunConfig()
	cfg.RepoRoot = root
	cfg.Ignore = []string{"tmp/**"}
	return &Watcher{Cfg: cfg}
}

func TestRelevant(t *testing.T) {
	root := t.TempDir()
	w := watcherFor(root)

	tests := []struct {
		rel  string
		want bool
	}{
		{"apps/backend/src/a.ts", true},
		{"apps/ios/App/View.swift", true},
		{"README.md", false},
		{"node_modules/x/index.js", false},
		{"tmp/scratch.ts", false},
		{".ai_evidence.json", false},
		{"skills.policy.json", true},
		{".pumuki.yaml", true},
		{".pumuki/custom-rules.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Relevant(filepath.Join(root, filepath.FromSlash(tt.rel))))
		})
	}
	assert.False(t, w.Relevant(filepath.Join(filepath.Dir(root), "elsewhere.ts")))
}

func TestRunTriggersOnChange(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "apps", "backend")
	require.NoError(t, os.MkdirAll(src, 0o755))

	var runs atomic.Int32
	w := watcherFor(root)
	w.Debounce = 20 * time.Millisecond
	w.Limiter = rate.NewLimiter(rate.Inf, 1)
	w.Trigger = func(context.Context, config.RunConfig) { runs.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the tree.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".ai_evidence.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.ts"), []byte("export const a = 1\n"), 0o644))

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunReloadsConfigBeforeTrigger(t *testing.T) {
	root := t.TempDir()

	var loads atomic.Int32
	got := make(chan config.RunConfig, 4)
	w := watcherFor(root)
	w.Debounce = 20 * time.Millisecond
	w.Limiter = rate.NewLimiter(rate.Inf, 1)
	w.Load = func() (config.RunConfig, error) {
		loads.Add(1)
		cfg := w.Cfg
		cfg.HardMode = true
		return cfg, nil
	}
	w.Trigger = func(_ context.Context, cfg config.RunConfig) { got <- cfg }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, config.FileName), []byte("hard_mode: true\n"), 0o644))

	select {
	case cfg := <-got:
		assert.True(t, cfg.HardMode)
		assert.GreaterOrEqual(t, loads.Load(), int32(1))
	case <-time.After(3 * time.Second):
		t.Fatal("no run after config change")
	}
}
