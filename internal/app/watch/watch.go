// Package watch reruns the gate whenever analyzable files or governance
// files change under the repository root.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/config"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/logging"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/rules"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	// DefaultInterval is the minimum time between two triggered runs.
	DefaultInterval = 2 * time.Second
)

// governanceFiles change the decision without changing any source file.
var governanceFiles = map[string]bool{
	config.FileName:            true,
	rules.SkillsPolicyFile:     true,
	"skills.lock.json":         true,
	"custom-rules.json":        true,
	"pumuki.custom-rules.json": true,
}

type Watcher struct {
	Cfg      config.RunConfig
	Debounce time.Duration
	Limiter  *rate.Limiter
	Logger   *zap.SugaredLogger
	// Load, when set, rereads the configuration before every triggered run.
	// A failed reload keeps the previous configuration.
	Load func() (config.RunConfig, error)
	// Trigger runs once per settled burst of changes.
	Trigger func(ctx context.Context, cfg config.RunConfig)
}

// Relevant reports whether a change to abs should trigger a run. The
// evidence file is never relevant; a run writes it.
func (w *Watcher) Relevant(abs string) bool {
	if filepath.Clean(abs) == filepath.Clean(w.Cfg.EvidenceFile()) {
		return false
	}
	rel, err := filepath.Rel(w.Cfg.RepoRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if governanceFiles[filepath.Base(rel)] {
		return true
	}
	return scope.Supported(rel) && !scope.Ignored(rel, w.Cfg.Ignore)
}

// Run blocks until ctx is canceled. Bursts of events are collapsed by the
// debounce timer, and runs are spaced by the limiter.
func (w *Watcher) Run(ctx context.Context) error {
	log := logging.OrNop(w.Logger)
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	limiter := w.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(DefaultInterval), 1)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init: %w", err)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.Cfg.RepoRoot); err != nil {
		return fmt.Errorf("watch %s: %w", w.Cfg.RepoRoot, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if err := w.addRecursive(fw, ev.Name); err != nil {
						log.Warnw("watch add failed", "dir", ev.Name, "error", err)
					}
					continue
				}
			}
			if !w.Relevant(ev.Name) {
				continue
			}
			log.Debugw("change", "file", ev.Name, "op", ev.Op.String())
			pending = time.After(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warnw("watch error", "error", err)
		case <-pending:
			pending = nil
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			w.reload(log)
			w.Trigger(ctx, w.Cfg)
		}
	}
}

func (w *Watcher) reload(log *zap.SugaredLogger) {
	if w.Load == nil {
		return
	}
	cfg, err := w.Load()
	if err != nil {
		log.Warnw("config reload failed, keeping previous", "error", err)
		return
	}
	w.Cfg = cfg
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.Cfg.RepoRoot {
			rel, relErr := filepath.Rel(w.Cfg.RepoRoot, p)
			if relErr == nil && scope.Ignored(rel, w.Cfg.Ignore) {
				return filepath.SkipDir
			}
		}
		return fw.Add(p)
	})
}
