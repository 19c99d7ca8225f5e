package scanner

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/logging"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
	"go.uber.org/zap"
)

type Scanner struct {
	Checks      []checks.Check
	Concurrency int
	Logger      *zap.SugaredLogger
}

type CheckStat struct {
	Family   checks.Family
	Findings int
	Duration time.Duration
}

const maxWorkers = 12

func checkWorkerCount(totalChecks, configured int) int {
	if totalChecks <= 1 {
		return 1
	}

	limit := configured
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0) * 2
	}
	if limit > maxWorkers {
		limit = maxWorkers
	}
	if limit < 1 {
		limit = 1
	}
	if totalChecks < limit {
		return totalChecks
	}
	return limit
}

func New(list []checks.Check, concurrency int, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{
		Checks:      list,
		Concurrency: concurrency,
		Logger:      logging.OrNop(logger),
	}
}

// Run executes all checks against the shared scan context.
// It returns findings by check ID, per-check execution errors, and per-check stats.
// A check that fails or panics contributes no findings; the others still run.
func (s *Scanner) Run(ctx context.Context, scanCtx *ctxpkg.Context) (map[string][]report.Finding, map[string]error, map[string]CheckStat, error) {
	resultsByCheck := make(map[string][]report.Finding)
	checkErrors := make(map[string]error)
	checkStats := make(map[string]CheckStat)
	log := logging.OrNop(s.Logger)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, checkWorkerCount(len(s.Checks), s.Concurrency))

	for _, check := range s.Checks {
		select {
		case <-ctx.Done():
			wg.Wait()
			return resultsByCheck, checkErrors, checkStats, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(c checks.Check) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			localCtx := *scanCtx
			localCtx.RequestContext = ctx

			start := time.Now()
			results, err := runSafely(c, &localCtx)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			checkStats[c.ID] = CheckStat{
				Family:   c.Family,
				Findings: len(results),
				Duration: elapsed,
			}

			if err != nil {
				if _, exists := checkErrors[c.ID]; !exists {
					checkErrors[c.ID] = err
				}
				checkStats[c.ID] = CheckStat{Family: c.Family, Duration: elapsed}
				log.Warnw("check failed", "check", c.ID, "family", c.Family, "error", err)
				return
			}

			resultsByCheck[c.ID] = results
		}(check)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return resultsByCheck, checkErrors, checkStats, err
	}
	return resultsByCheck, checkErrors, checkStats, nil
}

func runSafely(c checks.Check, ctx *ctxpkg.Context) (results []report.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("check %s panicked: %v\n%s", c.ID, r, debug.Stack())
		}
	}()
	if c.Run == nil {
		return nil, fmt.Errorf("check %s has no run function", c.ID)
	}
	return c.Run(ctx)
}

// Flatten returns all findings in check order.
func Flatten(list []checks.Check, byCheck map[string][]report.Finding) []report.Finding {
	var out []report.Finding
	for _, c := range list {
		out = append(out, byCheck[c.ID]...)
	}
	return out
}
