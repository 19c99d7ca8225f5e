package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	ctxpkg "github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks/context"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/report"
)

func finding(rule string) report.Finding {
	return report.Finding{RuleID: rule, Severity: "WARN", FilePath: "a.ts", Line: 1}
}

func TestCheckWorkerCount(t *testing.T) {
	tests := []struct {
		total, configured, want int
	}{
		{total: 0, configured: 4, want: 1},
		{total: 1, configured: 4, want: 1},
		{total: 3, configured: 8, want: 3},
		{total: 20, configured: 4, want: 4},
		{total: 40, configured: 100, want: maxWorkers},
	}
	for _, tt := range tests {
		if got := checkWorkerCount(tt.total, tt.configured); got != tt.want {
			t.Fatalf("checkWorkerCount(%d, %d) = %d, want %d", tt.total, tt.configured, got, tt.want)
		}
	}
}

func TestRunIsolatesFailingAndPanickingChecks(t *testing.T) {
	list := []checks.Check{
		{ID: "OK", Family: checks.FamilyText, Run: func(*ctxpkg.Context) ([]report.Finding, error) {
			return []report.Finding{finding("r.ok")}, nil
		}},
		{ID: "FAIL", Family: checks.FamilyCommon, Run: func(*ctxpkg.Context) ([]report.Finding, error) {
			return []report.Finding{finding("r.fail")}, errors.New("boom")
		}},
		{ID: "PANIC", Family: checks.FamilyIOS, Run: func(*ctxpkg.Context) ([]report.Finding, error) {
			panic("unexpected")
		}},
		{ID: "NIL", Family: checks.FamilyBackend},
	}

	s := New(list, 2, nil)
	byCheck, errs, stats, err := s.Run(context.Background(), &ctxpkg.Context{})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(byCheck["OK"]) != 1 {
		t.Fatalf("expected OK check findings, got %v", byCheck["OK"])
	}
	for _, id := range []string{"FAIL", "PANIC", "NIL"} {
		if errs[id] == nil {
			t.Fatalf("expected error for %s", id)
		}
		if len(byCheck[id]) != 0 {
			t.Fatalf("failed check %s must contribute no findings", id)
		}
		if stats[id].Findings != 0 {
			t.Fatalf("failed check %s stat should count 0 findings", id)
		}
	}
	if stats["OK"].Findings != 1 || stats["OK"].Family != checks.FamilyText {
		t.Fatalf("unexpected stat for OK: %+v", stats["OK"])
	}

	flat := Flatten(list, byCheck)
	if len(flat) != 1 || flat[0].RuleID != "r.ok" {
		t.Fatalf("unexpected flattened findings: %+v", flat)
	}
}

func TestRunPassesRequestContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run-1")
	var seen any
	list := []checks.Check{{ID: "CTX", Run: func(c *ctxpkg.Context) ([]report.Finding, error) {
		seen = c.RequestContext.Value(key{})
		return nil, nil
	}}}

	if _, _, _, err := New(list, 1, nil).Run(ctx, &ctxpkg.Context{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "run-1" {
		t.Fatalf("check did not receive the request context, got %v", seen)
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	list := []checks.Check{{ID: "A", Run: func(*ctxpkg.Context) ([]report.Finding, error) { return nil, nil }}}

	_, _, _, err := New(list, 1, nil).Run(ctx, &ctxpkg.Context{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
