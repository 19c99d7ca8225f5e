package severity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{in: "critical", want: Critical},
		{in: " CRITICAL ", want: Critical},
		{in: "error", want: High},
		{in: "ERROR", want: High},
		{in: "high", want: High},
		{in: "warn", want: Medium},
		{in: "Warning", want: Medium},
		{in: "medium", want: Medium},
		{in: "info", want: Low},
		{in: "low", want: Low},
		{in: "", want: Low},
		{in: "catastrophic", want: Low},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q)=%s want=%s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	seen := make(map[Legacy]bool)
	for _, s := range All {
		l := s.Legacy()
		if seen[l] {
			t.Fatalf("legacy value %s produced twice", l)
		}
		seen[l] = true
		if back := l.Internal(); back != s {
			t.Fatalf("round trip %s -> %s -> %s", s, l, back)
		}
	}
	for _, l := range AllLegacy {
		if back := l.Internal().Legacy(); back != l {
			t.Fatalf("round trip %s -> %s", l, back)
		}
	}
}

func TestOrderPreserved(t *testing.T) {
	for i := 1; i < len(All); i++ {
		if Compare(All[i-1], All[i]) >= 0 {
			t.Fatalf("expected %s < %s", All[i-1], All[i])
		}
		if Compare(AllLegacy[i-1].Internal(), AllLegacy[i].Internal()) >= 0 {
			t.Fatalf("expected %s < %s", AllLegacy[i-1], AllLegacy[i])
		}
	}
}

func TestMax(t *testing.T) {
	if got := Max(); got != "" {
		t.Fatalf("Max() on empty = %q", got)
	}
	if got := Max(Low, Critical, Medium); got != Critical {
		t.Fatalf("Max()=%s", got)
	}
	if !High.AtLeast(Medium) || Medium.AtLeast(High) {
		t.Fatalf("AtLeast ordering broken")
	}
}
