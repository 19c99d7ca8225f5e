package registry

import (
	"strings"
	"testing"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/checks"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPlatformCoversEveryPlatform(t *testing.T) {
	for _, p := range []platform.Platform{platform.Backend, platform.Frontend, platform.IOS, platform.Android} {
		list := ForPlatform(p)
		require.NotEmpty(t, list, p.String())
		for _, c := range list {
			assert.Equal(t, strings.ToUpper(p.String()), string(c.Family), c.ID)
		}
	}
	assert.Empty(t, ForPlatform(platform.Other))
}

func TestDefaultChecksHaveUniqueIDsAndRules(t *testing.T) {
	list := DefaultChecks()
	seen := map[string]bool{}
	for _, c := range list {
		assert.False(t, seen[c.ID], "duplicate check id %s", c.ID)
		seen[c.ID] = true
		assert.NotNil(t, c.Run, c.ID)
		assert.NotEmpty(t, c.Rules, c.ID)
	}

	rules := Rules(list)
	ids := map[string]bool{}
	for _, r := range rules {
		assert.False(t, ids[r.ID], "duplicate rule %s", r.ID)
		ids[r.ID] = true
		assert.NotEmpty(t, r.Severity, r.ID)
	}
	assert.True(t, ids["heuristics.ts.console-log.ast"])
	assert.True(t, ids["common.images.missing_alt"])
}

func TestForRunSelectsDetectedPlatforms(t *testing.T) {
	detected := platform.Detect([]string{"apps/ios/App/View.swift"})
	families := map[checks.Family]bool{}
	for _, c := range ForRun(detected) {
		families[c.Family] = true
	}
	assert.Equal(t, map[checks.Family]bool{
		checks.FamilyIOS:    true,
		checks.FamilyCommon: true,
		checks.FamilyText:   true,
	}, families)

	_, ok := Find(DefaultChecks(), "BACKEND_UNUSED_EXPORTS")
	assert.True(t, ok)
}
