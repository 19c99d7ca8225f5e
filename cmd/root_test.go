package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/gate"
	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/scope"
)

func TestBuildRequest(t *testing.T) {
	fromRef, toRef = "", ""
	req, err := buildRequest("pre-push", "working-tree")
	require.NoError(t, err)
	assert.Equal(t, gate.PrePush, req.Stage)
	assert.Equal(t, scope.KindWorkingTree, req.Scope.Kind)

	_, err = buildRequest("PRE_MERGE", "staged")
	assert.Error(t, err)

	_, err = buildRequest("CI", "range")
	assert.Error(t, err)

	fromRef, toRef = "origin/main", "HEAD"
	t.Cleanup(func() { fromRef, toRef = "", "" })
	req, err = buildRequest("CI", "range")
	require.NoError(t, err)
	assert.Equal(t, "origin/main", req.Scope.FromRef)
}

func TestDecisionExit(t *testing.T) {
	assert.NoError(t, decisionExit(gate.Decision{Status: gate.StatusAllowed, Warn: true}))

	err := decisionExit(gate.Decision{Status: gate.StatusBlocked})
	var ee exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, exitBlocked, ee.code)
}
