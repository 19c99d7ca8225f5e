package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMessageKnownAndUnknown(t *testing.T) {
	m := GetMessage("EVIDENCE_STALE")
	assert.Equal(t, "Evidence is stale", m.Title)
	assert.NotEmpty(t, m.Fix)

	m = GetMessage("SOMETHING_ELSE")
	assert.Equal(t, "SOMETHING_ELSE", m.Title)
	assert.Empty(t, m.Fix)
}

func TestGetUIMessage(t *testing.T) {
	assert.Equal(t, "Gate PRE_PUSH: BLOCKED", GetUIMessage("DecisionLine", "PRE_PUSH", "BLOCKED"))
	assert.Equal(t, "--- Findings ---", GetUIMessage("ConsoleFindingsTitle"))
	assert.Equal(t, "NoSuchKey", GetUIMessage("NoSuchKey"))
}
