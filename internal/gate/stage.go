// Package gate turns findings, repository state and upstream preconditions
// into an ALLOWED/BLOCKED decision for one pipeline stage.
package gate

import (
	"fmt"
	"strings"
)

type Stage string

const (
	PreWrite  Stage = "PRE_WRITE"
	PreCommit Stage = "PRE_COMMIT"
	PrePush   Stage = "PRE_PUSH"
	CI        Stage = "CI"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{PreWrite, PreCommit, PrePush, CI}

// ParseStage accepts the stage names case-insensitively, with "-" as an
// alternative separator.
func ParseStage(s string) (Stage, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, st := range Stages {
		if string(st) == key {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q (want PRE_WRITE, PRE_COMMIT, PRE_PUSH or CI)", s)
}

func (s Stage) Valid() bool {
	_, err := ParseStage(string(s))
	return err == nil
}

// PolicyStage is the stage whose thresholds apply. PRE_WRITE borrows the
// PRE_COMMIT policy but keeps its own label everywhere else.
func (s Stage) PolicyStage() Stage {
	if s == PreWrite {
		return PreCommit
	}
	return s
}

func (s Stage) String() string { return string(s) }
