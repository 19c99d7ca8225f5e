package messages

import (
	"fmt"
)

type MessageDetail struct {
	Title string
	Fix   string
}

type violationMessage struct {
	TitleEN string
	FixEN   string
}

// violationMessages maps gate and SDD violation codes to console titles and
// remediation hints.
var violationMessages = map[string]violationMessage{
	"EVIDENCE_MISSING": {
		TitleEN: "Evidence file missing",
		FixEN:   "Run `pumuki gate` for this stage to produce fresh evidence.",
	},
	"EVIDENCE_INVALID": {
		TitleEN: "Evidence file invalid",
		FixEN:   "Delete the evidence file and run `pumuki gate` again. Do not edit it by hand; the payload hash covers every field.",
	},
	"EVIDENCE_TIMESTAMP_INVALID": {
		TitleEN: "Evidence timestamp unreadable",
		FixEN:   "Regenerate the evidence with `pumuki gate`.",
	},
	"EVIDENCE_STALE": {
		TitleEN: "Evidence is stale",
		FixEN:   "Run `pumuki gate` again, or raise max_age_seconds for this stage in .pumuki.yaml.",
	},
	"EVIDENCE_GATE_BLOCKED": {
		TitleEN: "Last gate run was blocked",
		FixEN:   "Fix the blocking findings and rerun the gate.",
	},
	"GITFLOW_PROTECTED_BRANCH": {
		TitleEN: "Protected branch",
		FixEN:   "Create a feature branch (git switch -c feature/<name>) and commit there.",
	},
	"OPENSPEC_MISSING": {
		TitleEN: "OpenSpec not installed",
		FixEN:   "Add openspec to package.json devDependencies and run the installer.",
	},
	"OPENSPEC_VERSION_UNSUPPORTED": {
		TitleEN: "OpenSpec version unsupported",
		FixEN:   "Upgrade openspec to a supported release.",
	},
	"OPENSPEC_PROJECT_MISSING": {
		TitleEN: "OpenSpec project missing",
		FixEN:   "Run `openspec init` at the repository root.",
	},
	"SDD_SESSION_MISSING": {
		TitleEN: "No SDD session",
		FixEN:   "Open a session for the change you are working on before writing code.",
	},
	"SDD_SESSION_INVALID": {
		TitleEN: "SDD session invalid",
		FixEN:   "Reopen the SDD session; the current one is expired or unreadable.",
	},
	"SDD_CHANGE_MISSING": {
		TitleEN: "SDD change missing",
		FixEN:   "The session points at a change that no longer exists under openspec/changes.",
	},
	"SDD_CHANGE_ARCHIVED": {
		TitleEN: "SDD change archived",
		FixEN:   "Open a session on an active change.",
	},
}

// uiMessages holds the console strings.
var uiMessages = map[string]string{
	"ConsoleFindingsTitle":    "--- Findings ---",
	"ConsoleViolationsTitle":  "--- Violations ---",
	"ConsoleWarningsTitle":    "--- Warnings ---",
	"ConsoleScanSummaryTitle": "--- Analyzer Summary ---",
	"ConsoleFixLabel":         "Fix",
	"ConsoleNoIssues":         "[OK] No findings",
	"ConsoleOccurrences":      "Occurrences: %d",
	"CheckStatusFound":        "Found",
	"CheckStatusNotFound":     "Clean",
	"CheckStatusFailed":       "Failed",
	"DecisionLine":            "Gate %s: %s",
	"DecisionPolicy":          "Policy: %s (block >= %s, warn >= %s)",
	"DecisionScope":           "Files scanned: %d | Findings: %d | Max severity: %s",
	"DecisionEvidence":        "Evidence: %s (snapshot %s)",
	"DecisionEvidenceAge":     "Evidence age: %ds of %ds",
	"DecisionRepo":            "Branch: %s",
	"VerifyValid":             "[OK] %s is valid (version %s, snapshot %s)",
	"VerifyInvalid":           "[X] %s is invalid: %s",
	"WatchStarted":            "Watching %s for changes (stage %s). Press Ctrl+C to stop.",
	"WatchStopped":            "Watch stopped.",
	"ScanCancelled":           "Gate run cancelled.",
	"CoverageLine":            "Rules: %d available, %d evaluated, %d matched",
}

// GetMessage returns the title and fix for a violation code. Unknown codes
// are their own title.
func GetMessage(code string) MessageDetail {
	if msg, ok := violationMessages[code]; ok {
		return MessageDetail{Title: msg.TitleEN, Fix: msg.FixEN}
	}
	return MessageDetail{Title: code}
}

func GetUIMessage(id string, args ...interface{}) string {
	format, ok := uiMessages[id]
	if !ok || format == "" {
		return id
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
