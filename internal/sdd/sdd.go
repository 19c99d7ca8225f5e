// Package sdd reads the spec-driven-development preconditions a pre-write
// gate depends on: the OpenSpec installation, the OpenSpec project and the
// active SDD session. It only reads files; the session itself is managed by
// other tooling.
package sdd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	CodeAllowed                    = "ALLOWED"
	CodeOpenSpecMissing            = "OPENSPEC_MISSING"
	CodeOpenSpecVersionUnsupported = "OPENSPEC_VERSION_UNSUPPORTED"
	CodeOpenSpecProjectMissing     = "OPENSPEC_PROJECT_MISSING"
	CodeSessionMissing             = "SDD_SESSION_MISSING"
	CodeSessionInvalid             = "SDD_SESSION_INVALID"
	CodeChangeArchived             = "SDD_CHANGE_ARCHIVED"
	CodeChangeMissing              = "SDD_CHANGE_MISSING"
)

// MinimumOpenSpec is the oldest supported OpenSpec release.
const MinimumOpenSpec = "1.1.1"

const (
	SessionFile     = ".pumuki/sdd-session.json"
	openSpecPackage = "node_modules/@fission-ai/openspec/package.json"
	openSpecDir     = "openspec"
)

type Decision struct {
	Allowed bool           `json:"allowed"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Session struct {
	Active    bool   `json:"active"`
	ChangeID  string `json:"changeId,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	// Valid is derived from ExpiresAt at read time.
	Valid bool `json:"-"`
}

type Status struct {
	Installed          bool
	Version            string
	Compatible         bool
	ProjectInitialized bool
	Session            Session
}

// ReadStatus inspects root at now. A missing or unreadable session file reads
// as an inactive session.
func ReadStatus(root string, now time.Time) Status {
	var st Status
	if v, err := openSpecVersion(root); err == nil {
		st.Installed = true
		st.Version = v
		st.Compatible = compatible(v)
	}
	if fi, err := os.Stat(filepath.Join(root, openSpecDir)); err == nil && fi.IsDir() {
		st.ProjectInitialized = true
	}
	st.Session = readSession(root, now)
	return st
}

func openSpecVersion(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(openSpecPackage)))
	if err != nil {
		return "", err
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", err
	}
	return pkg.Version, nil
}

func compatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	c, err := semver.NewConstraint(">= " + MinimumOpenSpec)
	if err != nil {
		return false
	}
	return c.Check(v)
}

func readSession(root string, now time.Time) Session {
	var s Session
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(SessionFile)))
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}
	}
	if exp, err := time.Parse(time.RFC3339, s.ExpiresAt); err == nil {
		s.Valid = s.Active && strings.TrimSpace(s.ChangeID) != "" && exp.After(now)
	}
	return s
}

// Evaluate decides whether work may proceed. bypass skips every check and
// is reported in the decision details.
func Evaluate(root string, now time.Time, bypass bool) Decision {
	if bypass {
		return Decision{
			Allowed: true,
			Code:    CodeAllowed,
			Message: "SDD bypass is active via sdd_bypass. Enforcement skipped.",
			Details: map[string]any{"bypass": true},
		}
	}
	st := ReadStatus(root, now)
	switch {
	case !st.Installed:
		return blocked(CodeOpenSpecMissing, "OpenSpec is required but was not detected. Install OpenSpec before continuing.")
	case !st.Compatible:
		return blocked(CodeOpenSpecVersionUnsupported, fmt.Sprintf("OpenSpec version is unsupported. Minimum required is %s (detected: %s).", MinimumOpenSpec, orUnknown(st.Version)))
	case !st.ProjectInitialized:
		return blocked(CodeOpenSpecProjectMissing, "OpenSpec project is not initialized in this repository.")
	case !st.Session.Active:
		return blocked(CodeSessionMissing, "SDD session is not active.")
	case !st.Session.Valid:
		return blocked(CodeSessionInvalid, "SDD session is invalid or expired.")
	}

	change := st.Session.ChangeID
	if exists(filepath.Join(root, openSpecDir, "changes", "archive", change)) {
		return blocked(CodeChangeArchived, fmt.Sprintf("Active SDD change %q is archived. Open a new active change session.", change))
	}
	if !exists(filepath.Join(root, openSpecDir, "changes", change)) {
		return blocked(CodeChangeMissing, fmt.Sprintf("Active SDD change %q was not found in openspec/changes.", change))
	}
	return Decision{Allowed: true, Code: CodeAllowed, Message: "SDD checks passed with an active valid session.", Details: map[string]any{"changeId": change}}
}

func blocked(code, message string) Decision {
	return Decision{Code: code, Message: message}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return !errors.Is(err, fs.ErrNotExist)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
