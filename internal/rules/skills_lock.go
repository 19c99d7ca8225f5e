package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
)

const SkillsLockFile = "skills.lock.json"

type SkillsLock struct {
	Version         string         `json:"version"`
	CompilerVersion string         `json:"compilerVersion"`
	GeneratedAt     string         `json:"generatedAt"`
	Bundles         []SkillsBundle `json:"bundles"`
}

type SkillsBundle struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Source  string       `json:"source"`
	Hash    string       `json:"hash"`
	Rules   []SkillsRule `json:"rules"`

	// Drift is set when Hash does not match the recomputed content hash.
	Drift bool `json:"-"`
}

type SkillsRule struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	Severity       string `json:"severity"`
	Platform       string `json:"platform"`
	SourceSkill    string `json:"sourceSkill"`
	SourcePath     string `json:"sourcePath"`
	Stage          string `json:"stage,omitempty"`
	Confidence     string `json:"confidence,omitempty"`
	Locked         *bool  `json:"locked,omitempty"`
	EvaluationMode string `json:"evaluationMode,omitempty"`
	Origin         string `json:"origin,omitempty"`
}

// LockResult is the outcome of reading the lock. Notes collect the
// fallbacks taken; a malformed lock yields a nil Lock and one note.
type LockResult struct {
	Lock  *SkillsLock
	Path  string
	Hash  string
	Notes []string
}

// LoadSkillsLock reads skills.lock.json from root. A missing file is not a
// fallback: the run simply has no skills rules.
func LoadSkillsLock(root string) LockResult {
	path := filepath.Join(root, SkillsLockFile)
	res := LockResult{Path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return res
	}
	if err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("%s unreadable: %v", SkillsLockFile, err))
		return res
	}
	lock, err := ParseSkillsLock(data)
	if err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("%s invalid: %v", SkillsLockFile, err))
		return res
	}
	for _, b := range lock.Bundles {
		if b.Drift {
			res.Notes = append(res.Notes, fmt.Sprintf("bundle hash drift: %s@%s", b.Name, b.Version))
		}
	}
	res.Lock = lock
	res.Hash = LockHash(lock)
	return res
}

// ParseSkillsLock validates data against the lock schema, checks semantic
// versions and marks bundles whose content no longer matches their hash.
func ParseSkillsLock(data []byte) (*SkillsLock, error) {
	var lock SkillsLock
	if err := decodeValidated("skills-lock", data, &lock); err != nil {
		return nil, err
	}
	if _, err := semver.StrictNewVersion(lock.CompilerVersion); err != nil {
		return nil, fmt.Errorf("compilerVersion %q: %w", lock.CompilerVersion, err)
	}
	for i := range lock.Bundles {
		b := &lock.Bundles[i]
		if _, err := semver.StrictNewVersion(b.Version); err != nil {
			return nil, fmt.Errorf("bundle %s version %q: %w", b.Name, b.Version, err)
		}
		b.Drift = BundleHash(b.Rules) != b.Hash
	}
	return &lock, nil
}

type normalizedSkillsRule struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	Severity       string  `json:"severity"`
	Platform       string  `json:"platform"`
	SourceSkill    string  `json:"sourceSkill"`
	SourcePath     string  `json:"sourcePath"`
	Stage          *string `json:"stage"`
	Confidence     *string `json:"confidence"`
	Locked         bool    `json:"locked"`
	EvaluationMode *string `json:"evaluationMode"`
	Origin         *string `json:"origin"`
}

func normalizeSkillsRules(in []SkillsRule) []normalizedSkillsRule {
	out := make([]normalizedSkillsRule, 0, len(in))
	for _, r := range in {
		out = append(out, normalizedSkillsRule{
			ID:             r.ID,
			Description:    r.Description,
			Severity:       r.Severity,
			Platform:       r.Platform,
			SourceSkill:    r.SourceSkill,
			SourcePath:     r.SourcePath,
			Stage:          optional(r.Stage),
			Confidence:     optional(r.Confidence),
			Locked:         r.Locked != nil && *r.Locked,
			EvaluationMode: optional(r.EvaluationMode),
			Origin:         optional(r.Origin),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BundleHash is the content hash of a bundle: sha256 over the canonical
// JSON of its rules sorted by id, with absent optional fields as null.
func BundleHash(rules []SkillsRule) string {
	return mustHash(normalizeSkillsRules(rules))
}

// LockHash is the deterministic hash of the whole lock, independent of
// bundle and rule order and of generatedAt.
func LockHash(lock *SkillsLock) string {
	type bundleView struct {
		Name    string                 `json:"name"`
		Version string                 `json:"version"`
		Source  string                 `json:"source"`
		Hash    string                 `json:"hash"`
		Rules   []normalizedSkillsRule `json:"rules"`
	}
	bundles := make([]bundleView, 0, len(lock.Bundles))
	for _, b := range lock.Bundles {
		bundles = append(bundles, bundleView{Name: b.Name, Version: b.Version, Source: b.Source, Hash: b.Hash, Rules: normalizeSkillsRules(b.Rules)})
	}
	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].Name != bundles[j].Name {
			return bundles[i].Name < bundles[j].Name
		}
		return bundles[i].Version < bundles[j].Version
	})
	return mustHash(map[string]any{
		"version":         lock.Version,
		"compilerVersion": lock.CompilerVersion,
		"bundles":         bundles,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
