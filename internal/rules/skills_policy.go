package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/SwiftEnProfundidad/ast-intelligence-hooks/internal/severity"
)

const SkillsPolicyFile = "skills.policy.json"

type StagePolicy struct {
	BlockOnOrAbove severity.Legacy `json:"blockOnOrAbove"`
	WarnOnOrAbove  severity.Legacy `json:"warnOnOrAbove"`
}

type BundlePolicy struct {
	Enabled               bool     `json:"enabled"`
	PromoteToErrorRuleIDs []string `json:"promoteToErrorRuleIds,omitempty"`
}

type SkillsPolicy struct {
	Version              string                  `json:"version"`
	DefaultBundleEnabled bool                    `json:"defaultBundleEnabled"`
	Stages               map[string]StagePolicy  `json:"stages"`
	Bundles              map[string]BundlePolicy `json:"bundles"`
}

// BundleEnabled falls back to DefaultBundleEnabled for unlisted bundles.
// A nil policy enables every bundle.
func (p *SkillsPolicy) BundleEnabled(name string) bool {
	if p == nil {
		return true
	}
	if b, ok := p.Bundles[name]; ok {
		return b.Enabled
	}
	return p.DefaultBundleEnabled
}

func (p *SkillsPolicy) promoted(bundle, ruleID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.Bundles[bundle].PromoteToErrorRuleIDs {
		if id == ruleID {
			return true
		}
	}
	return false
}

// PolicyResult carries the parsed policy, its canonical hash and any
// fallback notes. Err is set when the file exists but is malformed.
type PolicyResult struct {
	Policy *SkillsPolicy
	Path   string
	Hash   string
	Notes  []string
	Err    error
}

func LoadSkillsPolicy(root string) PolicyResult {
	path := filepath.Join(root, SkillsPolicyFile)
	res := PolicyResult{Path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return res
	}
	if err == nil {
		res.Policy, err = ParseSkillsPolicy(data)
	}
	if err != nil {
		res.Policy = nil
		res.Err = err
		res.Notes = append(res.Notes, fmt.Sprintf("%s invalid: %v", SkillsPolicyFile, err))
		return res
	}
	res.Hash = mustHash(res.Policy)
	return res
}

func ParseSkillsPolicy(data []byte) (*SkillsPolicy, error) {
	var p SkillsPolicy
	if err := decodeValidated("skills-policy", data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
