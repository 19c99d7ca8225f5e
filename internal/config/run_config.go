package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const FileName = ".pumuki.yaml"

const (
	HeuristicScopeApps = "apps"
	HeuristicScopeAll  = "all"
)

// RunConfig is threaded through every stage of a run. Nothing below the CLI
// reads process environment; everything a component needs is here.
type RunConfig struct {
	RepoRoot          string         `yaml:"repo_root"`
	MaxConcurrency    int            `yaml:"max_concurrency"`
	MaxFileBytes      int64          `yaml:"max_file_bytes"`
	HeuristicScope    string         `yaml:"heuristic_scope"`
	Ignore            []string       `yaml:"ignore"`
	HardMode          bool           `yaml:"hard_mode"`
	ProtectedBranches []string       `yaml:"protected_branches"`
	EvidencePath      string         `yaml:"evidence_path"`
	MaxAgeSeconds     map[string]int `yaml:"max_age_seconds"`
	TodoDensityLimit  int            `yaml:"todo_density_limit"`
	SDDBypass         bool           `yaml:"sdd_bypass"`
	RedactionPatterns []string       `yaml:"redaction_patterns"`
}

var runConfigCache struct {
	mu      sync.RWMutex
	path    string
	exists  bool
	modTime int64
	cfg     RunConfig
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		RepoRoot:          ".",
		MaxConcurrency:    8,
		MaxFileBytes:      1 << 20,
		HeuristicScope:    HeuristicScopeApps,
		ProtectedBranches: []string{"main", "master", "develop", "dev"},
		EvidencePath:      ".ai_evidence.json",
		MaxAgeSeconds: map[string]int{
			"PRE_WRITE":  300,
			"PRE_COMMIT": 900,
			"PRE_PUSH":   1800,
			"CI":         7200,
		},
		TodoDensityLimit: 5,
	}
}

// Load reads the optional ".pumuki.yaml" at the repo root and merges it over
// the defaults. A missing file is not an error. The parsed result is cached
// per path and modification time.
//
//	max_concurrency: 8
//	heuristic_scope: apps|all
//	hard_mode: true
//	protected_branches: [main, develop]
//	max_age_seconds: {PRE_PUSH: 3600}
func Load(repoRoot string) (RunConfig, error) {
	def := DefaultRunConfig()
	if repoRoot == "" {
		repoRoot = "."
	}
	abs, err := filepath.Abs(repoRoot)
	if err == nil {
		repoRoot = abs
	}
	def.RepoRoot = repoRoot
	path := filepath.Join(repoRoot, FileName)

	st, statErr := os.Stat(path)
	if statErr != nil {
		runConfigCache.mu.Lock()
		runConfigCache.path = path
		runConfigCache.exists = false
		runConfigCache.modTime = 0
		runConfigCache.cfg = def
		runConfigCache.mu.Unlock()
		return def, nil
	}

	modTime := st.ModTime().UnixNano()
	runConfigCache.mu.RLock()
	if runConfigCache.path == path && runConfigCache.exists && runConfigCache.modTime == modTime {
		cached := runConfigCache.cfg.clone()
		runConfigCache.mu.RUnlock()
		return cached, nil
	}
	runConfigCache.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read %s: %w", FileName, err)
	}
	var fileCfg RunConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return def, fmt.Errorf("parse %s: %w", FileName, err)
	}
	cfg := mergeDefaults(fileCfg, def)
	cfg.RepoRoot = repoRoot

	runConfigCache.mu.Lock()
	runConfigCache.path = path
	runConfigCache.exists = true
	runConfigCache.modTime = modTime
	runConfigCache.cfg = cfg.clone()
	runConfigCache.mu.Unlock()

	return cfg, nil
}

func mergeDefaults(cfg, def RunConfig) RunConfig {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = def.MaxFileBytes
	}
	cfg.HeuristicScope = strings.ToLower(strings.TrimSpace(cfg.HeuristicScope))
	if cfg.HeuristicScope != HeuristicScopeAll {
		cfg.HeuristicScope = HeuristicScopeApps
	}
	if len(cfg.ProtectedBranches) == 0 {
		cfg.ProtectedBranches = def.ProtectedBranches
	}
	if strings.TrimSpace(cfg.EvidencePath) == "" {
		cfg.EvidencePath = def.EvidencePath
	}
	merged := make(map[string]int, len(def.MaxAgeSeconds))
	for k, v := range def.MaxAgeSeconds {
		merged[k] = v
	}
	for k, v := range cfg.MaxAgeSeconds {
		key := strings.ToUpper(strings.TrimSpace(k))
		if _, known := def.MaxAgeSeconds[key]; known && v > 0 {
			merged[key] = v
		}
	}
	cfg.MaxAgeSeconds = merged
	if cfg.TodoDensityLimit <= 0 {
		cfg.TodoDensityLimit = def.TodoDensityLimit
	}
	return cfg
}

// Validate returns human-readable warnings for values that were accepted
// but look wrong. It never rejects a config.
func (c RunConfig) Validate() []string {
	var warnings []string
	if c.MaxConcurrency > 64 {
		warnings = append(warnings, fmt.Sprintf("max_concurrency=%d is unusually high", c.MaxConcurrency))
	}
	if c.MaxFileBytes < 1024 {
		warnings = append(warnings, fmt.Sprintf("max_file_bytes=%d skips almost every file", c.MaxFileBytes))
	}
	if c.SDDBypass {
		warnings = append(warnings, "sdd_bypass is enabled; pre-write SDD enforcement is skipped")
	}
	for _, g := range c.Ignore {
		if _, err := filepath.Match(g, "x"); err != nil {
			warnings = append(warnings, fmt.Sprintf("ignore pattern %q is malformed", g))
		}
	}
	sort.Strings(warnings)
	return warnings
}

// EvidenceFile resolves the evidence path against the repo root.
func (c RunConfig) EvidenceFile() string {
	if filepath.IsAbs(c.EvidencePath) {
		return c.EvidencePath
	}
	return filepath.Join(c.RepoRoot, c.EvidencePath)
}

// IsProtectedBranch reports whether branch is configured as protected.
func (c RunConfig) IsProtectedBranch(branch string) bool {
	for _, b := range c.ProtectedBranches {
		if b == branch {
			return true
		}
	}
	return false
}

func (c RunConfig) clone() RunConfig {
	out := c
	out.Ignore = append([]string(nil), c.Ignore...)
	out.ProtectedBranches = append([]string(nil), c.ProtectedBranches...)
	out.RedactionPatterns = append([]string(nil), c.RedactionPatterns...)
	out.MaxAgeSeconds = make(map[string]int, len(c.MaxAgeSeconds))
	for k, v := range c.MaxAgeSeconds {
		out.MaxAgeSeconds[k] = v
	}
	return out
}
