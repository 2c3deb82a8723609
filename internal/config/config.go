package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FileName is the configuration file looked up by Load.
const FileName = "vlog_dataflow.json"

// Config is the top-level configuration for vlog-dataflow
type Config struct {
	// Inputs is a list of glob patterns for dataflow snapshots
	Inputs []string `json:"inputs,omitempty"`

	// Exclude is a list of glob patterns removed from Inputs
	Exclude []string `json:"exclude,omitempty"`

	// Optimizer controls constant folding
	Optimizer OptimizerConfig `json:"optimizer,omitempty"`

	// Overrides pins parameters to literal values, e.g. "top.WIDTH": "16"
	Overrides map[string]string `json:"overrides,omitempty"`

	// Lint contains check configuration
	Lint LintConfig `json:"lint,omitempty"`

	// Analysis contains analysis options
	Analysis AnalysisConfig `json:"analysis,omitempty"`

	// Policy locates the rego rules
	Policy PolicyConfig `json:"policy,omitempty"`
}

// OptimizerConfig sets the folding defaults.
type OptimizerConfig struct {
	// DefaultWidth is the width of unsized literals
	DefaultWidth int `json:"defaultWidth,omitempty"`

	// Passes is the number of fold and normalize rounds Optimize runs
	Passes int `json:"passes,omitempty"`
}

// LintConfig contains check configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// IgnoreSignals is a list of name patterns whose violations are dropped
	IgnoreSignals []string `json:"ignoreSignals,omitempty"`
}

// CacheConfig controls the resolution cache
type CacheConfig struct {
	// Enabled turns on cache usage
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`
}

// AnalysisConfig contains analysis options
type AnalysisConfig struct {
	// MaxParallelFiles limits concurrent file processing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty"`

	// Cache controls the resolution cache
	Cache CacheConfig `json:"cache,omitempty"`
}

// PolicyConfig locates the rego rules.
type PolicyConfig struct {
	// Dir holds *.rego files; empty uses the built-in rules
	Dir string `json:"dir,omitempty"`
}

const (
	defaultWidth    = 32
	defaultPasses   = 2
	defaultCacheDir = ".vlog_dataflow_cache"
)

var defaultInputs = []string{"*.dataflow.json", "**/*.dataflow.json"}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Inputs:  append([]string(nil), defaultInputs...),
		Exclude: []string{},
		Optimizer: OptimizerConfig{
			DefaultWidth: defaultWidth,
			Passes:       defaultPasses,
		},
		Overrides: map[string]string{},
		Lint: LintConfig{
			Rules:         map[string]string{},
			IgnoreSignals: []string{},
		},
		Analysis: AnalysisConfig{
			MaxParallelFiles: 0, // auto
			Cache: CacheConfig{
				Enabled: boolPtr(true),
				Dir:     defaultCacheDir,
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./vlog_dataflow.json (current working directory)
//  2. ./.vlog_dataflow.json (current working directory)
//  3. <rootPath>/vlog_dataflow.json (if different from cwd)
//  4. ~/.config/vlog_dataflow/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, FileName),
		filepath.Join(cwd, "."+FileName),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, FileName),
				filepath.Join(rootPath, "."+FileName),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "vlog_dataflow", "config.json"))
	}

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Inputs) == 0 {
		c.Inputs = append([]string(nil), defaultInputs...)
	}
	if c.Optimizer.DefaultWidth <= 0 {
		c.Optimizer.DefaultWidth = defaultWidth
	}
	if c.Optimizer.Passes <= 0 {
		c.Optimizer.Passes = defaultPasses
	}
	if c.Overrides == nil {
		c.Overrides = make(map[string]string)
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if c.Analysis.Cache.Dir == "" {
		c.Analysis.Cache.Dir = defaultCacheDir
	}
	if c.Analysis.Cache.Enabled == nil {
		c.Analysis.Cache.Enabled = boolPtr(true)
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	return nil
}

// CacheEnabled reports whether resolutions may be cached.
func (c *Config) CacheEnabled() bool {
	return c.Analysis.Cache.Enabled == nil || *c.Analysis.Cache.Enabled
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// ShouldIgnoreSignal checks a hierarchical name against the ignore
// patterns. A pattern matches either the full name or its last scope
// segment.
func (c *Config) ShouldIgnoreSignal(name string) bool {
	leaf := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		leaf = name[i+1:]
	}
	for _, pattern := range c.Lint.IgnoreSignals {
		if matched, _ := path.Match(pattern, name); matched {
			return true
		}
		if matched, _ := path.Match(pattern, leaf); matched {
			return true
		}
	}
	return false
}

// Fingerprint identifies the settings that change a resolution result.
// Cached results are keyed by it.
func (c *Config) Fingerprint() string {
	names := make([]string, 0, len(c.Overrides))
	for name := range c.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(c.Optimizer)
	for _, name := range names {
		_ = enc.Encode([2]string{name, c.Overrides[name]})
	}
	return hex.EncodeToString(h.Sum(nil))
}
