// Package registry loads the optional YAML run plan that narrows which
// discovered tests a run executes and carries per-run defaults.
package registry

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-paratest/types"
)

// Duration unmarshals from "90s" / "5m" style YAML strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Plan selects tests and overrides run defaults. The zero value selects
// every test and overrides nothing.
type Plan struct {
	// Workers overrides the worker count when > 0.
	Workers int `yaml:"workers"`
	// Timeout overrides the per-test timeout when > 0.
	Timeout Duration `yaml:"timeout"`
	// Include lists package patterns to keep; empty keeps everything.
	// A pattern is an exact import path, a path.Match glob, or a
	// "prefix/..." subtree pattern.
	Include []string `yaml:"include"`
	// Exclude lists package patterns to drop. Exclusion wins over inclusion.
	Exclude []string `yaml:"exclude"`
	// Tests narrows the selection by function name.
	Tests TestSelection `yaml:"tests"`
}

// TestSelection filters test functions by name. Patterns are RE2 and match
// the whole function name.
type TestSelection struct {
	Only []string `yaml:"only"`
	Skip []string `yaml:"skip"`
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	PlanFile       string
	DefaultTimeout time.Duration
}

// Registry holds the loaded run plan and answers test selection queries.
type Registry struct {
	config Config
	plan   Plan
	only   []*regexp.Regexp
	skip   []*regexp.Regexp
}

// NewRegistry creates a new registry instance. An empty PlanFile yields a
// registry that keeps every test.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{config: cfg}

	if cfg.PlanFile != "" {
		if err := r.loadPlan(cfg.PlanFile); err != nil {
			return nil, fmt.Errorf("failed to load run plan: %w", err)
		}
	}

	cfg.Log.Debug("Registry loaded",
		"include", len(r.plan.Include),
		"exclude", len(r.plan.Exclude),
		"only", len(r.only),
		"skip", len(r.skip))

	return r, nil
}

// loadPlan reads and validates a run plan file
func (r *Registry) loadPlan(planFile string) error {
	r.config.Log.Debug("Reading run plan file", "path", planFile)

	data, err := os.ReadFile(planFile)
	if err != nil {
		return fmt.Errorf("reading plan file: %w", err)
	}
	if err := yaml.Unmarshal(data, &r.plan); err != nil {
		return fmt.Errorf("parsing plan file: %w", err)
	}
	return r.validatePlan()
}

func (r *Registry) validatePlan() error {
	if r.plan.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", r.plan.Workers)
	}
	if r.plan.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", time.Duration(r.plan.Timeout))
	}

	for _, pattern := range r.plan.Include {
		if err := checkPackagePattern(pattern); err != nil {
			return err
		}
	}
	for _, pattern := range r.plan.Exclude {
		if err := checkPackagePattern(pattern); err != nil {
			return err
		}
	}

	for _, expr := range r.plan.Tests.Only {
		re, err := compileAnchored(expr)
		if err != nil {
			return err
		}
		r.only = append(r.only, re)
	}
	for _, expr := range r.plan.Tests.Skip {
		re, err := compileAnchored(expr)
		if err != nil {
			return err
		}
		r.skip = append(r.skip, re)
	}
	return nil
}

func checkPackagePattern(pattern string) error {
	if _, err := path.Match(strings.TrimSuffix(pattern, "/..."), "probe"); err != nil {
		return fmt.Errorf("invalid package pattern %q: %w", pattern, err)
	}
	return nil
}

func compileAnchored(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid test pattern %q: %w", expr, err)
	}
	return re, nil
}

// Workers returns the plan's worker count override, 0 when unset.
func (r *Registry) Workers() int {
	return r.plan.Workers
}

// EffectiveTimeout returns the plan's timeout override, falling back to the
// configured default.
func (r *Registry) EffectiveTimeout() time.Duration {
	if r.plan.Timeout > 0 {
		return time.Duration(r.plan.Timeout)
	}
	return r.config.DefaultTimeout
}

// Filter returns the tests the plan selects, preserving order. The
// effective timeout is stamped on every selected test.
func (r *Registry) Filter(tests []types.TestMetadata) []types.TestMetadata {
	timeout := r.EffectiveTimeout()

	selected := make([]types.TestMetadata, 0, len(tests))
	for _, test := range tests {
		if !r.packageSelected(test.Package) || !r.funcSelected(test.FuncName) {
			continue
		}
		test.Timeout = timeout
		selected = append(selected, test)
	}
	return selected
}

func (r *Registry) packageSelected(pkg string) bool {
	if len(r.plan.Include) > 0 {
		included := false
		for _, pattern := range r.plan.Include {
			if matchPackage(pattern, pkg) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pattern := range r.plan.Exclude {
		if matchPackage(pattern, pkg) {
			return false
		}
	}
	return true
}

func (r *Registry) funcSelected(funcName string) bool {
	if len(r.only) > 0 {
		matched := false
		for _, re := range r.only {
			if re.MatchString(funcName) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, re := range r.skip {
		if re.MatchString(funcName) {
			return false
		}
	}
	return true
}

// matchPackage reports whether pattern selects pkg. "..." selects every
// package, "prefix/..." selects prefix and its subtree, anything else is an
// exact path or a path.Match glob.
func matchPackage(pattern, pkg string) bool {
	if pattern == "..." {
		return true
	}
	if pattern == pkg {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/..."); ok {
		return pkg == prefix || strings.HasPrefix(pkg, prefix+"/")
	}
	ok, err := path.Match(pattern, pkg)
	return err == nil && ok
}
