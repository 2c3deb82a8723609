package policy

import (
	"context"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/config"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/facts"
)

//go:embed policies/*.rego
var builtinFS embed.FS

const violationsQuery = "data.dataflow.checks.violations"

// Engine evaluates rego checks against dataflow fact tables
type Engine struct {
	query rego.PreparedEvalQuery
}

// Violation represents a policy violation
type Violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	File     string `json:"file"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// Result contains the evaluation results
type Result struct {
	Violations []Violation `json:"violations"`
	Summary    Summary     `json:"summary"`
}

// Summary provides aggregate counts
type Summary struct {
	TotalViolations int `json:"total_violations"`
	Errors          int `json:"errors"`
	Warnings        int `json:"warnings"`
	Info            int `json:"info"`
}

// Input is the document the rules see: the fact tables plus the number
// of resolution passes they were produced with.
type Input struct {
	facts.Tables
	Passes int `json:"passes"`
}

// New creates a policy engine from the *.rego files in policyDir, or from
// the built-in rules when policyDir is empty.
func New(policyDir string) (*Engine, error) {
	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}

	opts := append(modules, rego.Query(violationsQuery))
	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "preparing violations query")
	}
	return &Engine{query: query}, nil
}

func loadModules(policyDir string) ([]func(*rego.Rego), error) {
	var modules []func(*rego.Rego)
	if policyDir == "" {
		files, err := builtinFS.ReadDir("policies")
		if err != nil {
			return nil, errors.Wrap(err, "reading built-in policies")
		}
		for _, f := range files {
			name := "policies/" + f.Name()
			content, err := builtinFS.ReadFile(name)
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", name)
			}
			modules = append(modules, rego.Module(name, string(content)))
		}
		return modules, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, errors.Wrap(err, "finding policy files")
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no policy files found in %s", policyDir)
	}
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", f)
		}
		modules = append(modules, rego.Module(f, string(content)))
	}
	return modules, nil
}

// Evaluate runs the policies against the fact tables.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, errors.Wrap(err, "converting input")
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, errors.Wrap(err, "evaluating violations")
	}

	result := &Result{Violations: []Violation{}}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		violations, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, v := range violations {
				vmap, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				result.Violations = append(result.Violations, Violation{
					Rule:     getString(vmap, "rule"),
					Severity: getString(vmap, "severity"),
					File:     getString(vmap, "file"),
					Name:     getString(vmap, "name"),
					Message:  getString(vmap, "message"),
				})
			}
		}
	}
	result.sort()
	result.summarize()
	return result, nil
}

// ApplyConfig drops violations of disabled rules and ignored names and
// applies configured severities.
func (r *Result) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	kept := r.Violations[:0]
	for _, v := range r.Violations {
		if !cfg.IsRuleEnabled(v.Rule) || cfg.ShouldIgnoreSignal(v.Name) {
			continue
		}
		v.Severity = cfg.GetRuleSeverity(v.Rule, v.Severity)
		kept = append(kept, v)
	}
	r.Violations = kept
	r.summarize()
}

func (r *Result) sort() {
	sort.SliceStable(r.Violations, func(i, j int) bool {
		a, b := r.Violations[i], r.Violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Rule < b.Rule
	})
}

func (r *Result) summarize() {
	r.Summary = Summary{TotalViolations: len(r.Violations)}
	for _, v := range r.Violations {
		switch v.Severity {
		case "error":
			r.Summary.Errors++
		case "warning":
			r.Summary.Warnings++
		case "info":
			r.Summary.Info++
		}
	}
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
