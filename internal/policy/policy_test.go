package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/config"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/facts"
)

const file = "rtl/top.dataflow.json"

func sampleInput() Input {
	return Input{
		Passes: 2,
		Tables: facts.Tables{
			Files: []facts.FileRow{{Path: file, Terms: 6, Binds: 7, Constants: 2}},
			Terms: []facts.TermRow{
				{Name: "top.A", File: file, Types: []string{"Parameter"}, Width: 1, Resolved: true},
				{Name: "top.bus", File: file, Types: []string{"Wire"}, MSB: "(top.N - 1)", LSB: "32'sd0"},
			},
			Binds: []facts.BindRow{
				{Target: "top.A", File: file, Index: 0, Tree: "32'sd1", State: facts.StateConstant},
				{Target: "top.A", File: file, Index: 1, Tree: "32'sd2", State: facts.StateConstant},
				{Target: "top.x", File: file, Index: 0, Tree: "1'bx", State: facts.StateUndefined},
			},
			Constants: []facts.ConstantRow{
				{Name: "top.A", File: file, Value: "1", Width: 32, Signed: true, Kind: "int"},
			},
			Unresolved: []facts.UnresolvedRow{
				{Name: "top.C", File: file, Depth: 2, Reason: "reference chain depth 2 exceeds 2 passes"},
				{Name: "top.N", File: file, Depth: 0, Reason: "depends on non-constant signal top.sel"},
				{Name: "top.P", File: file, Depth: 0, InCycle: true, Reason: "cyclic parameter reference"},
			},
		},
	}
}

func rulesByName(result *Result) map[string]string {
	out := make(map[string]string)
	for _, v := range result.Violations {
		out[v.Name+"/"+v.Rule] = v.Severity
	}
	return out
}

func TestBuiltinRules(t *testing.T) {
	engine, err := New("")
	require.NoError(t, err)

	result, err := engine.Evaluate(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"top.A/multiple_parameter_binds": "error",
		"top.C/parameter_chain_depth":    "warning",
		"top.N/unresolved_parameter":     "warning",
		"top.P/parameter_cycle":          "error",
		"top.bus/unresolved_width":       "info",
		"top.x/undefined_constant_bind":  "warning",
	}, rulesByName(result))
	assert.Equal(t, Summary{TotalViolations: 6, Errors: 2, Warnings: 3, Info: 1}, result.Summary)

	names := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		names = append(names, v.Name)
	}
	assert.IsIncreasing(t, names)
}

func TestCleanTablesHaveNoViolations(t *testing.T) {
	engine, err := New("")
	require.NoError(t, err)

	result, err := engine.Evaluate(context.Background(), Input{Passes: 2})
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
	assert.Equal(t, Summary{}, result.Summary)
}

func TestApplyConfig(t *testing.T) {
	engine, err := New("")
	require.NoError(t, err)
	result, err := engine.Evaluate(context.Background(), sampleInput())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Lint.Rules["unresolved_width"] = "off"
	cfg.Lint.Rules["parameter_chain_depth"] = "error"
	cfg.Lint.IgnoreSignals = []string{"top.P"}
	result.ApplyConfig(cfg)

	rules := rulesByName(result)
	assert.NotContains(t, rules, "top.bus/unresolved_width")
	assert.NotContains(t, rules, "top.P/parameter_cycle")
	assert.Equal(t, "error", rules["top.C/parameter_chain_depth"])
	assert.Equal(t, Summary{TotalViolations: 4, Errors: 2, Warnings: 2}, result.Summary)
}

func TestPolicyDirectory(t *testing.T) {
	dir := t.TempDir()
	rule := `package dataflow.checks

import rego.v1

violations contains v if {
	some c in input.constants
	c.width > 16
	v := {"rule": "wide_constant", "severity": "info", "file": c.file, "name": c.name, "message": "wide"}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wide.rego"), []byte(rule), 0o644))

	engine, err := New(dir)
	require.NoError(t, err)
	result, err := engine.Evaluate(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "wide_constant", result.Violations[0].Rule)

	_, err = New(t.TempDir())
	assert.Error(t, err)
}
