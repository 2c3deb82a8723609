package pipeline

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/optimizer"
)

// ParseOverrides folds each override text into a constant. Integer
// literals use Verilog syntax ("16", "8'hff"), reals contain a '.' or an
// exponent, and double-quoted text is a string.
func ParseOverrides(defs map[string]string, defaultWidth int) (map[string]*dataflow.EvalValue, error) {
	opt := optimizer.New(nil, optimizer.WithDefaultWidth(defaultWidth))
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*dataflow.EvalValue, len(defs))
	for _, name := range names {
		text := defs[name]
		folded, err := opt.Fold(literalNode(text))
		if err != nil {
			return nil, errors.Wrapf(err, "override %s", name)
		}
		v, ok := folded.(*dataflow.EvalValue)
		if !ok {
			return nil, errors.Errorf("override %s: %q has no known value", name, text)
		}
		out[name] = v
	}
	return out, nil
}

func literalNode(text string) dataflow.Node {
	t := strings.TrimSpace(text)
	switch {
	case len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"':
		return &dataflow.StringConst{Value: t[1 : len(t)-1]}
	case !strings.Contains(t, "'") && strings.ContainsAny(t, ".eE"):
		return &dataflow.FloatConst{Value: t}
	}
	return &dataflow.IntConst{Value: t}
}

// ParseDefines splits NAME=LITERAL pairs as given on the command line.
func ParseDefines(defines []string) (map[string]string, error) {
	out := make(map[string]string, len(defines))
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.TrimSpace(value) == "" {
			return nil, errors.Errorf("define %q: expected NAME=LITERAL", d)
		}
		out[name] = strings.TrimSpace(value)
	}
	return out, nil
}
