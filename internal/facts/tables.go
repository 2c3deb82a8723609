package facts

import (
	"fmt"
	"sort"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/depgraph"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/optimizer"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/resolver"
)

// Tables is the relational view of one or more resolutions, the input
// to the rego checks and the facts export. Each slice is a relation with
// flat rows.
type Tables struct {
	Files        []FileRow       `json:"files"`
	Terms        []TermRow       `json:"terms"`
	Binds        []BindRow       `json:"binds"`
	Constants    []ConstantRow   `json:"constants"`
	Dependencies []DependencyRow `json:"dependencies"`
	Unresolved   []UnresolvedRow `json:"unresolved"`
}

type FileRow struct {
	Path      string `json:"path"`
	Terms     int    `json:"terms"`
	Binds     int    `json:"binds"`
	Constants int    `json:"constants"`
}

// TermRow is a declaration after resolution. Width is 0 when the range
// did not fold.
type TermRow struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Types    []string `json:"types"`
	Signed   bool     `json:"signed"`
	MSB      string   `json:"msb"`
	LSB      string   `json:"lsb"`
	Width    int      `json:"width"`
	Dims     int      `json:"dims"`
	Resolved bool     `json:"resolved"`
}

// Bind states.
const (
	StateConstant  = "constant"
	StatePartial   = "partial"
	StateSymbolic  = "symbolic"
	StateUndefined = "undefined"
)

type BindRow struct {
	Target  string `json:"target"`
	File    string `json:"file"`
	Index   int    `json:"index"`
	Tree    string `json:"tree"`
	State   string `json:"state"`
	Clocked bool   `json:"clocked"`
}

type ConstantRow struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Value  string `json:"value"`
	Width  int    `json:"width"`
	Signed bool   `json:"signed"`
	Kind   string `json:"kind"`
}

type DependencyRow struct {
	File string `json:"file"`
	From string `json:"from"`
	To   string `json:"to"`
}

// UnresolvedRow is a parameter that did not reduce to a literal.
type UnresolvedRow struct {
	Name    string `json:"name"`
	File    string `json:"file"`
	Depth   int    `json:"depth"`
	InCycle bool   `json:"in_cycle"`
	Reason  string `json:"reason"`
}

// BuildTables flattens one resolution of file into relations. passes is
// the number of parameter passes the resolution ran, used to explain
// parameters left unresolved.
func BuildTables(file string, res *resolver.Result, g *depgraph.Graph, passes int) Tables {
	tables := emptyTables()
	tables.Files = append(tables.Files, FileRow{
		Path:      file,
		Terms:     res.Terms.Len(),
		Binds:     res.Binds.Count(),
		Constants: len(res.Constants),
	})

	for _, name := range res.Terms.Names() {
		t, _ := res.Terms.Get(name)
		width := rangeWidth(t)
		resolved := width > 0
		for _, d := range t.Dims {
			if !dataflow.IsNormal(d.Left) || !dataflow.IsNormal(d.Right) {
				resolved = false
			}
		}
		tables.Terms = append(tables.Terms, TermRow{
			Name:     name,
			File:     file,
			Types:    t.Type.Names(),
			Signed:   t.Signed,
			MSB:      render(t.MSB),
			LSB:      render(t.LSB),
			Width:    width,
			Dims:     len(t.Dims),
			Resolved: resolved,
		})
	}

	opt := optimizer.New(res.Terms, optimizer.WithConstants(res.Constants))
	for _, name := range res.Binds.Names() {
		for i, b := range res.Binds.Get(name) {
			tables.Binds = append(tables.Binds, BindRow{
				Target:  name,
				File:    file,
				Index:   i,
				Tree:    render(b.Tree),
				State:   bindState(opt, b.Tree, res.Constants),
				Clocked: b.Always.IsClocked(),
			})
		}
	}

	constNames := make([]string, 0, len(res.Constants))
	for name := range res.Constants {
		constNames = append(constNames, name)
	}
	sort.Strings(constNames)
	for _, name := range constNames {
		v := res.Constants[name]
		tables.Constants = append(tables.Constants, ConstantRow{
			Name:   name,
			File:   file,
			Value:  constantValue(v),
			Width:  v.Width,
			Signed: v.Signed,
			Kind:   constantKind(v),
		})
	}

	if g != nil {
		for _, e := range g.Edges() {
			tables.Dependencies = append(tables.Dependencies, DependencyRow{File: file, From: e.From, To: e.To})
		}
	}

	for _, name := range res.Binds.Names() {
		t, err := res.Terms.Get(name)
		if err != nil || !t.Type.IsConstant() {
			continue
		}
		if _, ok := res.Constants[name]; ok {
			continue
		}
		row := UnresolvedRow{Name: name, File: file}
		if g != nil {
			row.Depth = g.Depth(name)
			row.InCycle = g.InCycle(name)
		}
		b, _ := res.Binds.First(name)
		row.Reason = unresolvedReason(row, b.Tree, res.Terms, passes)
		tables.Unresolved = append(tables.Unresolved, row)
	}

	return tables
}

// Merge concatenates the relations of several tables, files sorted by
// path.
func Merge(all ...Tables) Tables {
	out := emptyTables()
	for _, t := range all {
		out.Files = append(out.Files, t.Files...)
		out.Terms = append(out.Terms, t.Terms...)
		out.Binds = append(out.Binds, t.Binds...)
		out.Constants = append(out.Constants, t.Constants...)
		out.Dependencies = append(out.Dependencies, t.Dependencies...)
		out.Unresolved = append(out.Unresolved, t.Unresolved...)
	}
	sort.SliceStable(out.Files, func(i, j int) bool { return out.Files[i].Path < out.Files[j].Path })
	return out
}

func rangeWidth(t *dataflow.Term) int {
	if t.MSB == nil && t.LSB == nil {
		return 1
	}
	m, ok1 := t.MSB.(*dataflow.EvalValue)
	l, ok2 := t.LSB.(*dataflow.EvalValue)
	if !ok1 || !ok2 {
		return 0
	}
	mi, ok1 := m.Int64()
	li, ok2 := l.Int64()
	if !ok1 || !ok2 {
		return 0
	}
	if mi < li {
		mi, li = li, mi
	}
	return int(mi - li + 1)
}

func bindState(opt *optimizer.Optimizer, tree dataflow.Node, constants map[string]*dataflow.EvalValue) string {
	folded, err := opt.Fold(tree)
	if err != nil {
		return StateSymbolic
	}
	switch folded.(type) {
	case *dataflow.EvalValue:
		return StateConstant
	case *dataflow.Undefined, *dataflow.HighImpedance:
		return StateUndefined
	}
	for _, id := range dataflow.Identifiers(tree) {
		if _, ok := constants[id]; ok {
			return StatePartial
		}
	}
	return StateSymbolic
}

func unresolvedReason(row UnresolvedRow, tree dataflow.Node, terms *dataflow.Terms, passes int) string {
	if row.InCycle {
		return "cyclic parameter reference"
	}
	if passes > 0 && row.Depth >= passes {
		return fmt.Sprintf("reference chain depth %d exceeds %d passes", row.Depth, passes)
	}
	for _, id := range dataflow.Identifiers(tree) {
		if t, err := terms.Get(id); err == nil && !t.Type.IsConstant() {
			return "depends on non-constant signal " + id
		}
	}
	return "does not fold to a literal"
}

func constantKind(v *dataflow.EvalValue) string {
	switch {
	case v.IsFloat:
		return "float"
	case v.IsString:
		return "string"
	}
	return "int"
}

func constantValue(v *dataflow.EvalValue) string {
	switch {
	case v.IsFloat, v.IsString:
		return v.String()
	case v.Int == nil:
		return "0"
	}
	return v.Int.String()
}

func render(n dataflow.Node) string {
	if n == nil {
		return ""
	}
	return n.String()
}
