package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/depgraph"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/resolver"
)

func buildChain(t *testing.T) (*dataflow.Terms, *dataflow.Binddict) {
	t.Helper()
	terms := dataflow.NewTerms()
	binds := dataflow.NewBinddict()
	add := func(term *dataflow.Term) {
		if err := terms.Add(term); err != nil {
			t.Fatalf("add term: %v", err)
		}
	}
	plusOne := func(name string) dataflow.Node {
		return &dataflow.Operator{Op: dataflow.Plus, Operands: []dataflow.Node{
			&dataflow.Terminal{Name: name}, &dataflow.IntConst{Value: "1"},
		}}
	}

	add(&dataflow.Term{Name: "A", Type: dataflow.Parameter})
	add(&dataflow.Term{Name: "B", Type: dataflow.Parameter})
	add(&dataflow.Term{Name: "C", Type: dataflow.Parameter})
	add(&dataflow.Term{Name: "din", Type: dataflow.Input | dataflow.Wire})
	add(&dataflow.Term{Name: "q", Type: dataflow.Reg,
		MSB: &dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{&dataflow.Terminal{Name: "B"}, &dataflow.IntConst{Value: "1"}}},
		LSB: &dataflow.IntConst{Value: "0"}})
	add(&dataflow.Term{Name: "y", Type: dataflow.Wire})

	binds.Add(&dataflow.Bind{Target: "A", Tree: &dataflow.IntConst{Value: "1"}})
	binds.Add(&dataflow.Bind{Target: "B", Tree: plusOne("A")})
	binds.Add(&dataflow.Bind{Target: "C", Tree: plusOne("B")})
	binds.Add(&dataflow.Bind{Target: "q", Tree: &dataflow.Terminal{Name: "din"},
		Always: &dataflow.AlwaysInfo{Clock: "clk", ClockEdge: "posedge"}})
	binds.Add(&dataflow.Bind{Target: "y", Tree: &dataflow.Operator{Op: dataflow.And, Operands: []dataflow.Node{
		&dataflow.Terminal{Name: "din"}, &dataflow.Terminal{Name: "A"},
	}}})
	binds.Add(&dataflow.Bind{Target: "y", Tree: &dataflow.IntConst{Value: "1'bx"}})
	return terms, binds
}

func TestBuildTablesPopulatesRelations(t *testing.T) {
	terms, binds := buildChain(t)
	res, err := resolver.New(terms, binds).Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	tables := BuildTables("chain.dataflow.json", res, depgraph.Build(terms, binds), resolver.Passes)

	if len(tables.Files) != 1 || tables.Files[0].Binds != 6 {
		t.Fatalf("expected one file row with 6 binds, got %+v", tables.Files)
	}
	if len(tables.Terms) != 6 {
		t.Fatalf("expected 6 term rows, got %d", len(tables.Terms))
	}
	q := tables.Terms[4]
	if q.Name != "q" || q.Width != 2 || !q.Resolved || q.MSB != "32'sd1" {
		t.Fatalf("unexpected q row %+v", q)
	}
	if len(tables.Constants) != 2 || tables.Constants[0].Name != "A" || tables.Constants[1].Value != "2" {
		t.Fatalf("expected A and B constants, got %+v", tables.Constants)
	}
	if tables.Constants[0].Kind != "int" {
		t.Fatalf("expected int kind, got %q", tables.Constants[0].Kind)
	}
	if len(tables.Dependencies) != 2 {
		t.Fatalf("expected 2 dependency rows, got %+v", tables.Dependencies)
	}

	if len(tables.Unresolved) != 1 {
		t.Fatalf("expected only C unresolved, got %+v", tables.Unresolved)
	}
	c := tables.Unresolved[0]
	if c.Name != "C" || c.Depth != 2 || c.Reason != "reference chain depth 2 exceeds 2 passes" {
		t.Fatalf("unexpected unresolved row %+v", c)
	}

	states := make(map[string]string)
	for _, b := range tables.Binds {
		states[b.Target+"#"+itoa(b.Index)] = b.State
	}
	want := map[string]string{
		"A#0": StateConstant,
		"B#0": StateConstant,
		"C#0": StateConstant,
		"q#0": StateSymbolic,
		"y#0": StatePartial,
		"y#1": StateUndefined,
	}
	for k, v := range want {
		if states[k] != v {
			t.Fatalf("bind %s: expected %s, got %s", k, v, states[k])
		}
	}
	if !tables.Binds[3].Clocked {
		t.Fatalf("expected q bind to be clocked")
	}
}

func TestMergeSortsFiles(t *testing.T) {
	a := Tables{Files: []FileRow{{Path: "b.json"}}, Terms: []TermRow{{Name: "x", File: "b.json"}}}
	b := Tables{Files: []FileRow{{Path: "a.json"}}, Terms: []TermRow{{Name: "y", File: "a.json"}}}

	merged := Merge(a, b)
	if len(merged.Files) != 2 || merged.Files[0].Path != "a.json" {
		t.Fatalf("expected files sorted by path, got %+v", merged.Files)
	}
	if len(merged.Terms) != 2 || merged.Binds == nil {
		t.Fatalf("expected merged terms and non-nil empty relations, got %+v", merged)
	}
}

func itoa(v int) string {
	return intKey(v)
}
