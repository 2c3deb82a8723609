// Package depgraph records which parameters reference which, to explain
// why a parameter stayed symbolic after resolution.
package depgraph

import (
	"sort"

	"github.com/twmb/algoimpl/go/graph"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
)

// Edge says parameter From reads parameter To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Graph struct {
	g     *graph.Graph
	nodes map[string]graph.Node
	names []string
	edges []Edge
	succ  map[string][]string
	scc   map[string]int
	depth map[string]int
	loops [][]string
}

// Build links every parameter or localparam to the parameters its first
// bind references. Non-parameter terms are not part of the graph.
func Build(terms *dataflow.Terms, binds *dataflow.Binddict) *Graph {
	d := &Graph{
		g:     graph.New(graph.Directed),
		nodes: make(map[string]graph.Node),
		succ:  make(map[string][]string),
		scc:   make(map[string]int),
		depth: make(map[string]int),
	}
	isParam := func(name string) bool {
		t, err := terms.Get(name)
		return err == nil && t.Type.IsConstant()
	}
	for _, name := range binds.Names() {
		if !isParam(name) {
			continue
		}
		d.node(name)
		b, _ := binds.First(name)
		for _, ref := range dataflow.Identifiers(b.Tree) {
			if !isParam(ref) {
				continue
			}
			d.node(ref)
			// MakeEdge only fails for nodes that are not in the graph
			_ = d.g.MakeEdge(d.nodes[name], d.nodes[ref])
			d.edges = append(d.edges, Edge{From: name, To: ref})
			d.succ[name] = append(d.succ[name], ref)
		}
	}
	d.components()
	for _, name := range d.names {
		d.chain(name)
	}
	return d
}

func (d *Graph) node(name string) {
	if _, ok := d.nodes[name]; ok {
		return
	}
	n := d.g.MakeNode()
	*n.Value = name
	d.nodes[name] = n
	d.names = append(d.names, name)
}

func (d *Graph) components() {
	for i, comp := range d.g.StronglyConnectedComponents() {
		var members []string
		for _, n := range comp {
			name := (*n.Value).(string)
			d.scc[name] = i
			members = append(members, name)
		}
		if len(members) > 1 || d.selfLoop(members[0]) {
			sort.Strings(members)
			d.loops = append(d.loops, members)
		}
	}
	sort.Slice(d.loops, func(i, j int) bool {
		return d.loops[i][0] < d.loops[j][0]
	})
}

func (d *Graph) selfLoop(name string) bool {
	for _, s := range d.succ[name] {
		if s == name {
			return true
		}
	}
	return false
}

// chain is the longest reference path from name, ignoring edges that
// stay inside name's strongly connected component.
func (d *Graph) chain(name string) int {
	if v, ok := d.depth[name]; ok {
		return v
	}
	best := 0
	for _, s := range d.succ[name] {
		if d.scc[s] == d.scc[name] {
			continue
		}
		if c := d.chain(s) + 1; c > best {
			best = c
		}
	}
	d.depth[name] = best
	return best
}

// Depth is the length of the longest chain of parameter references
// starting at name. A parameter with literal operands has depth 0.
func (d *Graph) Depth(name string) int {
	return d.depth[name]
}

// Cycles lists groups of parameters that reference each other, each
// sorted by name.
func (d *Graph) Cycles() [][]string {
	out := make([][]string, len(d.loops))
	for i, l := range d.loops {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// InCycle reports whether name is part of a reference cycle.
func (d *Graph) InCycle(name string) bool {
	for _, l := range d.loops {
		for _, m := range l {
			if m == name {
				return true
			}
		}
	}
	return false
}

func (d *Graph) Edges() []Edge {
	return append([]Edge(nil), d.edges...)
}

// Names returns the parameters in the graph in first-seen order.
func (d *Graph) Names() []string {
	return append([]string(nil), d.names...)
}
