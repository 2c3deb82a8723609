package optimizer

import "github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"

// NormalizeHierarchy rewrites Terminals whose scoped name is not in the
// term table but whose normalized form is. Other nodes are shared with
// the input.
func (o *Optimizer) NormalizeHierarchy(tree dataflow.Node) dataflow.Node {
	return dataflow.Rewrite(tree, func(n dataflow.Node) dataflow.Node {
		t, ok := n.(*dataflow.Terminal)
		if !ok || o.terms.Has(t.Name) {
			return n
		}
		norm := dataflow.NormalizeScope(t.Name)
		if norm == t.Name || !o.terms.Has(norm) {
			return n
		}
		o.log.WithField("name", t.Name).WithField("normalized", norm).Debug("normalized terminal scope")
		return &dataflow.Terminal{Name: norm}
	})
}
