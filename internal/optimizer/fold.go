package optimizer

import (
	"github.com/pkg/errors"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
)

// Fold reduces tree bottom-up against the current constant map. Nodes
// already in normal form come back as they are; every other result is
// newly allocated and the input is left untouched. A nil tree folds to
// nil so optional branch arms pass through.
func (o *Optimizer) Fold(tree dataflow.Node) (dataflow.Node, error) {
	switch n := tree.(type) {
	case nil:
		return nil, nil
	case *dataflow.EvalValue, *dataflow.Undefined, *dataflow.HighImpedance:
		return tree, nil
	case *dataflow.Delay:
		return nil, unsupported(n)
	case *dataflow.IntConst:
		return o.foldIntConst(n)
	case *dataflow.FloatConst:
		return o.foldFloatConst(n)
	case *dataflow.StringConst:
		return dataflow.NewEvalString(n.Value), nil
	case *dataflow.Terminal:
		return o.foldTerminal(n)
	case *dataflow.Operator:
		return o.foldOperator(n)
	case *dataflow.UnaryOperator:
		return o.foldUnary(n)
	case *dataflow.Concat:
		return o.foldConcat(n)
	case *dataflow.Partselect:
		return o.foldPartselect(n)
	case *dataflow.Pointer:
		return o.foldPointer(n)
	case *dataflow.Branch:
		return o.foldBranch(n)
	case *dataflow.Syscall:
		return o.foldSyscall(n)
	}
	return nil, unsupported(tree)
}

func unsupported(n dataflow.Node) error {
	return &dataflow.UnsupportedNodeError{Kind: n.Kind(), Node: n.String()}
}

func (o *Optimizer) foldIntConst(n *dataflow.IntConst) (dataflow.Node, error) {
	lit, err := parseIntLiteral(n.Value, o.defaultWidth)
	if err != nil {
		return nil, err
	}
	if lit.unknown {
		return &dataflow.Undefined{Width: lit.width}, nil
	}
	return &dataflow.EvalValue{Int: lit.value, Width: lit.width, Signed: lit.signed}, nil
}

func (o *Optimizer) foldFloatConst(n *dataflow.FloatConst) (dataflow.Node, error) {
	f, err := parseFloatLiteral(n.Value)
	if err != nil {
		return nil, err
	}
	return dataflow.NewEvalFloat(f, o.defaultWidth), nil
}

// foldTerminal substitutes a known constant. The value is kept as it is;
// only the width is taken from the referenced term's range when that range
// folds, else from the constant.
func (o *Optimizer) foldTerminal(n *dataflow.Terminal) (dataflow.Node, error) {
	c, ok := o.constants[n.Name]
	if !ok {
		return n, nil
	}
	if !c.IsInt() {
		return c, nil
	}
	term, err := o.Term(n.Name)
	if err != nil {
		return nil, err
	}
	width := c.Width
	if term.MSB != nil && term.LSB != nil && !o.sizing[n.Name] {
		o.sizing[n.Name] = true
		w, err := o.rangeWidth(term.MSB, term.LSB)
		delete(o.sizing, n.Name)
		if err != nil {
			return nil, err
		}
		if w > 0 {
			width = w
		}
	}
	return &dataflow.EvalValue{Int: c.Int, Width: width, Signed: c.Signed}, nil
}

// rangeWidth is |msb - lsb| + 1 when both bounds fold to integers, else 0.
// Ascending ranges such as [0:7] therefore count the same bits as [7:0]
// rather than giving a negative width.
func (o *Optimizer) rangeWidth(msb, lsb dataflow.Node) (int, error) {
	m, err := o.Fold(msb)
	if err != nil {
		return 0, err
	}
	l, err := o.Fold(lsb)
	if err != nil {
		return 0, err
	}
	mv, ok1 := m.(*dataflow.EvalValue)
	lv, ok2 := l.(*dataflow.EvalValue)
	if !ok1 || !ok2 {
		return 0, nil
	}
	mi, ok1 := mv.Int64()
	li, ok2 := lv.Int64()
	if !ok1 || !ok2 {
		return 0, nil
	}
	d := mi - li
	if d < 0 {
		d = -d
	}
	return int(d + 1), nil
}

func (o *Optimizer) foldOperator(n *dataflow.Operator) (dataflow.Node, error) {
	operands, values, err := o.foldAll(n.Operands)
	if err != nil {
		return nil, err
	}
	var out dataflow.Node = &dataflow.Operator{Op: n.Op, Operands: operands}
	if values != nil {
		if r, ok := evalOperator(n.Op, values); ok {
			out = r
		}
	}
	o.observe(dataflow.KindOperator, out)
	return out, nil
}

func (o *Optimizer) foldUnary(n *dataflow.UnaryOperator) (dataflow.Node, error) {
	operand, err := o.Fold(n.Operand)
	if err != nil {
		return nil, err
	}
	var out dataflow.Node = &dataflow.UnaryOperator{Op: n.Op, Operand: operand}
	if v, ok := operand.(*dataflow.EvalValue); ok {
		if r, ok := evalOperator(n.Op, []*dataflow.EvalValue{v}); ok {
			out = r
		}
	}
	o.observe(dataflow.KindUnaryOperator, out)
	return out, nil
}

func (o *Optimizer) foldConcat(n *dataflow.Concat) (dataflow.Node, error) {
	parts, values, err := o.foldAll(n.Parts)
	if err != nil {
		return nil, err
	}
	var out dataflow.Node = &dataflow.Concat{Parts: parts}
	if values != nil {
		if r, ok := evalConcat(values); ok {
			out = r
		}
	}
	o.observe(dataflow.KindConcat, out)
	return out, nil
}

func (o *Optimizer) foldPartselect(n *dataflow.Partselect) (dataflow.Node, error) {
	folded, values, err := o.foldAll([]dataflow.Node{n.Var, n.MSB, n.LSB})
	if err != nil {
		return nil, err
	}
	var out dataflow.Node = &dataflow.Partselect{Var: folded[0], MSB: folded[1], LSB: folded[2]}
	if values != nil {
		if r, ok := evalPartselect(values[0], values[1], values[2]); ok {
			out = r
		}
	}
	o.observe(dataflow.KindPartselect, out)
	return out, nil
}

// foldPointer never folds an element of an array term; only bit selects
// of scalars reduce.
func (o *Optimizer) foldPointer(n *dataflow.Pointer) (dataflow.Node, error) {
	base, ok := n.Var.(*dataflow.Terminal)
	if !ok {
		return n, nil
	}
	term, err := o.Term(base.Name)
	if err != nil {
		return nil, err
	}
	folded, values, err := o.foldAll([]dataflow.Node{n.Var, n.Index})
	if err != nil {
		return nil, err
	}
	var out dataflow.Node = &dataflow.Pointer{Var: folded[0], Index: folded[1]}
	if !term.IsArray() && values != nil {
		if r, ok := evalPointer(values[0], values[1]); ok {
			out = r
		}
	}
	o.observe(dataflow.KindPointer, out)
	return out, nil
}

// foldBranch prunes the arm a constant condition does not select.
func (o *Optimizer) foldBranch(n *dataflow.Branch) (dataflow.Node, error) {
	cond, err := o.Fold(n.Cond)
	if err != nil {
		return nil, err
	}
	t, err := o.Fold(n.True)
	if err != nil {
		return nil, err
	}
	f, err := o.Fold(n.False)
	if err != nil {
		return nil, err
	}
	var out dataflow.Node = &dataflow.Branch{Cond: cond, True: t, False: f}
	if v, ok := cond.(*dataflow.EvalValue); ok {
		if v.Truth() {
			out = t
		} else {
			out = f
		}
	}
	o.observe(dataflow.KindBranch, out)
	return out, nil
}

func (o *Optimizer) foldSyscall(n *dataflow.Syscall) (dataflow.Node, error) {
	args, _, err := o.foldAll(n.Args)
	if err != nil {
		return nil, errors.Wrapf(err, "$%s", n.Name)
	}
	out := &dataflow.Syscall{Name: n.Name, Args: args}
	o.observe(dataflow.KindSyscall, out)
	return out, nil
}

// foldAll folds every node. values is non-nil only when all of them
// folded to EvalValue.
func (o *Optimizer) foldAll(nodes []dataflow.Node) ([]dataflow.Node, []*dataflow.EvalValue, error) {
	folded := make([]dataflow.Node, len(nodes))
	values := make([]*dataflow.EvalValue, len(nodes))
	allConst := true
	for i, n := range nodes {
		r, err := o.Fold(n)
		if err != nil {
			return nil, nil, err
		}
		folded[i] = r
		if v, ok := r.(*dataflow.EvalValue); ok {
			values[i] = v
		} else {
			allConst = false
		}
	}
	if !allConst {
		values = nil
	}
	return folded, values, nil
}
