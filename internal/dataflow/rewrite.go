package dataflow

// WithChildren returns a copy of n with its children replaced, in the
// order Children reports them. Leaves are returned as they are.
func WithChildren(n Node, children []Node) Node {
	switch v := n.(type) {
	case *Operator:
		return &Operator{Op: v.Op, Operands: children}
	case *UnaryOperator:
		return &UnaryOperator{Op: v.Op, Operand: children[0]}
	case *Concat:
		return &Concat{Parts: children}
	case *Partselect:
		return &Partselect{Var: children[0], MSB: children[1], LSB: children[2]}
	case *Pointer:
		return &Pointer{Var: children[0], Index: children[1]}
	case *Branch:
		return &Branch{Cond: children[0], True: children[1], False: children[2]}
	case *Syscall:
		return &Syscall{Name: v.Name, Args: children}
	case *Delay:
		return &Delay{Tree: children[0]}
	}
	return n
}

// Rewrite applies fn bottom-up. Parents are reallocated only when one of
// their children changed, so untouched subtrees stay shared with n.
func Rewrite(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}
	kids := Children(n)
	if len(kids) > 0 {
		var next []Node
		for i, c := range kids {
			r := Rewrite(c, fn)
			if r != c && next == nil {
				next = append(make([]Node, 0, len(kids)), kids[:i]...)
			}
			if next != nil {
				next = append(next, r)
			}
		}
		if next != nil {
			n = WithChildren(n, next)
		}
	}
	return fn(n)
}
