package dataflow

import "math/big"

// Children returns the direct sub-nodes of n in evaluation order.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Operator:
		return v.Operands
	case *UnaryOperator:
		return []Node{v.Operand}
	case *Concat:
		return v.Parts
	case *Partselect:
		return []Node{v.Var, v.MSB, v.LSB}
	case *Pointer:
		return []Node{v.Var, v.Index}
	case *Branch:
		return []Node{v.Cond, v.True, v.False}
	case *Syscall:
		return v.Args
	case *Delay:
		return []Node{v.Tree}
	}
	return nil
}

// Walk visits n and its descendants depth-first, parents before
// children. Returning false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// Identifiers returns the Terminal names referenced by n, in first-seen
// order without duplicates.
func Identifiers(n Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(n, func(x Node) bool {
		if t, ok := x.(*Terminal); ok && !seen[t.Name] {
			seen[t.Name] = true
			names = append(names, t.Name)
		}
		return true
	})
	return names
}

// IsNormal reports whether n is a leaf that folding leaves unchanged.
func IsNormal(n Node) bool {
	switch n.(type) {
	case *EvalValue, *Undefined, *HighImpedance:
		return true
	}
	return false
}

// Equal reports whether a and b are structurally identical trees.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *Terminal:
		return x.Name == b.(*Terminal).Name
	case *IntConst:
		return x.Value == b.(*IntConst).Value
	case *FloatConst:
		return x.Value == b.(*FloatConst).Value
	case *StringConst:
		return x.Value == b.(*StringConst).Value
	case *EvalValue:
		return equalEval(x, b.(*EvalValue))
	case *Undefined:
		return x.Width == b.(*Undefined).Width
	case *HighImpedance:
		return x.Width == b.(*HighImpedance).Width
	case *Operator:
		y := b.(*Operator)
		return x.Op == y.Op && equalNodes(x.Operands, y.Operands)
	case *UnaryOperator:
		y := b.(*UnaryOperator)
		return x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *Syscall:
		y := b.(*Syscall)
		return x.Name == y.Name && equalNodes(x.Args, y.Args)
	}
	return equalNodes(Children(a), Children(b))
}

func equalNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalEval(a, b *EvalValue) bool {
	if a.Width != b.Width || a.Signed != b.Signed || a.IsFloat != b.IsFloat || a.IsString != b.IsString {
		return false
	}
	switch {
	case a.IsFloat:
		return a.Float == b.Float
	case a.IsString:
		return a.Str == b.Str
	}
	return bigOrZero(a.Int).Cmp(bigOrZero(b.Int)) == 0
}

var zero = new(big.Int)

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return zero
	}
	return v
}
