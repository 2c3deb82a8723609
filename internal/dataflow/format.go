package dataflow

import (
	"strconv"
	"strings"
)

func (n *Terminal) String() string    { return n.Name }
func (n *IntConst) String() string    { return n.Value }
func (n *FloatConst) String() string  { return n.Value }
func (n *StringConst) String() string { return strconv.Quote(n.Value) }

func (n *EvalValue) String() string {
	switch {
	case n.IsString:
		return strconv.Quote(n.Str)
	case n.IsFloat:
		return strconv.FormatFloat(n.Float, 'g', -1, 64)
	case n.Int == nil:
		return "0"
	}
	if n.Width == 0 {
		return n.Int.String()
	}
	base := "'d"
	if n.Signed {
		base = "'sd"
	}
	if n.Int.Sign() < 0 {
		abs := n.Int.String()[1:]
		return "-" + strconv.Itoa(n.Width) + base + abs
	}
	return strconv.Itoa(n.Width) + base + n.Int.String()
}

func (n *Undefined) String() string     { return sizedDigit(n.Width, 'x') }
func (n *HighImpedance) String() string { return sizedDigit(n.Width, 'z') }

func sizedDigit(width int, digit byte) string {
	if width <= 0 {
		return "'b" + string(digit)
	}
	return strconv.Itoa(width) + "'b" + string(digit)
}

func (n *Operator) String() string {
	if len(n.Operands) == 1 {
		return "(" + n.Op.Symbol() + n.Operands[0].String() + ")"
	}
	parts := make([]string, len(n.Operands))
	for i, o := range n.Operands {
		parts[i] = nodeString(o)
	}
	return "(" + strings.Join(parts, " "+n.Op.Symbol()+" ") + ")"
}

func (n *UnaryOperator) String() string {
	return "(" + n.Op.Symbol() + nodeString(n.Operand) + ")"
}

func (n *Concat) String() string {
	return "{" + joinNodes(n.Parts) + "}"
}

func (n *Partselect) String() string {
	return nodeString(n.Var) + "[" + nodeString(n.MSB) + ":" + nodeString(n.LSB) + "]"
}

func (n *Pointer) String() string {
	return nodeString(n.Var) + "[" + nodeString(n.Index) + "]"
}

func (n *Branch) String() string {
	return "(" + nodeString(n.Cond) + " ? " + nodeString(n.True) + " : " + nodeString(n.False) + ")"
}

func (n *Syscall) String() string {
	return "$" + n.Name + "(" + joinNodes(n.Args) + ")"
}

func (n *Delay) String() string {
	return "#(" + nodeString(n.Tree) + ")"
}

func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = nodeString(n)
	}
	return strings.Join(parts, ", ")
}

// Tree renders n as an indented tree, one node per line, for debugging
// dumps.
func Tree(n Node) string {
	var b strings.Builder
	writeTree(&b, n, 0)
	return b.String()
}

func writeTree(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if n == nil {
		b.WriteString("<nil>\n")
		return
	}
	b.WriteString(n.Kind().String())
	switch v := n.(type) {
	case *Operator:
		b.WriteString(" " + v.Op.String() + "\n")
	case *UnaryOperator:
		b.WriteString(" " + v.Op.String() + "\n")
	case *Syscall:
		b.WriteString(" $" + v.Name + "\n")
	case *Concat, *Partselect, *Pointer, *Branch, *Delay:
		b.WriteString("\n")
	default:
		b.WriteString(": " + n.String() + "\n")
	}
	for _, c := range Children(n) {
		writeTree(b, c, depth+1)
	}
}
