package dataflow

import (
	"math/big"
)

// NodeKind names an expression node variant.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	KindTerminal
	KindIntConst
	KindFloatConst
	KindStringConst
	KindEvalValue
	KindUndefined
	KindHighImpedance
	KindOperator
	KindUnaryOperator
	KindConcat
	KindPartselect
	KindPointer
	KindBranch
	KindSyscall
	KindDelay
)

var nodeKindNames = [...]string{
	KindInvalid:       "Invalid",
	KindTerminal:      "Terminal",
	KindIntConst:      "IntConst",
	KindFloatConst:    "FloatConst",
	KindStringConst:   "StringConst",
	KindEvalValue:     "EvalValue",
	KindUndefined:     "Undefined",
	KindHighImpedance: "HighImpedance",
	KindOperator:      "Operator",
	KindUnaryOperator: "UnaryOperator",
	KindConcat:        "Concat",
	KindPartselect:    "Partselect",
	KindPointer:       "Pointer",
	KindBranch:        "Branch",
	KindSyscall:       "Syscall",
	KindDelay:         "Delay",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "Invalid"
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(name string) (NodeKind, bool) {
	for i := KindTerminal; int(i) < len(nodeKindNames); i++ {
		if nodeKindNames[i] == name {
			return i, true
		}
	}
	return KindInvalid, false
}

// Node is an expression tree node. The variant set is closed: only the
// types in this package implement it. Nodes are immutable once built;
// rewriting a tree always allocates new parents and shares untouched
// children.
type Node interface {
	Kind() NodeKind
	String() string
	node()
}

// Terminal references a declared signal by its scoped name.
type Terminal struct {
	Name string
}

// IntConst is an unevaluated integer literal such as 8'hff or 42.
type IntConst struct {
	Value string
}

// FloatConst is an unevaluated real literal.
type FloatConst struct {
	Value string
}

// StringConst is an unevaluated string literal, without quotes.
type StringConst struct {
	Value string
}

// EvalValue is a fully folded literal. Exactly one of Int, Float or Str
// carries the value, selected by IsFloat / IsString. Width 0 means the
// value has no bit width (strings).
type EvalValue struct {
	Int      *big.Int
	Float    float64
	Str      string
	Width    int
	Signed   bool
	IsFloat  bool
	IsString bool
}

// Undefined is a whole-value unknown ('x').
type Undefined struct {
	Width int
}

// HighImpedance is a whole-value high impedance ('z').
type HighImpedance struct {
	Width int
}

// Operator applies an n-ary operation to its operands, in order.
type Operator struct {
	Op       Opcode
	Operands []Node
}

type UnaryOperator struct {
	Op      Opcode
	Operand Node
}

// Concat is a bit concatenation; Parts[0] is the most significant.
type Concat struct {
	Parts []Node
}

// Partselect extracts Var[MSB:LSB].
type Partselect struct {
	Var Node
	MSB Node
	LSB Node
}

// Pointer selects a single bit, or an array element when Var names an
// array.
type Pointer struct {
	Var   Node
	Index Node
}

// Branch is the ternary Cond ? True : False.
type Branch struct {
	Cond  Node
	True  Node
	False Node
}

// Syscall is an opaque system function call such as $clog2(x).
type Syscall struct {
	Name string
	Args []Node
}

// Delay wraps a delay expression. It has no static value.
type Delay struct {
	Tree Node
}

func (*Terminal) Kind() NodeKind      { return KindTerminal }
func (*IntConst) Kind() NodeKind      { return KindIntConst }
func (*FloatConst) Kind() NodeKind    { return KindFloatConst }
func (*StringConst) Kind() NodeKind   { return KindStringConst }
func (*EvalValue) Kind() NodeKind     { return KindEvalValue }
func (*Undefined) Kind() NodeKind     { return KindUndefined }
func (*HighImpedance) Kind() NodeKind { return KindHighImpedance }
func (*Operator) Kind() NodeKind      { return KindOperator }
func (*UnaryOperator) Kind() NodeKind { return KindUnaryOperator }
func (*Concat) Kind() NodeKind        { return KindConcat }
func (*Partselect) Kind() NodeKind    { return KindPartselect }
func (*Pointer) Kind() NodeKind       { return KindPointer }
func (*Branch) Kind() NodeKind        { return KindBranch }
func (*Syscall) Kind() NodeKind       { return KindSyscall }
func (*Delay) Kind() NodeKind         { return KindDelay }

func (*Terminal) node()      {}
func (*IntConst) node()      {}
func (*FloatConst) node()    {}
func (*StringConst) node()   {}
func (*EvalValue) node()     {}
func (*Undefined) node()     {}
func (*HighImpedance) node() {}
func (*Operator) node()      {}
func (*UnaryOperator) node() {}
func (*Concat) node()        {}
func (*Partselect) node()    {}
func (*Pointer) node()       {}
func (*Branch) node()        {}
func (*Syscall) node()       {}
func (*Delay) node()         {}

// NewEvalInt returns an integer EvalValue.
func NewEvalInt(v int64, width int) *EvalValue {
	return &EvalValue{Int: big.NewInt(v), Width: width}
}

// NewEvalBig returns an integer EvalValue holding a copy of v.
func NewEvalBig(v *big.Int, width int, signed bool) *EvalValue {
	return &EvalValue{Int: new(big.Int).Set(v), Width: width, Signed: signed}
}

func NewEvalFloat(v float64, width int) *EvalValue {
	return &EvalValue{Float: v, Width: width, IsFloat: true}
}

func NewEvalString(s string) *EvalValue {
	return &EvalValue{Str: s, IsString: true}
}

// IsInt reports whether the value is an integer.
func (v *EvalValue) IsInt() bool {
	return !v.IsFloat && !v.IsString
}

// Truth reports whether the value is non-zero. Strings are true when
// non-empty.
func (v *EvalValue) Truth() bool {
	switch {
	case v.IsFloat:
		return v.Float != 0
	case v.IsString:
		return v.Str != ""
	case v.Int == nil:
		return false
	default:
		return v.Int.Sign() != 0
	}
}

// Int64 returns the integer value and whether it fits in an int64.
func (v *EvalValue) Int64() (int64, bool) {
	if !v.IsInt() || v.Int == nil || !v.Int.IsInt64() {
		return 0, false
	}
	return v.Int.Int64(), true
}

// WithWidth returns a copy of v carrying a different width.
func (v *EvalValue) WithWidth(width int) *EvalValue {
	c := *v
	c.Width = width
	return &c
}
