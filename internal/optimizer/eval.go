package optimizer

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
)

// maxUnsizedShift bounds shifts and exponents on values without a width,
// where the result can not be reduced modulo 2^width.
const maxUnsizedShift = 1 << 16

var one = big.NewInt(1)

// evalOperator applies op to fully folded operands. The bool is false
// when op is not defined for these operand kinds; the caller then keeps
// the operator node.
func evalOperator(op dataflow.Opcode, args []*dataflow.EvalValue) (dataflow.Node, bool) {
	if len(args) == 0 {
		return nil, false
	}
	for _, a := range args {
		if a.IsString {
			return evalString(op, args)
		}
	}
	for _, a := range args {
		if a.IsFloat {
			return evalFloat(op, args)
		}
	}
	switch len(args) {
	case 1:
		return evalUnary(op, args[0])
	case 2:
		return evalBinary(op, args[0], args[1])
	}
	switch op {
	case dataflow.Plus, dataflow.Times, dataflow.And, dataflow.Or, dataflow.Xor:
	default:
		return nil, false
	}
	acc := args[0]
	for _, next := range args[1:] {
		r, ok := evalBinary(op, acc, next)
		if !ok {
			return nil, false
		}
		ev, isEval := r.(*dataflow.EvalValue)
		if !isEval {
			return r, true
		}
		acc = ev
	}
	return acc, true
}

func evalUnary(op dataflow.Opcode, a *dataflow.EvalValue) (dataflow.Node, bool) {
	x := bigOf(a)
	switch op {
	case dataflow.Uplus:
		return intResult(x, a.Width, a.Signed), true
	case dataflow.Uminus:
		return intResult(new(big.Int).Neg(x), a.Width, a.Signed), true
	case dataflow.Unot:
		return intResult(new(big.Int).Not(x), a.Width, a.Signed), true
	case dataflow.Ulnot:
		return boolResult(!a.Truth()), true
	}
	if !op.IsReduction() {
		return nil, false
	}

	u := unsigned(a)
	n := a.Width
	if n <= 0 {
		n = u.BitLen()
	}
	var r bool
	switch op {
	case dataflow.Uand, dataflow.Unand:
		all := n > 0 && u.Cmp(mask(n)) == 0
		r = all == (op == dataflow.Uand)
	case dataflow.Uor, dataflow.Unor:
		anySet := u.Sign() != 0
		r = anySet == (op == dataflow.Uor)
	case dataflow.Uxor, dataflow.Uxnor:
		odd := popcount(u)%2 == 1
		r = odd == (op == dataflow.Uxor)
	}
	return boolResult(r), true
}

func evalBinary(op dataflow.Opcode, a, b *dataflow.EvalValue) (dataflow.Node, bool) {
	signed := a.Signed && b.Signed
	width := maxInt(a.Width, b.Width)

	switch {
	case op.IsShift():
		return evalShift(op, a, b)
	case op == dataflow.Power:
		return evalPower(a, b)
	case op == dataflow.Land:
		return boolResult(a.Truth() && b.Truth()), true
	case op == dataflow.Lor:
		return boolResult(a.Truth() || b.Truth()), true
	}

	x, y := operand(a, signed), operand(b, signed)
	if op.IsComparison() {
		return boolResult(compare(op, x.Cmp(y))), true
	}

	r := new(big.Int)
	switch op {
	case dataflow.Plus:
		r.Add(x, y)
	case dataflow.Minus:
		r.Sub(x, y)
	case dataflow.Times:
		r.Mul(x, y)
	case dataflow.Divide, dataflow.Mod:
		if y.Sign() == 0 {
			return &dataflow.Undefined{Width: width}, true
		}
		if op == dataflow.Divide {
			r.Quo(x, y)
		} else {
			r.Rem(x, y)
		}
	case dataflow.And:
		r.And(x, y)
	case dataflow.Or:
		r.Or(x, y)
	case dataflow.Xor:
		r.Xor(x, y)
	case dataflow.Xnor:
		r.Not(r.Xor(x, y))
	default:
		return nil, false
	}
	return intResult(r, width, signed), true
}

// evalShift sizes the result by the left operand. The shift amount is
// always read as unsigned.
func evalShift(op dataflow.Opcode, a, b *dataflow.EvalValue) (dataflow.Node, bool) {
	width := a.Width
	amount := unsigned(b)
	limit := int64(maxUnsizedShift)
	if width > 0 {
		limit = int64(width)
	}
	if !amount.IsInt64() || amount.Int64() >= limit {
		if width <= 0 {
			return nil, false
		}
		if op == dataflow.Sra && a.Signed && bigOf(a).Sign() < 0 {
			return intResult(big.NewInt(-1), width, true), true
		}
		return intResult(new(big.Int), width, a.Signed), true
	}
	n := uint(amount.Int64())

	switch op {
	case dataflow.Sll, dataflow.Sla:
		return intResult(new(big.Int).Lsh(bigOf(a), n), width, a.Signed), true
	case dataflow.Sra:
		if a.Signed {
			return intResult(new(big.Int).Rsh(bigOf(a), n), width, true), true
		}
	}
	return intResult(new(big.Int).Rsh(unsigned(a), n), width, a.Signed), true
}

// evalPower sizes the result by the base. A negative exponent follows
// the Verilog table: 0 gives x, 1 gives 1, -1 alternates, anything else
// truncates to 0.
func evalPower(a, b *dataflow.EvalValue) (dataflow.Node, bool) {
	width := a.Width
	x := operand(a, a.Signed)
	y := operand(b, b.Signed)

	if y.Sign() < 0 {
		switch {
		case x.Sign() == 0:
			return &dataflow.Undefined{Width: width}, true
		case x.Cmp(one) == 0:
			return intResult(big.NewInt(1), width, a.Signed), true
		case x.CmpAbs(one) == 0:
			if y.Bit(0) == 1 {
				return intResult(big.NewInt(-1), width, a.Signed), true
			}
			return intResult(big.NewInt(1), width, a.Signed), true
		}
		return intResult(new(big.Int), width, a.Signed), true
	}

	var mod *big.Int
	if width > 0 {
		mod = new(big.Int).Lsh(one, uint(width))
	} else if y.BitLen() > 16 {
		return nil, false
	}
	return intResult(new(big.Int).Exp(x, y, mod), width, a.Signed), true
}

func evalFloat(op dataflow.Opcode, args []*dataflow.EvalValue) (dataflow.Node, bool) {
	width := 0
	for _, a := range args {
		width = maxInt(width, a.Width)
	}
	if len(args) == 1 {
		x := floatOf(args[0])
		switch op {
		case dataflow.Uplus:
			return dataflow.NewEvalFloat(x, width), true
		case dataflow.Uminus:
			return dataflow.NewEvalFloat(-x, width), true
		case dataflow.Ulnot:
			return boolResult(x == 0), true
		}
		return nil, false
	}
	if len(args) != 2 {
		return nil, false
	}

	x, y := floatOf(args[0]), floatOf(args[1])
	switch {
	case op.IsComparison():
		c := 0
		if x < y {
			c = -1
		} else if x > y {
			c = 1
		}
		return boolResult(compare(op, c)), true
	case op == dataflow.Land:
		return boolResult(x != 0 && y != 0), true
	case op == dataflow.Lor:
		return boolResult(x != 0 || y != 0), true
	}

	var r float64
	switch op {
	case dataflow.Plus:
		r = x + y
	case dataflow.Minus:
		r = x - y
	case dataflow.Times:
		r = x * y
	case dataflow.Divide:
		if y == 0 {
			return &dataflow.Undefined{Width: width}, true
		}
		r = x / y
	case dataflow.Power:
		r = math.Pow(x, y)
	default:
		return nil, false
	}
	return dataflow.NewEvalFloat(r, width), true
}

// evalString folds only equality between two strings.
func evalString(op dataflow.Opcode, args []*dataflow.EvalValue) (dataflow.Node, bool) {
	if len(args) != 2 || !args[0].IsString || !args[1].IsString {
		return nil, false
	}
	same := args[0].Str == args[1].Str
	switch op {
	case dataflow.Eq, dataflow.Eql:
		return boolResult(same), true
	case dataflow.NotEq, dataflow.NotEql:
		return boolResult(!same), true
	}
	return nil, false
}

// evalConcat joins integer parts most significant first. Every part
// needs a width.
func evalConcat(parts []*dataflow.EvalValue) (dataflow.Node, bool) {
	if len(parts) == 0 {
		return nil, false
	}
	acc := new(big.Int)
	width := 0
	for _, p := range parts {
		if !p.IsInt() || p.Width <= 0 {
			return nil, false
		}
		acc.Lsh(acc, uint(p.Width))
		acc.Or(acc, unsigned(p))
		width += p.Width
	}
	return &dataflow.EvalValue{Int: acc, Width: width}, true
}

// evalPartselect extracts v[msb:lsb]. Bounds are swapped when msb < lsb;
// a slice reaching outside v is unknown.
func evalPartselect(v, msb, lsb *dataflow.EvalValue) (dataflow.Node, bool) {
	if !v.IsInt() {
		return nil, false
	}
	m, ok1 := msb.Int64()
	l, ok2 := lsb.Int64()
	if !ok1 || !ok2 {
		return nil, false
	}
	if m < l {
		m, l = l, m
	}
	width := int(m - l + 1)
	if l < 0 || (v.Width > 0 && m >= int64(v.Width)) {
		return &dataflow.Undefined{Width: width}, true
	}
	r := new(big.Int).Rsh(unsigned(v), uint(l))
	r.And(r, mask(width))
	return &dataflow.EvalValue{Int: r, Width: width}, true
}

// evalPointer extracts the single bit v[index].
func evalPointer(v, index *dataflow.EvalValue) (dataflow.Node, bool) {
	if !v.IsInt() {
		return nil, false
	}
	i, ok := index.Int64()
	if !ok {
		return nil, false
	}
	if i < 0 || (v.Width > 0 && i >= int64(v.Width)) {
		return &dataflow.Undefined{Width: 1}, true
	}
	bit := unsigned(v).Bit(int(i))
	return &dataflow.EvalValue{Int: big.NewInt(int64(bit)), Width: 1}, true
}

func compare(op dataflow.Opcode, c int) bool {
	switch op {
	case dataflow.LessThan:
		return c < 0
	case dataflow.GreaterThan:
		return c > 0
	case dataflow.LessEq:
		return c <= 0
	case dataflow.GreaterEq:
		return c >= 0
	case dataflow.Eq, dataflow.Eql:
		return c == 0
	case dataflow.NotEq, dataflow.NotEql:
		return c != 0
	}
	return false
}

func intResult(v *big.Int, width int, signed bool) *dataflow.EvalValue {
	return &dataflow.EvalValue{Int: wrap(v, width, signed), Width: width, Signed: signed}
}

func boolResult(b bool) *dataflow.EvalValue {
	if b {
		return dataflow.NewEvalInt(1, 1)
	}
	return dataflow.NewEvalInt(0, 1)
}

func bigOf(v *dataflow.EvalValue) *big.Int {
	if v.Int == nil {
		return new(big.Int)
	}
	return v.Int
}

// operand reads v for an expression that is signed only when all of its
// operands are.
func operand(v *dataflow.EvalValue, signed bool) *big.Int {
	if signed {
		return bigOf(v)
	}
	return unsigned(v)
}

// unsigned is the raw bit pattern of v at its own width.
func unsigned(v *dataflow.EvalValue) *big.Int {
	x := bigOf(v)
	if v.Width <= 0 {
		return new(big.Int).Abs(x)
	}
	return wrap(x, v.Width, false)
}

func floatOf(v *dataflow.EvalValue) float64 {
	if v.IsFloat {
		return v.Float
	}
	f, _ := new(big.Float).SetInt(bigOf(v)).Float64()
	return f
}

func mask(width int) *big.Int {
	m := new(big.Int).Lsh(one, uint(width))
	return m.Sub(m, one)
}

func popcount(v *big.Int) int {
	n := 0
	for _, w := range v.Bits() {
		n += bits.OnesCount(uint(w))
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
