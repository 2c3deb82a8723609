package dataflow

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Opcode identifies the operation applied by an Operator or UnaryOperator.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// unary
	Uplus
	Uminus
	Ulnot
	Unot
	Uand
	Unand
	Uor
	Unor
	Uxor
	Uxnor

	// binary
	Power
	Times
	Divide
	Mod
	Plus
	Minus
	Sll
	Srl
	Sla
	Sra
	LessThan
	GreaterThan
	LessEq
	GreaterEq
	Eq
	NotEq
	Eql
	NotEql
	And
	Xor
	Xnor
	Or
	Land
	Lor
)

type opcodeInfo struct {
	name   string
	symbol string
}

var opcodeTable = [...]opcodeInfo{
	OpInvalid:   {"Invalid", "?"},
	Uplus:       {"Uplus", "+"},
	Uminus:      {"Uminus", "-"},
	Ulnot:       {"Ulnot", "!"},
	Unot:        {"Unot", "~"},
	Uand:        {"Uand", "&"},
	Unand:       {"Unand", "~&"},
	Uor:         {"Uor", "|"},
	Unor:        {"Unor", "~|"},
	Uxor:        {"Uxor", "^"},
	Uxnor:       {"Uxnor", "~^"},
	Power:       {"Power", "**"},
	Times:       {"Times", "*"},
	Divide:      {"Divide", "/"},
	Mod:         {"Mod", "%"},
	Plus:        {"Plus", "+"},
	Minus:       {"Minus", "-"},
	Sll:         {"Sll", "<<"},
	Srl:         {"Srl", ">>"},
	Sla:         {"Sla", "<<<"},
	Sra:         {"Sra", ">>>"},
	LessThan:    {"LessThan", "<"},
	GreaterThan: {"GreaterThan", ">"},
	LessEq:      {"LessEq", "<="},
	GreaterEq:   {"GreaterEq", ">="},
	Eq:          {"Eq", "=="},
	NotEq:       {"NotEq", "!="},
	Eql:         {"Eql", "==="},
	NotEql:      {"NotEql", "!=="},
	And:         {"And", "&"},
	Xor:         {"Xor", "^"},
	Xnor:        {"Xnor", "~^"},
	Or:          {"Or", "|"},
	Land:        {"Land", "&&"},
	Lor:         {"Lor", "||"},
}

// opcodeAliases maps alternate spellings seen in older dataflow dumps.
// "LassEq" is a historical misspelling of LessEq; it is accepted on input
// and never produced.
var opcodeAliases = map[string]Opcode{
	"LassEq": LessEq,
}

func (op Opcode) String() string {
	if int(op) < len(opcodeTable) {
		return opcodeTable[op].name
	}
	return "Invalid"
}

// Symbol returns the Verilog operator token.
func (op Opcode) Symbol() string {
	if int(op) < len(opcodeTable) {
		return opcodeTable[op].symbol
	}
	return "?"
}

func (op Opcode) IsUnary() bool {
	return op >= Uplus && op <= Uxnor
}

// IsComparison covers the relational and (case-)equality operators.
func (op Opcode) IsComparison() bool {
	return op >= LessThan && op <= NotEql
}

func (op Opcode) IsLogical() bool {
	return op == Land || op == Lor || op == Ulnot
}

// IsReduction covers the unary reduction operators (&x, ~|x, ^x, ...).
func (op Opcode) IsReduction() bool {
	return op >= Uand && op <= Uxnor
}

func (op Opcode) IsShift() bool {
	return op >= Sll && op <= Sra
}

// ParseOpcode resolves an opcode name, including known aliases.
func ParseOpcode(name string) (Opcode, error) {
	for i := Uplus; int(i) < len(opcodeTable); i++ {
		if opcodeTable[i].name == name {
			return i, nil
		}
	}
	if op, ok := opcodeAliases[name]; ok {
		return op, nil
	}
	return OpInvalid, errors.Errorf("unknown operator %q", name)
}

func (op Opcode) MarshalJSON() ([]byte, error) {
	return json.Marshal(op.String())
}

func (op *Opcode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.Wrap(err, "operator")
	}
	parsed, err := ParseOpcode(name)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
