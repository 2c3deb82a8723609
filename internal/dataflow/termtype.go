package dataflow

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// TermType is a set of declaration flags. Verilog declarations combine,
// so a port is usually Input|Wire rather than a single tag.
type TermType uint16

const (
	Input TermType = 1 << iota
	Output
	Inout
	Wire
	Reg
	Tri
	Integer
	Real
	Parameter
	Localparam
	Genvar
	Function
	Task
)

var termTypeNames = []struct {
	flag TermType
	name string
}{
	{Input, "Input"},
	{Output, "Output"},
	{Inout, "Inout"},
	{Wire, "Wire"},
	{Reg, "Reg"},
	{Tri, "Tri"},
	{Integer, "Integer"},
	{Real, "Real"},
	{Parameter, "Parameter"},
	{Localparam, "Localparam"},
	{Genvar, "Genvar"},
	{Function, "Function"},
	{Task, "Task"},
}

// Has reports whether every flag in f is set.
func (t TermType) Has(f TermType) bool {
	return f != 0 && t&f == f
}

func (t TermType) IsParameter() bool  { return t.Has(Parameter) }
func (t TermType) IsLocalparam() bool { return t.Has(Localparam) }

// IsConstant reports whether the term is a parameter or localparam.
func (t TermType) IsConstant() bool {
	return t.Has(Parameter) || t.Has(Localparam)
}

func (t TermType) IsPort() bool {
	return t&(Input|Output|Inout) != 0
}

// Names returns the flag names in declaration order.
func (t TermType) Names() []string {
	names := make([]string, 0, 2)
	for _, tn := range termTypeNames {
		if t&tn.flag != 0 {
			names = append(names, tn.name)
		}
	}
	return names
}

func (t TermType) String() string {
	if t == 0 {
		return "None"
	}
	return strings.Join(t.Names(), "|")
}

// ParseTermType builds a flag set from flag names. Names are matched
// case-insensitively; an unknown name is an error.
func ParseTermType(names ...string) (TermType, error) {
	var t TermType
	for _, name := range names {
		found := false
		for _, tn := range termTypeNames {
			if strings.EqualFold(tn.name, strings.TrimSpace(name)) {
				t |= tn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown term type %q", name)
		}
	}
	return t, nil
}

func (t TermType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Names())
}

func (t *TermType) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return errors.Wrap(err, "term type")
	}
	parsed, err := ParseTermType(names...)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
