package dataflow

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// Snapshot is the term table and binddict handed over by the dataflow
// builder, and the shape resolved tables are written back out in.
type Snapshot struct {
	Terms *Terms
	Binds *Binddict
}

// jsonNode is the tagged wire form of a Node. Only the fields of the
// variant named by Kind are populated.
type jsonNode struct {
	Kind     string      `json:"kind"`
	Name     string      `json:"name,omitempty"`
	Value    string      `json:"value,omitempty"`
	Type     string      `json:"type,omitempty"`
	Width    int         `json:"width,omitempty"`
	Signed   bool        `json:"signed,omitempty"`
	Op       string      `json:"op,omitempty"`
	Operands []*jsonNode `json:"operands,omitempty"`
	Operand  *jsonNode   `json:"operand,omitempty"`
	Parts    []*jsonNode `json:"parts,omitempty"`
	Args     []*jsonNode `json:"args,omitempty"`
	Var      *jsonNode   `json:"var,omitempty"`
	MSB      *jsonNode   `json:"msb,omitempty"`
	LSB      *jsonNode   `json:"lsb,omitempty"`
	Index    *jsonNode   `json:"index,omitempty"`
	Cond     *jsonNode   `json:"cond,omitempty"`
	True     *jsonNode   `json:"true,omitempty"`
	False    *jsonNode   `json:"false,omitempty"`
	Tree     *jsonNode   `json:"tree,omitempty"`
}

type jsonDim struct {
	Left  *jsonNode `json:"left"`
	Right *jsonNode `json:"right"`
}

type jsonTerm struct {
	Name   string    `json:"name"`
	Type   TermType  `json:"type"`
	MSB    *jsonNode `json:"msb,omitempty"`
	LSB    *jsonNode `json:"lsb,omitempty"`
	Dims   []jsonDim `json:"dims,omitempty"`
	Signed bool      `json:"signed,omitempty"`
}

type jsonBind struct {
	Target    string      `json:"target"`
	Tree      *jsonNode   `json:"tree"`
	MSB       *jsonNode   `json:"msb,omitempty"`
	LSB       *jsonNode   `json:"lsb,omitempty"`
	Ptr       *jsonNode   `json:"ptr,omitempty"`
	Delay     *jsonNode   `json:"delay,omitempty"`
	Always    *AlwaysInfo `json:"always,omitempty"`
	ParamKind string      `json:"param_kind,omitempty"`
}

type jsonSnapshot struct {
	Terms []jsonTerm `json:"terms"`
	Binds []jsonBind `json:"binds"`
}

// DecodeSnapshot parses the builder's JSON handoff.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// EncodeSnapshot renders terms and binds as indented JSON.
func EncodeSnapshot(terms *Terms, binds *Binddict) ([]byte, error) {
	return json.MarshalIndent(&Snapshot{Terms: terms, Binds: binds}, "", "  ")
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := jsonSnapshot{Terms: []jsonTerm{}, Binds: []jsonBind{}}
	if s.Terms != nil {
		for _, name := range s.Terms.Names() {
			t, _ := s.Terms.Get(name)
			jt := jsonTerm{
				Name:   t.Name,
				Type:   t.Type,
				MSB:    encodeNode(t.MSB),
				LSB:    encodeNode(t.LSB),
				Signed: t.Signed,
			}
			for _, d := range t.Dims {
				jt.Dims = append(jt.Dims, jsonDim{Left: encodeNode(d.Left), Right: encodeNode(d.Right)})
			}
			out.Terms = append(out.Terms, jt)
		}
	}
	if s.Binds != nil {
		for _, name := range s.Binds.Names() {
			for _, b := range s.Binds.Get(name) {
				out.Binds = append(out.Binds, jsonBind{
					Target:    b.Target,
					Tree:      encodeNode(b.Tree),
					MSB:       encodeNode(b.MSB),
					LSB:       encodeNode(b.LSB),
					Ptr:       encodeNode(b.Ptr),
					Delay:     encodeNode(b.Delay),
					Always:    b.Always,
					ParamKind: b.ParamKind,
				})
			}
		}
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in jsonSnapshot
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	terms := NewTerms()
	for _, jt := range in.Terms {
		t := &Term{Name: jt.Name, Type: jt.Type, Signed: jt.Signed}
		var err error
		if t.MSB, err = decodeNode(jt.MSB); err != nil {
			return errors.Wrapf(err, "term %s msb", jt.Name)
		}
		if t.LSB, err = decodeNode(jt.LSB); err != nil {
			return errors.Wrapf(err, "term %s lsb", jt.Name)
		}
		for i, jd := range jt.Dims {
			left, err := decodeNode(jd.Left)
			if err != nil {
				return errors.Wrapf(err, "term %s dim %d", jt.Name, i)
			}
			right, err := decodeNode(jd.Right)
			if err != nil {
				return errors.Wrapf(err, "term %s dim %d", jt.Name, i)
			}
			t.Dims = append(t.Dims, Dim{Left: left, Right: right})
		}
		if err := terms.Add(t); err != nil {
			return err
		}
	}
	binds := NewBinddict()
	for i, jb := range in.Binds {
		b := &Bind{Target: jb.Target, Always: jb.Always, ParamKind: jb.ParamKind}
		var err error
		fields := []struct {
			dst  *Node
			src  *jsonNode
			name string
		}{
			{&b.Tree, jb.Tree, "tree"},
			{&b.MSB, jb.MSB, "msb"},
			{&b.LSB, jb.LSB, "lsb"},
			{&b.Ptr, jb.Ptr, "ptr"},
			{&b.Delay, jb.Delay, "delay"},
		}
		for _, f := range fields {
			if *f.dst, err = decodeNode(f.src); err != nil {
				return errors.Wrapf(err, "bind %d (%s) %s", i, jb.Target, f.name)
			}
		}
		binds.Add(b)
	}
	s.Terms = terms
	s.Binds = binds
	return nil
}

// MarshalNode encodes a single tree in the snapshot wire form.
func MarshalNode(n Node) ([]byte, error) {
	return json.Marshal(encodeNode(n))
}

// UnmarshalNode decodes a single tree in the snapshot wire form.
func UnmarshalNode(data []byte) (Node, error) {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, errors.Wrap(err, "decode node")
	}
	return decodeNode(&jn)
}

func encodeNode(n Node) *jsonNode {
	if n == nil {
		return nil
	}
	jn := &jsonNode{Kind: n.Kind().String()}
	switch v := n.(type) {
	case *Terminal:
		jn.Name = v.Name
	case *IntConst:
		jn.Value = v.Value
	case *FloatConst:
		jn.Value = v.Value
	case *StringConst:
		jn.Value = v.Value
	case *EvalValue:
		jn.Width = v.Width
		jn.Signed = v.Signed
		switch {
		case v.IsFloat:
			jn.Type = "float"
			jn.Value = strconv.FormatFloat(v.Float, 'g', -1, 64)
		case v.IsString:
			jn.Type = "string"
			jn.Value = v.Str
		default:
			jn.Type = "int"
			jn.Value = bigOrZero(v.Int).String()
		}
	case *Undefined:
		jn.Width = v.Width
	case *HighImpedance:
		jn.Width = v.Width
	case *Operator:
		jn.Op = v.Op.String()
		jn.Operands = encodeNodes(v.Operands)
	case *UnaryOperator:
		jn.Op = v.Op.String()
		jn.Operand = encodeNode(v.Operand)
	case *Concat:
		jn.Parts = encodeNodes(v.Parts)
	case *Partselect:
		jn.Var = encodeNode(v.Var)
		jn.MSB = encodeNode(v.MSB)
		jn.LSB = encodeNode(v.LSB)
	case *Pointer:
		jn.Var = encodeNode(v.Var)
		jn.Index = encodeNode(v.Index)
	case *Branch:
		jn.Cond = encodeNode(v.Cond)
		jn.True = encodeNode(v.True)
		jn.False = encodeNode(v.False)
	case *Syscall:
		jn.Name = v.Name
		jn.Args = encodeNodes(v.Args)
	case *Delay:
		jn.Tree = encodeNode(v.Tree)
	}
	return jn
}

func encodeNodes(ns []Node) []*jsonNode {
	out := make([]*jsonNode, len(ns))
	for i, n := range ns {
		out[i] = encodeNode(n)
	}
	return out
}

func decodeNode(jn *jsonNode) (Node, error) {
	if jn == nil {
		return nil, nil
	}
	kind, ok := ParseNodeKind(jn.Kind)
	if !ok {
		return nil, errors.Errorf("unknown node kind %q", jn.Kind)
	}
	switch kind {
	case KindTerminal:
		if jn.Name == "" {
			return nil, errors.New("terminal without a name")
		}
		return &Terminal{Name: jn.Name}, nil
	case KindIntConst:
		return &IntConst{Value: jn.Value}, nil
	case KindFloatConst:
		return &FloatConst{Value: jn.Value}, nil
	case KindStringConst:
		return &StringConst{Value: jn.Value}, nil
	case KindEvalValue:
		return decodeEval(jn)
	case KindUndefined:
		return &Undefined{Width: jn.Width}, nil
	case KindHighImpedance:
		return &HighImpedance{Width: jn.Width}, nil
	case KindOperator:
		op, err := ParseOpcode(jn.Op)
		if err != nil {
			return nil, err
		}
		operands, err := decodeNodes(jn.Operands)
		if err != nil {
			return nil, err
		}
		return &Operator{Op: op, Operands: operands}, nil
	case KindUnaryOperator:
		op, err := ParseOpcode(jn.Op)
		if err != nil {
			return nil, err
		}
		operand, err := decodeRequired(jn.Operand, "operand")
		if err != nil {
			return nil, err
		}
		return &UnaryOperator{Op: op, Operand: operand}, nil
	case KindConcat:
		parts, err := decodeNodes(jn.Parts)
		if err != nil {
			return nil, err
		}
		return &Concat{Parts: parts}, nil
	case KindPartselect:
		ps := &Partselect{}
		var err error
		if ps.Var, err = decodeRequired(jn.Var, "var"); err != nil {
			return nil, err
		}
		if ps.MSB, err = decodeRequired(jn.MSB, "msb"); err != nil {
			return nil, err
		}
		if ps.LSB, err = decodeRequired(jn.LSB, "lsb"); err != nil {
			return nil, err
		}
		return ps, nil
	case KindPointer:
		p := &Pointer{}
		var err error
		if p.Var, err = decodeRequired(jn.Var, "var"); err != nil {
			return nil, err
		}
		if p.Index, err = decodeRequired(jn.Index, "index"); err != nil {
			return nil, err
		}
		return p, nil
	case KindBranch:
		br := &Branch{}
		var err error
		if br.Cond, err = decodeRequired(jn.Cond, "cond"); err != nil {
			return nil, err
		}
		// a missing arm is legal: an if without else leaves the target unchanged
		if br.True, err = decodeNode(jn.True); err != nil {
			return nil, err
		}
		if br.False, err = decodeNode(jn.False); err != nil {
			return nil, err
		}
		return br, nil
	case KindSyscall:
		args, err := decodeNodes(jn.Args)
		if err != nil {
			return nil, err
		}
		return &Syscall{Name: jn.Name, Args: args}, nil
	case KindDelay:
		tree, err := decodeRequired(jn.Tree, "tree")
		if err != nil {
			return nil, err
		}
		return &Delay{Tree: tree}, nil
	}
	return nil, errors.Errorf("unhandled node kind %s", kind)
}

func decodeRequired(jn *jsonNode, field string) (Node, error) {
	if jn == nil {
		return nil, errors.Errorf("missing %s", field)
	}
	return decodeNode(jn)
}

func decodeNodes(jns []*jsonNode) ([]Node, error) {
	out := make([]Node, len(jns))
	for i, jn := range jns {
		n, err := decodeRequired(jn, "operand "+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func decodeEval(jn *jsonNode) (Node, error) {
	switch jn.Type {
	case "float":
		f, err := strconv.ParseFloat(jn.Value, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "eval value %q", jn.Value)
		}
		return &EvalValue{Float: f, Width: jn.Width, IsFloat: true}, nil
	case "string":
		return &EvalValue{Str: jn.Value, Width: jn.Width, IsString: true}, nil
	case "", "int":
		v, ok := new(big.Int).SetString(jn.Value, 10)
		if !ok {
			return nil, errors.Errorf("eval value %q is not an integer", jn.Value)
		}
		return &EvalValue{Int: v, Width: jn.Width, Signed: jn.Signed}, nil
	}
	return nil, errors.Errorf("unknown eval value type %q", jn.Type)
}
