package dataflow

// Bind is one assignment rule: Tree drives Target (optionally only the
// Target[MSB:LSB] or Target[Ptr] slice of it).
type Bind struct {
	Target string
	Tree   Node

	MSB Node
	LSB Node
	Ptr Node

	// Delay is carried for downstream consumers. It has no static value.
	Delay Node

	// Always is set for binds made inside an always block.
	Always *AlwaysInfo

	// ParamKind is "parameter" or "localparam" for parameter binds.
	ParamKind string
}

// AlwaysInfo describes the sensitivity of the always block a bind came
// from. The FSM extractor uses it to tell clocked from combinational
// logic.
type AlwaysInfo struct {
	Clock     string   `json:"clock,omitempty"`
	ClockEdge string   `json:"clock_edge,omitempty"`
	ClockBit  int      `json:"clock_bit,omitempty"`
	Reset     string   `json:"reset,omitempty"`
	ResetEdge string   `json:"reset_edge,omitempty"`
	ResetBit  int      `json:"reset_bit,omitempty"`
	Senslist  []string `json:"senslist,omitempty"`
}

// IsClocked reports whether the block is edge-triggered by a clock.
func (a *AlwaysInfo) IsClocked() bool {
	return a != nil && a.Clock != "" && (a.ClockEdge == "posedge" || a.ClockEdge == "negedge")
}

func (b *Bind) Clone() *Bind {
	c := *b
	return &c
}

// Binddict maps a target name to its binds in source encounter order.
// Order matters: downstream control-flow extraction rebuilds branch
// priority from it.
type Binddict struct {
	order  []string
	byName map[string][]*Bind
}

func NewBinddict() *Binddict {
	return &Binddict{byName: make(map[string][]*Bind)}
}

// Add appends b to the sequence for its target.
func (bd *Binddict) Add(b *Bind) {
	if bd.byName == nil {
		bd.byName = make(map[string][]*Bind)
	}
	if _, ok := bd.byName[b.Target]; !ok {
		bd.order = append(bd.order, b.Target)
	}
	bd.byName[b.Target] = append(bd.byName[b.Target], b)
}

// Set replaces the whole sequence for name.
func (bd *Binddict) Set(name string, binds []*Bind) {
	if bd.byName == nil {
		bd.byName = make(map[string][]*Bind)
	}
	if _, ok := bd.byName[name]; !ok {
		bd.order = append(bd.order, name)
	}
	bd.byName[name] = binds
}

// Get returns the binds for name; nil when there are none.
func (bd *Binddict) Get(name string) []*Bind {
	return bd.byName[name]
}

// First returns the authoritative bind for name. Parameters bind once,
// so for them this is the only one.
func (bd *Binddict) First(name string) (*Bind, bool) {
	bs := bd.byName[name]
	if len(bs) == 0 {
		return nil, false
	}
	return bs[0], true
}

// Names returns target names in insertion order.
func (bd *Binddict) Names() []string {
	return append([]string(nil), bd.order...)
}

// Len is the number of distinct targets.
func (bd *Binddict) Len() int {
	return len(bd.order)
}

// Count is the total number of binds across all targets.
func (bd *Binddict) Count() int {
	n := 0
	for _, bs := range bd.byName {
		n += len(bs)
	}
	return n
}

// Clone returns a new multimap with copied Bind records sharing trees.
func (bd *Binddict) Clone() *Binddict {
	c := &Binddict{
		order:  append([]string(nil), bd.order...),
		byName: make(map[string][]*Bind, len(bd.byName)),
	}
	for k, bs := range bd.byName {
		cs := make([]*Bind, len(bs))
		for i, b := range bs {
			cs[i] = b.Clone()
		}
		c.byName[k] = cs
	}
	return c
}
