package dataflow

import "github.com/pkg/errors"

// Term is the declaration record for one signal, parameter or variable.
type Term struct {
	Name   string
	Type   TermType
	MSB    Node // nil for a 1-bit scalar
	LSB    Node
	Dims   []Dim // nil unless the term is an array
	Signed bool
}

// Dim is one array dimension [Left:Right].
type Dim struct {
	Left  Node
	Right Node
}

func (t *Term) IsArray() bool {
	return len(t.Dims) > 0
}

// Clone copies the record. Range and dimension trees are shared since
// trees are never mutated.
func (t *Term) Clone() *Term {
	c := *t
	if t.Dims != nil {
		c.Dims = append([]Dim(nil), t.Dims...)
	}
	return &c
}

// Terms is the term table: scoped name to declaration, iterated in
// insertion order.
type Terms struct {
	order []string
	byKey map[string]*Term
}

func NewTerms() *Terms {
	return &Terms{byKey: make(map[string]*Term)}
}

// Add inserts a new term. Declaring the same name twice is an error.
func (ts *Terms) Add(t *Term) error {
	if t == nil || t.Name == "" {
		return errors.New("term without a name")
	}
	if _, ok := ts.byKey[t.Name]; ok {
		return errors.Errorf("duplicate term %s", t.Name)
	}
	ts.Put(t)
	return nil
}

// Put inserts or replaces a term, keeping the original position of a
// replaced name.
func (ts *Terms) Put(t *Term) {
	if ts.byKey == nil {
		ts.byKey = make(map[string]*Term)
	}
	if _, ok := ts.byKey[t.Name]; !ok {
		ts.order = append(ts.order, t.Name)
	}
	ts.byKey[t.Name] = t
}

// Get returns the named term or a DefinitionError.
func (ts *Terms) Get(name string) (*Term, error) {
	if t, ok := ts.byKey[name]; ok {
		return t, nil
	}
	return nil, NewDefinitionError("term", name)
}

func (ts *Terms) Has(name string) bool {
	_, ok := ts.byKey[name]
	return ok
}

// Names returns term names in insertion order.
func (ts *Terms) Names() []string {
	return append([]string(nil), ts.order...)
}

func (ts *Terms) Len() int {
	return len(ts.order)
}

// Clone returns a new table with copied Term records.
func (ts *Terms) Clone() *Terms {
	c := &Terms{
		order: append([]string(nil), ts.order...),
		byKey: make(map[string]*Term, len(ts.byKey)),
	}
	for k, t := range ts.byKey {
		c.byKey[k] = t.Clone()
	}
	return c
}
