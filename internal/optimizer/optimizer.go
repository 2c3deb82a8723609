// Package optimizer folds dataflow expression trees into literal values
// wherever the constants it knows about allow.
package optimizer

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
)

const (
	DefaultWidth  = 32
	DefaultPasses = 2
)

// Observer is told about every fold of a compound node and whether it
// reduced to a literal.
type Observer interface {
	ObserveFold(kind dataflow.NodeKind, folded bool)
}

type Option func(*Optimizer)

// WithDefaultWidth sets the width given to unsized literals.
func WithDefaultWidth(width int) Option {
	return func(o *Optimizer) {
		if width > 0 {
			o.defaultWidth = width
		}
	}
}

// WithPasses sets how many fold/normalize rounds Optimize runs.
func WithPasses(passes int) Option {
	return func(o *Optimizer) {
		if passes > 0 {
			o.passes = passes
		}
	}
}

// WithConstants pre-seeds the constant map. The map is copied.
func WithConstants(constants map[string]*dataflow.EvalValue) Option {
	return func(o *Optimizer) {
		for name, v := range constants {
			o.constants[name] = v
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *Optimizer) {
		if log != nil {
			o.log = log
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Optimizer) {
		o.observer = obs
	}
}

// Optimizer holds a term table and a name to constant map and reduces
// trees against them. It is not safe for concurrent use.
type Optimizer struct {
	terms        *dataflow.Terms
	constants    map[string]*dataflow.EvalValue
	defaultWidth int
	passes       int
	log          *logrus.Entry
	observer     Observer

	// names whose range is being folded, to stop self-referencing widths
	sizing map[string]bool
}

func New(terms *dataflow.Terms, opts ...Option) *Optimizer {
	if terms == nil {
		terms = dataflow.NewTerms()
	}
	o := &Optimizer{
		terms:        terms,
		constants:    make(map[string]*dataflow.EvalValue),
		defaultWidth: DefaultWidth,
		passes:       DefaultPasses,
		log:          discardLogger(),
		sizing:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func (o *Optimizer) DefaultWidth() int { return o.defaultWidth }
func (o *Optimizer) Passes() int       { return o.passes }
func (o *Optimizer) Log() *logrus.Entry {
	return o.log
}

func (o *Optimizer) SetConstant(name string, v *dataflow.EvalValue) {
	o.constants[name] = v
}

func (o *Optimizer) ResetConstant(name string) {
	delete(o.constants, name)
}

func (o *Optimizer) HasConstant(name string) bool {
	_, ok := o.constants[name]
	return ok
}

// GetConstant returns the constant bound to name, or a DefinitionError.
func (o *Optimizer) GetConstant(name string) (*dataflow.EvalValue, error) {
	v, ok := o.constants[name]
	if !ok {
		return nil, dataflow.NewDefinitionError("constant", name)
	}
	return v, nil
}

// Constants returns a copy of the constant map.
func (o *Optimizer) Constants() map[string]*dataflow.EvalValue {
	out := make(map[string]*dataflow.EvalValue, len(o.constants))
	for k, v := range o.constants {
		out[k] = v
	}
	return out
}

// Term looks name up in the term table.
func (o *Optimizer) Term(name string) (*dataflow.Term, error) {
	return o.terms.Get(name)
}

// Optimize runs the configured number of fold and hierarchy
// normalization rounds. It stops after that many rounds whether or not
// the tree has stopped changing.
func (o *Optimizer) Optimize(tree dataflow.Node) (dataflow.Node, error) {
	t := tree
	for i := 0; i < o.passes; i++ {
		var err error
		if t, err = o.Fold(t); err != nil {
			return nil, err
		}
		t = o.NormalizeHierarchy(t)
	}
	return t, nil
}

func (o *Optimizer) observe(kind dataflow.NodeKind, result dataflow.Node) {
	if o.observer != nil {
		o.observer.ObserveFold(kind, result != nil && dataflow.IsNormal(result))
	}
}
