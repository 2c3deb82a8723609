// Package resolver reduces every parameter of a term table to a literal
// and folds the remaining ranges against those literals.
package resolver

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/optimizer"
)

// Passes is the fixed number of parameter passes. A parameter that sits
// deeper than this in a chain of parameter references stays symbolic.
const Passes = 2

// ErrResolverReused is returned by a second Resolve on the same Resolver.
var ErrResolverReused = errors.New("resolver already used, create a new one per resolution")

// Result holds the resolved copies of the input tables and the constant
// map they were resolved against.
type Result struct {
	Terms     *dataflow.Terms
	Binds     *dataflow.Binddict
	Constants map[string]*dataflow.EvalValue
}

// Constant returns the resolved value of name, if any.
func (r *Result) Constant(name string) (*dataflow.EvalValue, bool) {
	v, ok := r.Constants[name]
	return v, ok
}

type Resolver struct {
	terms  *dataflow.Terms
	binds  *dataflow.Binddict
	opt    *optimizer.Optimizer
	pinned map[string]bool
	log    *logrus.Entry
	used   bool
}

// New prepares a resolution of terms and binds. Constants seeded with
// optimizer.WithConstants are overrides: the passes never replace them.
func New(terms *dataflow.Terms, binds *dataflow.Binddict, opts ...optimizer.Option) *Resolver {
	if terms == nil {
		terms = dataflow.NewTerms()
	}
	if binds == nil {
		binds = dataflow.NewBinddict()
	}
	opt := optimizer.New(terms, opts...)
	pinned := make(map[string]bool)
	for name := range opt.Constants() {
		pinned[name] = true
	}
	return &Resolver{
		terms:  terms,
		binds:  binds,
		opt:    opt,
		pinned: pinned,
		log:    opt.Log(),
	}
}

// Resolve runs both parameter passes and builds the resolved tables. The
// input tables are not modified.
func (r *Resolver) Resolve() (*Result, error) {
	if r.used {
		return nil, ErrResolverReused
	}
	r.used = true

	order := r.order()
	for pass := 1; pass <= Passes; pass++ {
		if err := r.pass(pass, order); err != nil {
			return nil, errors.Wrapf(err, "parameter pass %d", pass)
		}
	}

	binds := r.resolveBinds()
	terms, err := r.resolveTerms()
	if err != nil {
		return nil, err
	}
	constants := r.opt.Constants()
	r.log.WithField("constants", len(constants)).Debug("resolution complete")
	return &Result{Terms: terms, Binds: binds, Constants: constants}, nil
}

// order sorts bind targets by name length, shallow scopes first. Ties
// keep insertion order.
func (r *Resolver) order() []string {
	names := r.binds.Names()
	sort.SliceStable(names, func(i, j int) bool {
		return len(names[i]) < len(names[j])
	})
	return names
}

// pass folds the first bind of every parameter against the constants
// known when the pass started. New values are committed together once
// the pass is over, so a pass never sees its own writes.
func (r *Resolver) pass(n int, order []string) error {
	staged := make(map[string]*dataflow.EvalValue)
	var pending []string
	for _, name := range order {
		term, err := r.opt.Term(name)
		if err != nil {
			return err
		}
		if !term.Type.IsConstant() || r.pinned[name] {
			continue
		}
		b, ok := r.binds.First(name)
		if !ok || b.Tree == nil {
			continue
		}
		folded, err := r.opt.Fold(b.Tree)
		if err != nil {
			return errors.Wrapf(err, "parameter %s", name)
		}
		v, ok := folded.(*dataflow.EvalValue)
		if !ok {
			r.log.WithFields(logrus.Fields{"pass": n, "name": name, "tree": folded.String()}).Debug("parameter still symbolic")
			continue
		}
		staged[name] = v
		pending = append(pending, name)
	}
	for _, name := range pending {
		r.opt.SetConstant(name, staged[name])
		r.log.WithFields(logrus.Fields{"pass": n, "name": name, "value": staged[name].String()}).Debug("parameter resolved")
	}
	return nil
}

func (r *Resolver) resolveBinds() *dataflow.Binddict {
	out := r.binds.Clone()
	constants := r.opt.Constants()
	for _, name := range out.Names() {
		v, ok := constants[name]
		if !ok {
			continue
		}
		for _, b := range out.Get(name) {
			b.Tree = v
		}
	}
	return out
}

func (r *Resolver) resolveTerms() (*dataflow.Terms, error) {
	out := r.terms.Clone()
	for _, name := range out.Names() {
		t, _ := out.Get(name)
		var err error
		if t.MSB, err = r.opt.Fold(t.MSB); err != nil {
			return nil, errors.Wrapf(err, "term %s msb", name)
		}
		if t.LSB, err = r.opt.Fold(t.LSB); err != nil {
			return nil, errors.Wrapf(err, "term %s lsb", name)
		}
		for i, d := range t.Dims {
			left, err := r.opt.Fold(d.Left)
			if err != nil {
				return nil, errors.Wrapf(err, "term %s dim %d", name, i)
			}
			right, err := r.opt.Fold(d.Right)
			if err != nil {
				return nil, errors.Wrapf(err, "term %s dim %d", name, i)
			}
			t.Dims[i] = dataflow.Dim{Left: left, Right: right}
		}
	}
	return out, nil
}
