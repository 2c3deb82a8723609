package resolver

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/optimizer"
)

func ic(v string) *dataflow.IntConst      { return &dataflow.IntConst{Value: v} }
func term(name string) *dataflow.Terminal { return &dataflow.Terminal{Name: name} }

func plus(a, b dataflow.Node) dataflow.Node {
	return &dataflow.Operator{Op: dataflow.Plus, Operands: []dataflow.Node{a, b}}
}

type fixture struct {
	terms *dataflow.Terms
	binds *dataflow.Binddict
}

func newFixture() *fixture {
	return &fixture{terms: dataflow.NewTerms(), binds: dataflow.NewBinddict()}
}

func (f *fixture) param(t *testing.T, name string, tree dataflow.Node) {
	t.Helper()
	require.NoError(t, f.terms.Add(&dataflow.Term{Name: name, Type: dataflow.Parameter}))
	f.binds.Add(&dataflow.Bind{Target: name, Tree: tree, ParamKind: "parameter"})
}

func (f *fixture) resolve(t *testing.T, opts ...optimizer.Option) *Result {
	t.Helper()
	res, err := New(f.terms, f.binds, opts...).Resolve()
	require.NoError(t, err)
	return res
}

func requireConst(t *testing.T, res *Result, name string, value int64, width int) {
	t.Helper()
	v, ok := res.Constant(name)
	require.True(t, ok, "%s not resolved", name)
	got, fits := v.Int64()
	require.True(t, fits)
	assert.Equal(t, value, got, name)
	assert.Equal(t, width, v.Width, name)
}

func TestResolveSingleParameter(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("8'd10"))

	res := f.resolve(t)

	requireConst(t, res, "A", 10, 8)
	a, err := res.Terms.Get("A")
	require.NoError(t, err)
	orig, _ := f.terms.Get("A")
	assert.Equal(t, orig.Type, a.Type)
	assert.Nil(t, a.MSB)
	assert.Nil(t, a.LSB)

	b, ok := res.Binds.First("A")
	require.True(t, ok)
	assert.True(t, dataflow.Equal(dataflow.NewEvalInt(10, 8), b.Tree), b.Tree.String())
}

func TestResolveStopsAfterTwoLevels(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("1"))
	f.param(t, "B", plus(term("A"), ic("1")))
	f.param(t, "C", plus(term("B"), ic("1")))

	res := f.resolve(t)

	requireConst(t, res, "A", 1, 32)
	requireConst(t, res, "B", 2, 32)
	_, ok := res.Constant("C")
	assert.False(t, ok, "C should stay symbolic after two passes")

	c, _ := res.Binds.First("C")
	assert.Contains(t, dataflow.Identifiers(c.Tree), "B")
}

func TestResolveOrderIsByNameLength(t *testing.T) {
	f := newFixture()
	f.param(t, "top.WIDTH_TOTAL", ic("16"))
	f.param(t, "top.W", plus(term("top.WIDTH_TOTAL"), ic("-1")))

	r := New(f.terms, f.binds)
	assert.Equal(t, []string{"top.W", "top.WIDTH_TOTAL"}, r.order())

	res, err := r.Resolve()
	require.NoError(t, err)
	requireConst(t, res, "top.W", 15, 32)
}

func TestResolveFoldsRangesAndDims(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("8"))
	minusOne := &dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{term("A"), ic("1")}}
	require.NoError(t, f.terms.Add(&dataflow.Term{Name: "W", Type: dataflow.Wire, MSB: minusOne, LSB: ic("0")}))
	require.NoError(t, f.terms.Add(&dataflow.Term{Name: "M", Type: dataflow.Reg,
		Dims: []dataflow.Dim{{Left: ic("0"), Right: minusOne}}}))
	f.binds.Add(&dataflow.Bind{Target: "W", Tree: term("A")})

	res := f.resolve(t)

	w, err := res.Terms.Get("W")
	require.NoError(t, err)
	msb, ok := w.MSB.(*dataflow.EvalValue)
	require.True(t, ok, w.MSB.String())
	v, _ := msb.Int64()
	assert.Equal(t, int64(7), v)
	assert.Equal(t, "32'sd0", w.LSB.String())

	m, _ := res.Terms.Get("M")
	require.Len(t, m.Dims, 1)
	assert.Equal(t, "32'sd7", m.Dims[0].Right.String())

	// non-parameter binds keep their trees
	wb, _ := res.Binds.First("W")
	assert.Equal(t, "A", wb.Tree.String())
}

func TestResolveDoesNotMutateInputs(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("8"))
	msb := &dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{term("A"), ic("1")}}
	require.NoError(t, f.terms.Add(&dataflow.Term{Name: "W", Type: dataflow.Wire, MSB: msb, LSB: ic("0")}))
	before, err := dataflow.EncodeSnapshot(f.terms, f.binds)
	require.NoError(t, err)

	first := f.resolve(t)
	second := f.resolve(t)

	after, err := dataflow.EncodeSnapshot(f.terms, f.binds)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	w, _ := f.terms.Get("W")
	assert.Same(t, msb, w.MSB)
	a, _ := f.binds.First("A")
	assert.Equal(t, dataflow.KindIntConst, a.Tree.Kind())

	// independent resolutions over the same inputs agree
	assert.Equal(t, len(first.Constants), len(second.Constants))
}

func TestResolverIsSingleUse(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("1"))
	r := New(f.terms, f.binds)

	_, err := r.Resolve()
	require.NoError(t, err)
	_, err = r.Resolve()
	assert.True(t, errors.Is(err, ErrResolverReused))
}

func TestResolveKeepsOverrides(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("1"))
	f.param(t, "B", plus(term("A"), ic("1")))
	f.binds.Add(&dataflow.Bind{Target: "A", Tree: ic("2")})

	override := optimizer.WithConstants(map[string]*dataflow.EvalValue{"A": dataflow.NewEvalInt(5, 8)})
	res := f.resolve(t, override)

	requireConst(t, res, "A", 5, 8)
	requireConst(t, res, "B", 6, 32)
	for _, b := range res.Binds.Get("A") {
		assert.Equal(t, "8'd5", b.Tree.String())
	}
}

func TestResolveMissingTerm(t *testing.T) {
	f := newFixture()
	f.param(t, "A", ic("1"))
	f.binds.Add(&dataflow.Bind{Target: "ghost", Tree: ic("1")})

	_, err := New(f.terms, f.binds).Resolve()
	var defErr *dataflow.DefinitionError
	require.True(t, errors.As(err, &defErr), "got %v", err)
	assert.Equal(t, []string{"ghost"}, defErr.Names)
}

func TestResolveDelayIsFatal(t *testing.T) {
	f := newFixture()
	f.param(t, "D", &dataflow.Delay{Tree: ic("3")})

	_, err := New(f.terms, f.binds).Resolve()
	var unsupported *dataflow.UnsupportedNodeError
	require.True(t, errors.As(err, &unsupported))
	assert.Contains(t, err.Error(), "parameter D")
}

func TestResolveLocalparamAndUnresolvable(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.terms.Add(&dataflow.Term{Name: "L", Type: dataflow.Localparam}))
	f.binds.Add(&dataflow.Bind{Target: "L", Tree: ic("4'hc"), ParamKind: "localparam"})
	require.NoError(t, f.terms.Add(&dataflow.Term{Name: "in", Type: dataflow.Input | dataflow.Wire}))
	f.param(t, "P", plus(term("in"), ic("1")))
	f.param(t, "X", ic("4'bx"))

	res := f.resolve(t)

	requireConst(t, res, "L", 12, 4)
	_, ok := res.Constant("P")
	assert.False(t, ok)
	_, ok = res.Constant("X")
	assert.False(t, ok)
}

func TestResolveLogsPasses(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := newFixture()
	f.param(t, "A", ic("1"))
	f.param(t, "B", plus(term("A"), ic("1")))
	f.resolve(t, optimizer.WithLogger(logrus.NewEntry(logger)))

	var resolved []string
	for _, e := range hook.AllEntries() {
		if e.Message == "parameter resolved" {
			resolved = append(resolved, e.Data["name"].(string))
		}
	}
	// A resolves in both passes, B only once A is visible
	assert.Equal(t, []string{"A", "A", "B"}, resolved)
}
