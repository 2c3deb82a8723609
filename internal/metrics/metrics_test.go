package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/optimizer"
)

func TestCollectorCountsFolds(t *testing.T) {
	c := New()
	terms := dataflow.NewTerms()
	require.NoError(t, terms.Add(&dataflow.Term{Name: "x", Type: dataflow.Wire}))
	opt := optimizer.New(terms, optimizer.WithObserver(c))

	tree := &dataflow.Operator{Op: dataflow.Plus, Operands: []dataflow.Node{
		&dataflow.Operator{Op: dataflow.Times, Operands: []dataflow.Node{
			&dataflow.IntConst{Value: "2"}, &dataflow.IntConst{Value: "3"},
		}},
		&dataflow.Terminal{Name: "x"},
	}}
	_, err := opt.Fold(tree)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.folds.WithLabelValues("Operator", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.folds.WithLabelValues("Operator", "false")))
}

func TestCollectorResolutions(t *testing.T) {
	c := New()
	c.ObserveResolution(StatusResolved, 3, 2*time.Millisecond)
	c.ObserveResolution(StatusCached, 2, 0)
	c.ObserveResolution(StatusFailed, 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues(StatusResolved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resolutions.WithLabelValues(StatusCached)))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.constants))

	var m dto.Metric
	require.NoError(t, c.duration.Write(&m))
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())
}

func TestWriteText(t *testing.T) {
	c := New()
	c.ObserveFold(dataflow.KindBranch, true)
	c.ObserveResolution(StatusResolved, 1, time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, `vlog_dataflow_folds_total{folded="true",kind="Branch"} 1`)
	assert.Contains(t, out, "# TYPE vlog_dataflow_resolve_duration_seconds histogram")
	assert.Contains(t, out, "vlog_dataflow_constants_resolved 1")
}
