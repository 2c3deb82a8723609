// Package metrics counts folds and resolutions for one run and writes
// them in the Prometheus text format.
package metrics

import (
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
)

const namespace = "vlog_dataflow"

// Resolution statuses.
const (
	StatusResolved = "resolved"
	StatusCached   = "cached"
	StatusFailed   = "failed"
)

// Collector owns a private registry so several runs in one process do
// not share counters. It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	folds       *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	constants   prometheus.Gauge
	duration    prometheus.Histogram
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		folds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "folds_total",
				Help:      "Compound nodes visited by the optimizer, by kind and whether they reduced to a literal.",
			},
			[]string{"kind", "folded"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Snapshot resolutions by outcome.",
			},
			[]string{"status"},
		),
		constants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "constants_resolved",
			Help:      "Parameters resolved to a literal across all snapshots.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving one snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	c.registry.MustRegister(c.folds)
	c.registry.MustRegister(c.resolutions)
	c.registry.MustRegister(c.constants)
	c.registry.MustRegister(c.duration)
	return c
}

// ObserveFold implements optimizer.Observer.
func (c *Collector) ObserveFold(kind dataflow.NodeKind, folded bool) {
	c.folds.WithLabelValues(kind.String(), strconv.FormatBool(folded)).Inc()
}

// ObserveResolution records one snapshot outcome. constants is the number
// of parameters it resolved.
func (c *Collector) ObserveResolution(status string, constants int, elapsed time.Duration) {
	c.resolutions.WithLabelValues(status).Inc()
	c.constants.Add(float64(constants))
	if status != StatusCached {
		c.duration.Observe(elapsed.Seconds())
	}
}

// Registry exposes the collector's registry, e.g. for promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteText writes every metric family in the text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	for _, mf := range families {
		if err := writeFamily(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func writeFamily(w io.Writer, mf *dto.MetricFamily) error {
	if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
		return errors.Wrapf(err, "writing %s", mf.GetName())
	}
	return nil
}
