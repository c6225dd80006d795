package monitoring

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/ringdist/ring"
	"github.com/sarchlab/ringdist/sim"
	"github.com/sarchlab/ringdist/topology"
	"github.com/sarchlab/ringdist/workload"
)

// Metrics collects the prometheus metrics of a run.
type Metrics struct {
	EdgesAnnotated prometheus.Counter
	ZeroDistance   prometheus.Counter
	EdgesFailed    prometheus.Counter
	DomainErrors   prometheus.Counter
	WorkloadOps    *prometheus.CounterVec
	EventsHandled  prometheus.Counter
	EngineTime     prometheus.Gauge

	once sync.Once
}

// Setup creates the metrics and registers them. Only the first call has an
// effect.
func (m *Metrics) Setup(reg prometheus.Registerer) {
	m.once.Do(func() {
		nc := func(name, help string) prometheus.Counter {
			c := prometheus.NewCounter(prometheus.CounterOpts{
				Name: name,
				Help: help,
			})
			reg.MustRegister(c)
			return c
		}

		m.EdgesAnnotated = nc("ringdist_edges_annotated_total",
			"Number of edges that received dist and edit properties")
		m.ZeroDistance = nc("ringdist_edges_zero_distance_total",
			"Number of annotated edges whose endpoints share an address")
		m.EdgesFailed = nc("ringdist_edges_failed_total",
			"Number of edges that could not be annotated")
		m.DomainErrors = nc("ringdist_domain_errors_total",
			"Number of edit distances requested outside the metric domain")
		m.EventsHandled = nc("ringdist_engine_events_total",
			"Number of events handled by the engine")

		m.WorkloadOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringdist_workload_ops_total",
			Help: "Number of workload operations written, by kind",
		}, []string{"kind"})
		reg.MustRegister(m.WorkloadOps)

		m.EngineTime = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ringdist_engine_time_seconds",
			Help: "Virtual time of the last handled event",
		})
		reg.MustRegister(m.EngineTime)
	})
}

// Func implements sim.Hook.
func (m *Metrics) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case topology.HookPosEdgeAnnotated:
		m.EdgesAnnotated.Inc()

		if ann, ok := ctx.Item.(topology.Annotation); ok && ann.ZeroDistance {
			m.ZeroDistance.Inc()
		}
	case topology.HookPosEdgeFailed:
		m.EdgesFailed.Inc()

		if err, ok := ctx.Item.(error); ok && errors.Is(err, ring.ErrDomain) {
			m.DomainErrors.Inc()
		}
	case workload.HookPosOpEmitted:
		if op, ok := ctx.Item.(workload.Op); ok {
			m.WorkloadOps.WithLabelValues(op.Kind).Inc()
		}
	case sim.HookPosAfterEvent:
		m.EventsHandled.Inc()
		m.EngineTime.Set(float64(ctx.Now))
	}
}
