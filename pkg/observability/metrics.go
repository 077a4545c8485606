package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/callflow/internal/logging"
	"github.com/aretw0/callflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callflow"

// Metrics holds the engine collectors.
type Metrics struct {
	CallsStarted   prometheus.Counter
	CallsEnded     *prometheus.CounterVec
	LiveCalls      prometheus.Gauge
	MenuVisits     *prometheus.CounterVec
	Decisions      *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		CallsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Total number of calls started",
		}),
		CallsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Total number of calls ended, by termination reason",
		}, []string{"reason"}),
		LiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_calls",
			Help:      "Calls currently live in this process",
		}),
		MenuVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_visits_total",
			Help:      "Total number of menu visits",
		}, []string{"menu"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of decisions, by kind",
		}, []string{"kind"}),
		LookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Duration of record lookups",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.CallsStarted, m.CallsEnded, m.LiveCalls, m.MenuVisits, m.Decisions, m.LookupDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// LookupOutcome labels a resolver result.
func LookupOutcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, domain.ErrRecordNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Hooks returns lifecycle hooks that log each event and record it on m.
// Either argument may be nil.
func Hooks(m *Metrics, logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = logging.NewNop()
	}
	return domain.LifecycleHooks{
		OnCallStart: func(ctx context.Context, e *domain.CallEvent) {
			logger.InfoContext(ctx, "call_start", "call_id", e.CallID, "caller", e.Caller)
			if m != nil {
				m.CallsStarted.Inc()
				m.LiveCalls.Inc()
			}
		},
		OnCallEnd: func(ctx context.Context, e *domain.CallEvent) {
			logger.InfoContext(ctx, "call_end", "call_id", e.CallID, "menu", e.Menu, "reason", e.Reason)
			if m != nil {
				m.CallsEnded.WithLabelValues(string(e.Reason)).Inc()
				m.LiveCalls.Dec()
			}
		},
		OnMenuEnter: func(ctx context.Context, e *domain.MenuEvent) {
			logger.DebugContext(ctx, "menu_enter", "call_id", e.CallID, "menu", e.MenuID)
			if m != nil {
				m.MenuVisits.WithLabelValues(e.MenuID).Inc()
			}
		},
		OnDecision: func(ctx context.Context, d *domain.Decision) {
			if m != nil {
				m.Decisions.WithLabelValues(string(d.Kind)).Inc()
			}
		},
		OnLookup: func(ctx context.Context, e *domain.LookupEvent) {
			outcome := LookupOutcome(e.Err)
			logger.InfoContext(ctx, "lookup", "call_id", e.CallID, "outcome", outcome, "duration", e.Duration)
			if m != nil {
				m.LookupDuration.WithLabelValues(outcome).Observe(e.Duration.Seconds())
			}
		},
	}
}

// Chain combines hooks; each event is delivered to every non-nil callback in order.
func Chain(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnCallStart = chain(out.OnCallStart, h.OnCallStart)
		out.OnCallEnd = chain(out.OnCallEnd, h.OnCallEnd)
		out.OnMenuEnter = chain(out.OnMenuEnter, h.OnMenuEnter)
		out.OnDecision = chain(out.OnDecision, h.OnDecision)
		out.OnLookup = chain(out.OnLookup, h.OnLookup)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
