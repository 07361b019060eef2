package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the indicator engine.
type Metrics struct {
	RowsAppended   *prometheus.CounterVec // labels: timeframe
	WindowsFetched *prometheus.CounterVec // labels: timeframe
	CandlesDropped *prometheus.CounterVec // labels: timeframe
	FetchErrors    *prometheus.CounterVec // labels: timeframe, kind
	PassDuration   *prometheus.HistogramVec
	ComputeDur     prometheus.Histogram

	InvalidInstruments prometheus.Gauge

	// Exchange circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter

	// Publication
	SinkErrors *prometheus.CounterVec // labels: sink
	WSDrops    prometheus.Counter
}

// NewMetrics creates the metrics and registers them on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RowsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_rows_appended_total",
			Help: "Indicator rows committed to the store",
		}, []string{"timeframe"}),
		WindowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_windows_fetched_total",
			Help: "Backfill windows fetched from the exchange",
		}, []string{"timeframe"}),
		CandlesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_candles_dropped_total",
			Help: "Fetched candles discarded as duplicate, unordered or still open",
		}, []string{"timeframe"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_errors_total",
			Help: "Per-instrument errors by kind (invalid, circuit_open, fetch, store, compute)",
		}, []string{"timeframe", "kind"}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indengine_pass_duration_seconds",
			Help:    "Duration of one shard pass over its instruments",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"timeframe"}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indengine_compute_duration_seconds",
			Help:    "Indicator computation and commit latency per window",
			Buckets: prometheus.DefBuckets,
		}),
		InvalidInstruments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_invalid_instruments",
			Help: "Instruments skipped for the rest of the process lifetime",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indengine_exchange_circuit_breaker_state",
			Help: "Exchange circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_exchange_circuit_breaker_trips_total",
			Help: "Times the exchange circuit breaker opened",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indengine_sink_errors_total",
			Help: "Rows a publication sink failed to accept",
		}, []string{"sink"}),
		WSDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indengine_ws_drops_total",
			Help: "Row messages dropped for slow WebSocket clients",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RowsAppended,
			m.WindowsFetched,
			m.CandlesDropped,
			m.FetchErrors,
			m.PassDuration,
			m.ComputeDur,
			m.InvalidInstruments,
			m.BreakerState,
			m.BreakerTrips,
			m.SinkErrors,
			m.WSDrops,
		)
	}
	return m
}
