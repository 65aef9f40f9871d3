package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	splitsTotal     *prometheus.CounterVec
	rebalanceTotal  *prometheus.CounterVec
	fitDuration     prometheus.Histogram
	scheduleEntries prometheus.Gauge
	avgTurnover     prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "factorlab_run_duration_seconds",
				Help:    "End-to-end run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900, 1800},
			},
		),
		splitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_splits_total",
				Help: "Walk-forward splits by outcome",
			},
			[]string{"outcome"},
		),
		rebalanceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_rebalance_dates_total",
				Help: "Rebalance dates by outcome",
			},
			[]string{"outcome"},
		),
		fitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "factorlab_fit_duration_seconds",
				Help:    "Scorer fit duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
		),
		scheduleEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "factorlab_schedule_entries",
				Help: "Rebalance dates in the last position schedule",
			},
		),
		avgTurnover: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "factorlab_avg_turnover",
				Help: "Mean daily one-way turnover of the last run",
			},
		),
	}

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.splitsTotal)
	reg.MustRegister(r.rebalanceTotal)
	reg.MustRegister(r.fitDuration)
	reg.MustRegister(r.scheduleEntries)
	reg.MustRegister(r.avgTurnover)

	return r
}

// RecordRun records a run completion.
func (r *Registry) RecordRun(status string, duration time.Duration) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// RecordSplit counts a walk-forward split outcome.
func (r *Registry) RecordSplit(outcome string) {
	r.splitsTotal.WithLabelValues(outcome).Inc()
}

// RecordRebalance counts a rebalance date outcome.
func (r *Registry) RecordRebalance(outcome string) {
	r.rebalanceTotal.WithLabelValues(outcome).Inc()
}

// ObserveFit records a scorer fit duration.
func (r *Registry) ObserveFit(d time.Duration) {
	r.fitDuration.Observe(d.Seconds())
}

// SetScheduleEntries sets the position schedule size.
func (r *Registry) SetScheduleEntries(n int) {
	r.scheduleEntries.Set(float64(n))
}

// SetAvgTurnover sets the mean daily turnover.
func (r *Registry) SetAvgTurnover(v float64) {
	r.avgTurnover.Set(v)
}

// WriteTextfile writes every metric in the text exposition format, for the node exporter
// textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
