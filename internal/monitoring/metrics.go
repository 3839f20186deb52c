package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects pipeline instrumentation. All collectors are registered on
// the default registry and exposed through promhttp.
type Metrics struct {
	ticksTotal          prometheus.Counter
	tickDuration        prometheus.Histogram
	walletsPolledTotal  *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	fetchedTransactions *prometheus.CounterVec
	ingestedNewTotal    prometheus.Counter
	scoringTotal        *prometheus.CounterVec
	scoringDuration     prometheus.Histogram
	fallbacksTotal      prometheus.Counter
	alertsTotal         *prometheus.CounterVec
	notifyFailuresTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ticksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aml_monitor_scheduler_ticks_total",
			Help: "Total number of scheduler ticks executed",
		}),
		tickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aml_monitor_scheduler_tick_duration_seconds",
			Help:    "Scheduler tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		walletsPolledTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aml_monitor_wallets_polled_total",
			Help: "Total number of wallet pipeline runs by outcome",
		}, []string{"status"}),
		fetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aml_monitor_chain_fetch_duration_seconds",
			Help:    "Chain provider fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"blockchain"}),
		fetchedTransactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aml_monitor_chain_transactions_fetched_total",
			Help: "Total raw transactions returned by chain providers",
		}, []string{"blockchain"}),
		ingestedNewTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aml_monitor_transactions_ingested_total",
			Help: "Total newly persisted transactions",
		}),
		scoringTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aml_monitor_scoring_total",
			Help: "Total scoring runs by tier",
		}, []string{"tier"}),
		scoringDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aml_monitor_scoring_duration_seconds",
			Help:    "Risk scoring duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		fallbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aml_monitor_scoring_fallbacks_total",
			Help: "Total times the remote analyzer was unavailable and the rule scorer was used",
		}),
		alertsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aml_monitor_alerts_emitted_total",
			Help: "Total alerts emitted by severity",
		}, []string{"severity"}),
		notifyFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aml_monitor_notification_failures_total",
			Help: "Total notification sink publish failures",
		}),
	}
}

func (m *Metrics) RecordTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.tickDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordWalletPolled(status string) {
	if m == nil {
		return
	}
	m.walletsPolledTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordFetch(blockchain string, count int, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(blockchain).Observe(duration.Seconds())
	m.fetchedTransactions.WithLabelValues(blockchain).Add(float64(count))
}

func (m *Metrics) RecordIngested(count int) {
	if m == nil {
		return
	}
	m.ingestedNewTotal.Add(float64(count))
}

func (m *Metrics) RecordScoring(tier string, duration time.Duration) {
	if m == nil {
		return
	}
	m.scoringTotal.WithLabelValues(tier).Inc()
	m.scoringDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.fallbacksTotal.Inc()
}

func (m *Metrics) RecordAlert(severity string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(severity).Inc()
}

func (m *Metrics) RecordNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFailuresTotal.Inc()
}
