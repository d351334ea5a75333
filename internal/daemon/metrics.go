package daemon

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus instruments for the lifecycle controller
// and its queue, registered once per process.
type metrics struct {
	once sync.Once

	leasesActive      prometheus.Gauge
	sessionsActive    prometheus.Gauge
	suicideTransitions *prometheus.CounterVec
	upgradesStarted   prometheus.Counter
	upgradesSucceeded prometheus.Counter
	upgradesRolledBack prometheus.Counter
	healthFailures    prometheus.Counter
}

var daemonMetrics metrics

func (m *metrics) init() {
	m.once.Do(func() {
		m.leasesActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sari_daemon_leases_active", Help: "Currently held client leases.",
		})
		m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sari_daemon_sessions_active", Help: "Currently live workspace sessions.",
		})
		m.suicideTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sari_daemon_suicide_transitions_total", Help: "Suicide state machine transitions by target state.",
		}, []string{"state"})
		m.upgradesStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sari_daemon_upgrades_started_total", Help: "Blue/green upgrades started.",
		})
		m.upgradesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sari_daemon_upgrades_succeeded_total", Help: "Blue/green upgrades that completed a switch.",
		})
		m.upgradesRolledBack = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sari_daemon_upgrades_rolled_back_total", Help: "Blue/green upgrades rolled back after repeated health failures.",
		})
		m.healthFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sari_daemon_health_failures_total", Help: "Post-switch health probe failures.",
		})

		prometheus.MustRegister(
			m.leasesActive, m.sessionsActive, m.suicideTransitions,
			m.upgradesStarted, m.upgradesSucceeded, m.upgradesRolledBack, m.healthFailures,
		)
	})
}

func recordSuicideTransition(state SuicideState) {
	daemonMetrics.init()
	daemonMetrics.suicideTransitions.WithLabelValues(string(state)).Inc()
}

func recordUpgradeStarted() {
	daemonMetrics.init()
	daemonMetrics.upgradesStarted.Inc()
}

func recordUpgradeSucceeded() {
	daemonMetrics.init()
	daemonMetrics.upgradesSucceeded.Inc()
}

func recordUpgradeRolledBack() {
	daemonMetrics.init()
	daemonMetrics.upgradesRolledBack.Inc()
}

func recordHealthFailure() {
	daemonMetrics.init()
	daemonMetrics.healthFailures.Inc()
}

func setLeasesActive(n int) {
	daemonMetrics.init()
	daemonMetrics.leasesActive.Set(float64(n))
}

func setSessionsActive(n int) {
	daemonMetrics.init()
	daemonMetrics.sessionsActive.Set(float64(n))
}
