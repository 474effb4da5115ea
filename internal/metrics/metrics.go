// Package metrics exposes vault command and balance metrics to Prometheus.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
	"fdvault/internal/util"
)

const namespace = "fdvault"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	distributions   prometheus.Counter
	distributed     prometheus.Counter
	accounts        prometheus.Gauge
	activeDeposits  prometheus.Gauge
	lockedTokens    prometheus.Gauge
	auditFailures   *prometheus.CounterVec
}

// New creates the vault metrics and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Ledger commands by command and result kind.",
		}, []string{"command", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Ledger command latency including audit writes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"command"}),
		distributions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interest_distributions_total",
			Help:      "Completed global interest passes.",
		}),
		distributed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interest_distributed_tokens_total",
			Help:      "mT credited by global interest passes.",
		}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "accounts",
			Help:      "Accounts holding funds or deposits.",
		}),
		activeDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_deposits",
			Help:      "Fixed deposits not yet withdrawn.",
		}),
		lockedTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locked_tokens",
			Help:      "mT principal held in active fixed deposits.",
		}),
		auditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit log or event publish failures by stage.",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.distributions,
		m.distributed,
		m.accounts,
		m.activeDeposits,
		m.lockedTokens,
		m.auditFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDB exports connection pool stats of the audit database.
func (m *Metrics) RegisterDB(db *sql.DB, name string) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// ObserveCommand counts one command under its error kind and records its latency.
func (m *Metrics) ObserveCommand(command string, err error, elapsed time.Duration) {
	m.commands.WithLabelValues(command, util.ErrorKind(err)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveDistribution records a completed global interest pass.
func (m *Metrics) ObserveDistribution(total decimal.Decimal) {
	m.distributions.Inc()
	m.distributed.Add(total.InexactFloat64())
}

// ObserveStats publishes a vault aggregate.
func (m *Metrics) ObserveStats(stats domain.VaultStats) {
	m.accounts.Set(float64(stats.Accounts))
	m.activeDeposits.Set(float64(stats.ActiveDeposits))
	m.lockedTokens.Set(stats.TotalLocked.InexactFloat64())
}

// AuditFailure counts a failed audit write or publish.
func (m *Metrics) AuditFailure(stage string) {
	m.auditFailures.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
