// Package metrics exposes ledger and domain event counters to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"runepoints/events"
	"runepoints/service"
)

// Collector records ledger outcomes and the points moved by committed transactions
type Collector struct {
	transactions *prometheus.CounterVec
	retries      prometheus.Counter
	duration     *prometheus.HistogramVec
	pointsMoved  *prometheus.CounterVec
	domainEvents *prometheus.CounterVec
}

var _ service.TransactionObserver = (*Collector)(nil)

// NewCollector creates the instruments and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runepoints_ledger_transactions_total",
			Help: "Ledger transactions by final outcome",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runepoints_ledger_retries_total",
			Help: "Transaction attempts rerun after a storage conflict",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runepoints_ledger_transaction_duration_seconds",
			Help:    "Wall time of a ledger transaction including retries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"outcome"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runepoints_points_moved_total",
			Help: "Absolute points credited or debited by transaction type",
		}, []string{"transaction_type"}),
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runepoints_domain_events_total",
			Help: "Domain events published after commit",
		}, []string{"type"}),
	}
	reg.MustRegister(c.transactions, c.retries, c.duration, c.pointsMoved, c.domainEvents)
	return c
}

func (c *Collector) ObserveTransaction(outcome string, attempts int, elapsed time.Duration) {
	c.transactions.WithLabelValues(outcome).Inc()
	if attempts > 1 {
		c.retries.Add(float64(attempts - 1))
	}
	c.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Subscribe counts every domain event and the points carried by balance changes
func (c *Collector) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(c.handle)
}

func (c *Collector) handle(ctx context.Context, event events.Event) {
	c.domainEvents.WithLabelValues(string(event.Type())).Inc()

	change, ok := event.(events.BalanceChangeEvent)
	if !ok {
		return
	}
	amount := change.ChangeAmount
	if amount < 0 {
		amount = -amount
	}
	c.pointsMoved.WithLabelValues(string(change.TransactionType)).Add(float64(amount))
}
