package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters register on the default registry at init, InitMetrics only
// decides whether anything gets to scrape them.
var (
	DonationsCreated = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_donations_created_total",
		Help: "Donations accepted into the ledger",
	})
	DonationsCompleted = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_donations_completed_total",
		Help: "Donations settled with a receipt",
	})
	DonationsFailed = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_donations_failed_total",
		Help: "Donations the gateway reported as failed",
	})
	WebhookReplays = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_webhook_replays_total",
		Help: "Duplicate gateway notifications absorbed idempotently",
	})
	Refunds = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_refunds_total",
		Help: "Refunds applied, partial or full",
	})
	SweepRuns = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_sweep_runs_total",
		Help: "Recurring donation sweep executions",
	})
	SweepCharges = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_sweep_charges_total",
		Help: "Pending donations created by the recurring sweep",
	})
	SweepErrors = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_sweep_errors_total",
		Help: "Subscription charges that errored during a sweep",
	})
	SubscriptionAutopauses = promauto.NewCounter(prom.CounterOpts{
		Name: "pankind_subscription_autopauses_total",
		Help: "Subscriptions paused after consecutive charge failures",
	})
)
