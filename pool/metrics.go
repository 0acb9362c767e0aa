package pool

import "github.com/prometheus/client_golang/prometheus"

// metrics are the pool's Prometheus counters and gauges, collected the
// way luxfi-evm exposes its own state through a *prometheus.Registry
// (see metrics_adapter.go) rather than a bespoke stats struct.
type metrics struct {
	actionsApplied   prometheus.Counter
	actionsIgnored   prometheus.Counter
	actionsBanned    prometheus.Counter
	epochEndVotes    prometheus.Counter
	epochsSettled    prometheus.Counter
	settledSeekers   prometheus.Counter
	settledProviders prometheus.Counter
	currentEpoch     prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		actionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "actions_applied_total",
			Help: "Actions accepted and persisted as staged.",
		}),
		actionsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "actions_ignored_total",
			Help: "Actions dropped as benign (stale epoch, superseded sequence).",
		}),
		actionsBanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "actions_banned_total",
			Help: "Actions rejected as protocol violations.",
		}),
		epochEndVotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "epoch_end_votes_total",
			Help: "EpochEnd votes recorded.",
		}),
		epochsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "epochs_settled_total",
			Help: "Epochs finalized by reaching the price threshold.",
		}),
		settledSeekers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "settled_seeker_msat_total",
			Help: "Total seeker msats paid out across all settlements.",
		}),
		settledProviders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stabilitypool", Name: "settled_provider_msat_total",
			Help: "Total provider msats paid out across all settlements.",
		}),
		currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stabilitypool", Name: "current_epoch_id",
			Help: "The current (settling) epoch id.",
		}),
	}
}

func (m *metrics) describe(ch chan<- *prometheus.Desc) {
	ch <- m.actionsApplied.Desc()
	ch <- m.actionsIgnored.Desc()
	ch <- m.actionsBanned.Desc()
	ch <- m.epochEndVotes.Desc()
	ch <- m.epochsSettled.Desc()
	ch <- m.settledSeekers.Desc()
	ch <- m.settledProviders.Desc()
	ch <- m.currentEpoch.Desc()
}

func (m *metrics) collect(ch chan<- prometheus.Metric) {
	ch <- m.actionsApplied
	ch <- m.actionsIgnored
	ch <- m.actionsBanned
	ch <- m.epochEndVotes
	ch <- m.epochsSettled
	ch <- m.settledSeekers
	ch <- m.settledProviders
	ch <- m.currentEpoch
}
