package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync engine
	SnapshotsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_snapshots_received_total",
			Help: "Full snapshots delivered by the remote subscription",
		},
	)

	ViewMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_view_messages",
			Help: "Messages in the currently published view",
		},
	)

	SubscriptionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_subscription_errors_total",
			Help: "Remote subscriptions that stopped delivering",
		},
	)

	// Local cache
	CacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_cache_loads_total",
			Help: "Cache loads by result",
		},
		[]string{"result"}, // "hit", "miss", "corrupt", "error"
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_cache_writes_total",
			Help: "Cache writes by result",
		},
		[]string{"result"}, // "ok", "error", "coalesced"
	)

	// Composer
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_messages_sent_total",
			Help: "Messages submitted by the composer",
		},
		[]string{"kind", "result"}, // kind: "text"|"attachment"
	)
)
