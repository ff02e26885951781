// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chaogpt"

var (
	ChatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chats_total",
		Help:      "Chat requests by outcome.",
	}, []string{"outcome"})

	TokensStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_streamed_total",
		Help:      "Assistant tokens relayed to clients.",
	})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejections_total",
		Help:      "Requests rejected before reaching the upstream model.",
	}, []string{"reason"})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_streams",
		Help:      "Streams currently in flight.",
	})
)

const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"

	ReasonRateLimit = "rate_limit"
	ReasonSpam      = "spam"
	ReasonChaos     = "chaos_score"
)
