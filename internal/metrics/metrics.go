package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var EvalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "modguard_eval_duration_sec",
	Help: "Total duration of per-message pipeline evaluation",
})

var MessagesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_messages_evaluated",
	Help: "Number of messages run through the moderation pipeline",
})

var ViolationsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_violations_detected",
	Help: "Number of violations detected, by kind",
}, []string{"kind"})

var ActionsAttempted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_actions_attempted",
	Help: "Number of dispatcher actions attempted, by action and result",
}, []string{"action", "result"})

var ActionsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_actions_suppressed",
	Help: "Number of violations suppressed by dedupe or cooldown",
})

var SignatureFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_signature_fetches",
	Help: "Number of partial byte-signature fetches, by result",
}, []string{"result"})

var FeedRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "modguard_feed_refreshes",
	Help: "Number of remote blacklist feed refreshes, by result",
}, []string{"result"})

var ConfigLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "modguard_config_load_errors",
	Help: "Number of guild config loads that failed open",
})
