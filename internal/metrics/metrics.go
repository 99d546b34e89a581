// Package metrics holds the bot's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the bot updates.
type Metrics struct {
	CommandsExecuted  prometheus.Counter
	Throttled         *prometheus.CounterVec
	TracksStarted     prometheus.Counter
	BroadcastMessages *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jukebox",
			Name:      "commands_executed_total",
			Help:      "Number of commands that reached their handler.",
		}),
		Throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jukebox",
			Name:      "throttled_total",
			Help:      "Number of invocations rejected by a throttle, by scope.",
		}, []string{"scope"}),
		TracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jukebox",
			Name:      "tracks_started_total",
			Help:      "Number of queue entries that started streaming.",
		}),
		BroadcastMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jukebox",
			Name:      "broadcast_messages_total",
			Help:      "Broadcast deliveries, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.CommandsExecuted, m.Throttled, m.TracksStarted, m.BroadcastMessages)
	}
	return m
}
