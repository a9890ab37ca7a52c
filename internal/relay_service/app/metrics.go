package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboundSMSCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_relay",
			Name:      "inbound_sms_total",
			Help:      "Inbound SMS relayed into chat, by outcome.",
		},
		[]string{"outcome"}, // new_thread, thread_reply, race_lost, failed
	)

	outboundSMSCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_relay",
			Name:      "outbound_sms_total",
			Help:      "SMS sent to drivers, by source and outcome.",
		},
		[]string{"source", "outcome"}, // source: thread_reply, dialog, intro
	)

	directorySearchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_relay",
			Name:      "directory_searches_total",
			Help:      "Driver directory name searches, by result.",
		},
		[]string{"result"}, // none, single, multiple, error
	)

	authorizationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch_relay",
			Name:      "authorizations_total",
			Help:      "OAuth code exchanges, by outcome.",
		},
		[]string{"outcome"},
	)
)

func outcomeLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
