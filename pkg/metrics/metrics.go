package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APILatency tracks HTTP request latency by method, path and status.
var APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "teamspace",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "Latency distribution of HTTP requests.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "path", "status"})

// InvitationsCreated counts issued workspace invitations, labelled by outcome of the email side effect.
var InvitationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "teamspace",
	Subsystem: "invitations",
	Name:      "created_total",
	Help:      "Number of workspace invitations created.",
}, []string{"email_sent"})

// InvitationTransitions counts invitation state transitions by terminal status.
var InvitationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "teamspace",
	Subsystem: "invitations",
	Name:      "transitions_total",
	Help:      "Number of invitation state transitions.",
}, []string{"status"})

// EmailsSent counts outbound invitation emails by result.
var EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "teamspace",
	Subsystem: "mail",
	Name:      "sent_total",
	Help:      "Number of outbound email attempts.",
}, []string{"result"})

// CacheRequests counts cache lookups by outcome (hit, miss, error).
var CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "teamspace",
	Subsystem: "cache",
	Name:      "requests_total",
	Help:      "Number of cache lookups by outcome.",
}, []string{"outcome"})
