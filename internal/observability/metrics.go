package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homecare", Name: "match_passes_total",
		Help: "Total matching passes executed"})
	MatchCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "homecare", Name: "match_candidates",
		Help:    "Eligible candidates per matching pass",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32}})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "homecare", Name: "match_latency_seconds",
		Help: "Matching pass latency", Buckets: prometheus.DefBuckets})

	OffersSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homecare", Name: "offers_sent_total",
		Help: "Offers dispatched to nurses"})
	OfferResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homecare", Name: "offer_responses_total",
		Help: "Nurse responses to offers by outcome"},
		[]string{"outcome"}) // accepted, declined, stale
	OffersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homecare", Name: "offers_expired_total",
		Help: "Requests expired past their response deadline"})

	NotifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homecare", Name: "notify_failures_total",
		Help: "Notification deliveries that reported failure"})
)
