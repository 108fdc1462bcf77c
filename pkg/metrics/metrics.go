package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_intents_initiated_total",
		Help: "The total number of initiated intents",
	}, []string{"chain_id"})

	IntentsFulfilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_intents_fulfilled_total",
		Help: "The total number of fulfilled intents",
	}, []string{"chain_id", "status"})

	IntentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_intents_settled_total",
		Help: "The total number of settled intents by outcome",
	}, []string{"chain_id", "outcome"})

	SettlementDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_settlement_duplicates_total",
		Help: "Redelivered settlement messages absorbed as no-ops",
	}, []string{"chain_id"})

	CallbackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_target_callback_failures_total",
		Help: "Target callback invocations that returned an error",
	}, []string{"chain_id", "callback"})

	PauseState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speedrun_pause_state",
		Help: "Whether an operation is paused on a chain (1 = paused)",
	}, []string{"chain_id", "operation"})

	RouterForwards = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_router_forwards_total",
		Help: "Inbound intents forwarded by the hub router",
	}, []string{"target_chain"})

	RouterSwapFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_router_swap_failures_total",
		Help: "Routing attempts aborted because the swap missed its minimum output",
	}, []string{"target_chain"})

	TokenAssociations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speedrun_token_associations",
		Help: "Number of live (token, chain) associations in the registry",
	})

	GatewayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedrun_gateway_messages_total",
		Help: "Cross-chain messages by destination chain and delivery result",
	}, []string{"dest_chain", "result"})

	GatewayQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speedrun_gateway_queue_size",
		Help: "Messages waiting for delivery in the gateway queue",
	})

	GatewayDeliveryTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speedrun_gateway_delivery_seconds",
		Help:    "Time taken to deliver a cross-chain message",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"dest_chain"})
)
