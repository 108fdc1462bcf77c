// Package gateway is the cross-chain messaging boundary. The core never
// blocks on a remote chain: an intent contract hands the gateway an outbound
// payload and, some time later, the gateway invokes the destination handler.
// Delivery is assumed reliable-but-unordered and at-least-once; handlers own
// idempotency.
package gateway

import (
	"context"
	"errors"
)

// ErrNoHandler is returned when a message targets a chain with no registered handler
var ErrNoHandler = errors.New("no handler for destination chain")

// Sender is the outbound half of the transport, bound to one source chain
type Sender interface {
	// SendOutbound queues a payload for delivery to the destination chain.
	// gasLimit is the execution budget handed to the transport for the
	// remote call; zero means the transport default.
	SendOutbound(ctx context.Context, destChain uint64, sender []byte, payload []byte, gasLimit uint64) error
}

// Handler is the inbound half: a contract entry point the transport invokes.
// sender is the transport-authenticated identity of the remote caller.
type Handler interface {
	OnInboundCall(ctx context.Context, sourceChain uint64, sender []byte, payload []byte) error
}

// EndpointProvider hands out per-chain outbound endpoints; both the local
// and the broker-backed gateway implement it
type EndpointProvider interface {
	Endpoint(chainID uint64) Sender
}

// Message is the transport envelope for one cross-chain call
type Message struct {
	ID          string `json:"id"`
	SourceChain uint64 `json:"source_chain"`
	DestChain   uint64 `json:"dest_chain"`
	Sender      []byte `json:"sender"`
	Payload     []byte `json:"payload"`
	GasLimit    uint64 `json:"gas_limit"`
	Attempts    int    `json:"attempts"`
}
