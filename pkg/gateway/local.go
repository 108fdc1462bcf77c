package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/speedrun-hq/speedrun-go/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/metrics"
)

// DeliveryMode selects how a LocalGateway moves queued messages
type DeliveryMode int

const (
	// DeliverInline delivers synchronously inside SendOutbound. A handler
	// error propagates to the sender, which gives initiation its atomic
	// all-or-nothing behavior in single-process deployments.
	DeliverInline DeliveryMode = iota
	// DeliverQueued delivers from background workers with retry and
	// per-destination circuit breaking
	DeliverQueued
	// DeliverManual parks messages until the caller steps them through;
	// tests use it to reorder and duplicate deliveries
	DeliverManual
)

// BreakerConfig holds circuit breaker settings for queued delivery
type BreakerConfig struct {
	Enabled      bool
	Threshold    int
	Window       time.Duration
	ResetTimeout time.Duration
}

// LocalGateway is an in-process transport connecting the chains of one
// simulation or single-binary deployment
type LocalGateway struct {
	mode        DeliveryMode
	maxAttempts int
	backoffBase time.Duration
	logger      logger.Logger

	mu       sync.Mutex
	handlers map[uint64]Handler
	pending  []Message
	breakers map[uint64]*circuitbreaker.CircuitBreaker
	brkCfg   BreakerConfig

	queue chan Message
	wg    sync.WaitGroup
}

// NewLocalGateway creates a gateway in the given delivery mode
func NewLocalGateway(mode DeliveryMode, maxAttempts int, brkCfg BreakerConfig, log logger.Logger) *LocalGateway {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &LocalGateway{
		mode:        mode,
		maxAttempts: maxAttempts,
		backoffBase: 100 * time.Millisecond,
		logger:      log,
		handlers:    make(map[uint64]Handler),
		breakers:    make(map[uint64]*circuitbreaker.CircuitBreaker),
		brkCfg:      brkCfg,
		queue:       make(chan Message, 256),
	}
}

// Register binds the inbound handler for a chain
func (g *LocalGateway) Register(chainID uint64, handler Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[chainID] = handler
	g.breakers[chainID] = circuitbreaker.NewCircuitBreaker(
		g.brkCfg.Enabled, g.brkCfg.Threshold, g.brkCfg.Window, g.brkCfg.ResetTimeout, g.logger,
	)
}

// Breaker returns the delivery circuit breaker for a chain, if registered
func (g *LocalGateway) Breaker(chainID uint64) *circuitbreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breakers[chainID]
}

// Endpoint returns the outbound transport bound to a source chain
func (g *LocalGateway) Endpoint(chainID uint64) Sender {
	return &endpoint{gateway: g, chainID: chainID}
}

type endpoint struct {
	gateway *LocalGateway
	chainID uint64
}

// SendOutbound implements Sender
func (e *endpoint) SendOutbound(ctx context.Context, destChain uint64, sender []byte, payload []byte, gasLimit uint64) error {
	msg := Message{
		ID:          uuid.NewString(),
		SourceChain: e.chainID,
		DestChain:   destChain,
		Sender:      sender,
		Payload:     payload,
		GasLimit:    gasLimit,
	}
	return e.gateway.submit(ctx, msg)
}

func (g *LocalGateway) submit(ctx context.Context, msg Message) error {
	switch g.mode {
	case DeliverInline:
		return g.deliver(ctx, msg)
	case DeliverQueued:
		select {
		case g.queue <- msg:
			metrics.GatewayQueueSize.Inc()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default: // DeliverManual
		g.mu.Lock()
		g.pending = append(g.pending, msg)
		g.mu.Unlock()
		return nil
	}
}

// Start launches delivery workers for queued mode
func (g *LocalGateway) Start(ctx context.Context, workers int) {
	if g.mode != DeliverQueued {
		return
	}
	if workers <= 0 {
		workers = 1
	}
	g.logger.Info("Starting %d gateway delivery workers", workers)
	for i := 0; i < workers; i++ {
		g.wg.Add(1)
		go g.worker(ctx, i)
	}
}

// Wait blocks until all delivery workers have stopped
func (g *LocalGateway) Wait() {
	g.wg.Wait()
}

func (g *LocalGateway) worker(ctx context.Context, id int) {
	defer g.wg.Done()
	for {
		select {
		case <-ctx.Done():
			g.logger.Debug("Gateway worker %d shutting down", id)
			return
		case msg := <-g.queue:
			metrics.GatewayQueueSize.Dec()
			g.process(ctx, msg)
		}
	}
}

// process delivers one message, retrying with backoff until maxAttempts
func (g *LocalGateway) process(ctx context.Context, msg Message) {
	if brk := g.Breaker(msg.DestChain); brk != nil && brk.IsOpen() {
		g.logger.DebugWithChain(msg.DestChain, "Circuit open, requeueing message %s", msg.ID)
		g.requeue(ctx, msg)
		return
	}

	start := time.Now()
	err := g.deliver(ctx, msg)
	chainLabel := strconv.FormatUint(msg.DestChain, 10)
	metrics.GatewayDeliveryTime.WithLabelValues(chainLabel).Observe(time.Since(start).Seconds())

	if err == nil {
		if brk := g.Breaker(msg.DestChain); brk != nil {
			brk.RecordSuccess()
		}
		metrics.GatewayMessages.WithLabelValues(chainLabel, "delivered").Inc()
		return
	}

	g.logger.ErrorWithChain(msg.DestChain, "Delivery of message %s failed (attempt %d): %v", msg.ID, msg.Attempts+1, err)
	if brk := g.Breaker(msg.DestChain); brk != nil {
		brk.RecordFailure()
	}

	msg.Attempts++
	if msg.Attempts >= g.maxAttempts {
		// Parked, not dropped: the message stays visible in metrics and
		// logs for operator replay. At-least-once, never silent loss.
		metrics.GatewayMessages.WithLabelValues(chainLabel, "parked").Inc()
		g.logger.ErrorWithChain(msg.DestChain, "Parking message %s after %d attempts", msg.ID, msg.Attempts)
		return
	}
	metrics.GatewayMessages.WithLabelValues(chainLabel, "retried").Inc()
	g.requeue(ctx, msg)
}

func (g *LocalGateway) requeue(ctx context.Context, msg Message) {
	backoff := g.backoffBase * time.Duration(1<<uint(msg.Attempts))
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
			select {
			case g.queue <- msg:
				metrics.GatewayQueueSize.Inc()
			case <-ctx.Done():
			}
		}
	}()
}

// deliver hands the message to the destination handler
func (g *LocalGateway) deliver(ctx context.Context, msg Message) error {
	g.mu.Lock()
	handler, ok := g.handlers[msg.DestChain]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoHandler, msg.DestChain)
	}
	return handler.OnInboundCall(ctx, msg.SourceChain, msg.Sender, msg.Payload)
}

// Pending returns a copy of the undelivered messages in manual mode
func (g *LocalGateway) Pending() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Message(nil), g.pending...)
}

// DeliverNext pops and delivers the oldest pending message in manual mode
func (g *LocalGateway) DeliverNext(ctx context.Context) error {
	g.mu.Lock()
	if len(g.pending) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("no pending messages")
	}
	msg := g.pending[0]
	g.pending = g.pending[1:]
	g.mu.Unlock()
	return g.deliver(ctx, msg)
}

// Drain delivers pending messages in order until the queue is empty,
// including messages enqueued by the deliveries themselves
func (g *LocalGateway) Drain(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := len(g.pending)
		g.mu.Unlock()
		if remaining == 0 {
			return nil
		}
		if err := g.DeliverNext(ctx); err != nil {
			return err
		}
	}
}

// Redeliver replays a message that was already delivered. Tests use it to
// exercise the at-least-once tolerance of settlement.
func (g *LocalGateway) Redeliver(ctx context.Context, msg Message) error {
	return g.deliver(ctx, msg)
}
