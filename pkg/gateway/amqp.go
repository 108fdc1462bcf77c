package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/metrics"
)

// AMQPGateway is a broker-backed transport. Each destination chain consumes
// its own durable queue; a handler error nacks the delivery back onto the
// queue, which is exactly the at-least-once redelivery the settlement path
// is built to absorb.
type AMQPGateway struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	prefix string
	logger logger.Logger
}

// AMQPConfig holds the broker connection parameters
type AMQPConfig struct {
	URL      string
	Prefix   string
	Prefetch int
}

// NewAMQPGateway connects to the broker
func NewAMQPGateway(cfg AMQPConfig, log logger.Logger) (*AMQPGateway, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "speedrun"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp broker: %v", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %v", err)
	}
	if cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to set amqp qos: %v", err)
		}
	}
	return &AMQPGateway{conn: conn, ch: ch, prefix: prefix, logger: log}, nil
}

// Close releases the broker connection
func (g *AMQPGateway) Close() error {
	if g.ch != nil {
		g.ch.Close()
	}
	return g.conn.Close()
}

func (g *AMQPGateway) queueName(chainID uint64) string {
	return fmt.Sprintf("%s.chain.%d", g.prefix, chainID)
}

// Endpoint returns the outbound transport bound to a source chain
func (g *AMQPGateway) Endpoint(chainID uint64) Sender {
	return &amqpEndpoint{gateway: g, chainID: chainID}
}

type amqpEndpoint struct {
	gateway *AMQPGateway
	chainID uint64
}

// SendOutbound implements Sender
func (e *amqpEndpoint) SendOutbound(ctx context.Context, destChain uint64, sender []byte, payload []byte, gasLimit uint64) error {
	g := e.gateway
	queue := g.queueName(destChain)
	if _, err := g.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %v", queue, err)
	}

	msg := Message{
		ID:          uuid.NewString(),
		SourceChain: e.chainID,
		DestChain:   destChain,
		Sender:      sender,
		Payload:     payload,
		GasLimit:    gasLimit,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %v", err)
	}

	err = g.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %v", err)
	}
	return nil
}

// Consume delivers messages for a chain to its handler until ctx is done.
// Deliveries are manually acknowledged; a handler error requeues.
func (g *AMQPGateway) Consume(ctx context.Context, chainID uint64, handler Handler) error {
	queue := g.queueName(chainID)
	if _, err := g.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %v", queue, err)
	}

	deliveries, err := g.ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %v", queue, err)
	}

	chainLabel := strconv.FormatUint(chainID, 10)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp deliveries channel closed for chain %d", chainID)
			}
			var msg Message
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				// Undecodable messages can never succeed; drop them
				g.logger.ErrorWithChain(chainID, "Dropping undecodable message %s: %v", delivery.MessageId, err)
				_ = delivery.Nack(false, false)
				continue
			}
			if err := handler.OnInboundCall(ctx, msg.SourceChain, msg.Sender, msg.Payload); err != nil {
				g.logger.ErrorWithChain(chainID, "Handler rejected message %s, requeueing: %v", msg.ID, err)
				metrics.GatewayMessages.WithLabelValues(chainLabel, "retried").Inc()
				_ = delivery.Nack(false, true)
				continue
			}
			metrics.GatewayMessages.WithLabelValues(chainLabel, "delivered").Inc()
			_ = delivery.Ack(false)
		}
	}
}
