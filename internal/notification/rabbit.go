package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gravadigital/billetterie-api/internal/logger"
)

const routingKey = "email"

// RabbitClient owns the AMQP connection used to queue notifications
type RabbitClient struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
	// amqp channels are not safe for concurrent publishing
	mu  sync.Mutex
	log *log.Logger
}

// NewRabbitClient connects and declares a durable direct exchange bound to a durable queue
func NewRabbitClient(url, exchange, queue string) (*RabbitClient, error) {
	l := logger.Notification("rabbitmq")

	conn, err := amqp.Dial(url)
	if err != nil {
		l.Error("Failed to connect to RabbitMQ", "error", err)
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	c := &RabbitClient{conn: conn, channel: ch, exchange: exchange, queue: queue, log: l}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	l.Info("RabbitMQ initialized", "exchange", exchange, "queue", queue)
	return c, nil
}

// Publish sends a persistent JSON message
func (c *RabbitClient) Publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.channel.PublishWithContext(ctx, c.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Consume hands every delivery to handler. Failed deliveries are requeued once, then dropped.
func (c *RabbitClient) Consume(ctx context.Context, handler func(context.Context, []byte) error) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.log.Info("Started consuming", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(ctx, d.Body); err != nil {
				c.log.Warn("Failed to process message", "redelivered", d.Redelivered, "error", err)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close closes the channel and the connection
func (c *RabbitClient) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info("RabbitMQ connection closed")
}

// QueueNotifier publishes requests to RabbitMQ for a Consumer to deliver
type QueueNotifier struct {
	client *RabbitClient
	log    *log.Logger
}

func NewQueueNotifier(client *RabbitClient) *QueueNotifier {
	return &QueueNotifier{client: client, log: logger.Notification("rabbitmq")}
}

func (n *QueueNotifier) Notify(ctx context.Context, req Request) {
	body, err := json.Marshal(req)
	if err != nil {
		n.log.Error("Failed to encode notification", "kind", req.Kind, "error", err)
		return
	}

	// detached from the request so a finished HTTP call does not cancel the publish
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := n.client.Publish(pubCtx, body); err != nil {
		n.log.Error("Failed to publish notification", "kind", req.Kind, "recipient", req.Recipient, "error", err)
		return
	}
	n.log.Debug("Notification queued", "kind", req.Kind, "recipient", req.Recipient)
}

// Consumer reads queued requests and delivers them through a Dispatcher
type Consumer struct {
	client     *RabbitClient
	dispatcher *Dispatcher
	done       chan struct{}
	cancel     context.CancelFunc
	log        *log.Logger
}

func NewConsumer(client *RabbitClient, dispatcher *Dispatcher) *Consumer {
	return &Consumer{
		client:     client,
		dispatcher: dispatcher,
		done:       make(chan struct{}),
		log:        logger.Notification("rabbitmq"),
	}
}

// Start consumes in the background until Stop is called
func (c *Consumer) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		defer close(c.done)
		if err := c.client.Consume(cctx, c.handle); err != nil {
			c.log.Error("Consumer stopped", "error", err)
		}
	}()
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		// a malformed message will never succeed; ack it away
		c.log.Error("Discarding malformed notification", "error", err)
		return nil
	}

	dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	return c.dispatcher.Deliver(dctx, req)
}

// Stop cancels consumption and waits for the in-flight message
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}
