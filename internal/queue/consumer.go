package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatstore/internal/channel"
)

const (
	prefetch   = 50
	maxBackoff = 30 * time.Second
)

// Handler routes one event. It must not return before the event is done.
type Handler func(ctx context.Context, ev channel.InboundEvent)

// Consumer reads the inbound queue and hands each delivery to Handler on
// its own goroutine. The router's per-user lock keeps one user's events
// in order.
type Consumer struct {
	url     string
	queue   string
	handler Handler
	wg      sync.WaitGroup
}

func NewConsumer(url, queue string, handler Handler) *Consumer {
	return &Consumer{url: url, queue: queue, handler: handler}
}

// Run consumes until ctx is cancelled, redialing with exponential
// backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("queue: failed to dial broker: %v; retrying in %s", err, backoff)
			if !wait(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("queue: consume loop ended: %v; reconnecting", err)
		if !wait(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()
	// deliveries in flight are acked before the channel closes
	defer c.wg.Wait()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Printf("queue: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.dispatch(ctx, d)
		}
	}
}

// dispatch handles d on its own goroutine. The handler's context is not
// cancelled by shutdown, so an accepted delivery is routed to the end.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	hctx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.handle(hctx, d)
	}()
}

// handle routes one delivery. Malformed bodies are rejected without
// requeue so they cannot loop.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ev, err := decode(d.Body)
	if err != nil {
		log.Printf("queue: handle message failed: %v", err)
		_ = d.Nack(false, false)
		return
	}
	c.handler(ctx, ev)
	_ = d.Ack(false)
}
