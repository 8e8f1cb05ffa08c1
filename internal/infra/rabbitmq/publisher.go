package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher owns one channel shared by the status, event and DLQ publishers.
type Publisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	msg.ContentType = "application/json"
	msg.Timestamp = time.Now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

type StatusPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewStatusPublisher(pub *Publisher, routingKey string) *StatusPublisher {
	return &StatusPublisher{pub: pub, routingKey: routingKey}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, msg []byte) error {
	return sp.pub.publish(ctx, sp.pub.exchange, sp.routingKey, amqp.Publishing{
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
}

// EventPublisher forwards pipeline events as they happen. Events are
// transient so they are not persisted by the broker.
type EventPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewEventPublisher(pub *Publisher, routingKey string) *EventPublisher {
	return &EventPublisher{pub: pub, routingKey: routingKey}
}

func (ep *EventPublisher) PublishEvent(ctx context.Context, msg []byte) error {
	return ep.pub.publish(ctx, ep.pub.exchange, ep.routingKey, amqp.Publishing{
		Body:         msg,
		DeliveryMode: amqp.Transient,
	})
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.publish(ctx, "", dp.queue, amqp.Publishing{
		Body:         msg,
		DeliveryMode: amqp.Persistent,
		Headers: amqp.Table{
			"x-dlq-reason": reason,
		},
	})
}
