package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

var ErrNotConfirmed = errors.New("rabbitmq: publish not confirmed")

// Publisher publishes with broker confirms. Publishes are serialised so each
// confirmation pairs with its message.
type Publisher struct {
	mu             sync.Mutex
	ch             *amqp091.Channel
	confirms       <-chan amqp091.Confirmation
	exchange       string
	routingKey     string
	confirmTimeout time.Duration
}

func NewPublisher(conn *amqp091.Connection, exchange, routingKey string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("AMQP connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, err
	}

	confirms := ch.NotifyPublish(make(chan amqp091.Confirmation, 1))

	return &Publisher{
		ch:             ch,
		confirms:       confirms,
		exchange:       exchange,
		routingKey:     routingKey,
		confirmTimeout: 5 * time.Second,
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, event EventPayload) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return errors.New("AMQP channel is nil")
	}

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.ID.String(),
			Type:         event.Type,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	select {
	case confirm, ok := <-p.confirms:
		if !ok || !confirm.Ack {
			return ErrNotConfirmed
		}
		return nil
	case <-time.After(p.confirmTimeout):
		return errors.New("rabbitmq: publish confirm timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
