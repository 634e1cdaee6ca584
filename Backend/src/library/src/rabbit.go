package main

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type broker struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
}

func newBroker(url, exchange, queue string) (*broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &broker{conn: conn, ch: ch, exchange: exchange, queue: queue}, nil
}

func (b *broker) close() {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// consumeStatusChanged procesa order.status_changed con ack manual; un error
// del handler re-encola la entrega (GrantOrder es idempotente, así que una
// re-entrega no duplica nada)
func (b *broker) consumeStatusChanged(ctx context.Context, repo *Repository) error {
	q, err := b.ch.QueueDeclare(b.queue, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := b.ch.QueueBind(q.Name, RKOrderStatusChanged, b.exchange, false, nil); err != nil {
		return err
	}
	if err := b.ch.Qos(8, 0, false); err != nil {
		return err
	}
	deliveries, err := b.ch.Consume(q.Name, "library-service", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range deliveries {
			var p OrderStatusChangedPayload
			if err := json.Unmarshal(d.Body, &p); err != nil {
				log.Error().Err(err).Msg("bad status_changed payload, dropping")
				_ = d.Nack(false, false)
				continue
			}
			if p.Status != OrderStatusCompleted {
				_ = d.Ack(false)
				continue
			}
			if err := repo.GrantOrder(ctx, p); err != nil {
				log.Error().Err(err).Int64("order_id", p.OrderID).Msg("grant failed, requeueing")
				_ = d.Nack(false, true)
				continue
			}
			log.Info().
				Int64("order_id", p.OrderID).
				Int64("user_id", p.UserID).
				Int("items", len(p.Items)).
				Msg("library granted")
			_ = d.Ack(false)
		}
		log.Warn().Msg("deliveries channel closed")
	}()
	return nil
}
