package main

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
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
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Close() {
	if r == nil {
		return
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// PublishJSON tolera r == nil (broker deshabilitado en dev/tests); un fallo
// de publicación se loguea y no tumba la operación que ya se comprometió.
func (r *Rabbit) PublishJSON(routingKey string, v any) {
	if r == nil {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("rk", routingKey).Msg("event marshal failed")
		return
	}
	err = r.ch.PublishWithContext(context.Background(), r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		log.Warn().Err(err).Str("rk", routingKey).Msg("event publish failed")
	}
}
