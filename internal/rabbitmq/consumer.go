package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

const prefetch = 10

// ErrDrop помечает ошибку обработчика, после которой сообщение не возвращается в очередь.
var ErrDrop = errors.New("drop message")

// Acknowledger подтверждает или возвращает доставку.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// ConsumerMessage запускает потребителя очереди. Одновременно обрабатывается не более prefetch сообщений.
// Ошибка обработчика возвращает сообщение в очередь, кроме ошибок, обёрнутых в ErrDrop.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, handler func([]byte) error, log *slog.Logger) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, prefetch)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					handle(d, d.Body, handler, log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func handle(ack Acknowledger, body []byte, handler func([]byte) error, log *slog.Logger) {
	const op = "rabbitmq.handle"
	if err := handler(body); err != nil {
		requeue := !errors.Is(err, ErrDrop)
		log.Warn("message handler failed", sl.Op(op), slog.Bool("requeue", requeue), sl.Err(err))
		if nackErr := ack.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", sl.Op(op), sl.Err(nackErr))
		}
		return
	}
	if ackErr := ack.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Op(op), sl.Err(ackErr))
	}
}
