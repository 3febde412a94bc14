// Package rabbitmq содержит подключение к RabbitMQ, объявление топологии,
// публикацию и потребление сообщений с напоминаниями.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Обменники и очередь отброшенных сообщений.
const (
	Exchange           = "notifications"
	DeadLetterExchange = "notifications.dlx"
	DeadLetterQueue    = "notifications.dead"
)

// Connect подключается к RabbitMQ, повторяя попытку retries раз с паузой delay.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for attempt := range max(retries, 1) {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		if attempt < retries-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет обменник notifications и привязывает к нему очереди.
// Сообщения, отклонённые без возврата в очередь, попадают в DeadLetterQueue.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = declareTopology(ch, queues); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func declareTopology(ch *amqp.Channel, queues []QueueConfig) error {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", DeadLetterQueue, err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", DeadLetterQueue, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, q.args()); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s with routing key %s: %w", q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}
