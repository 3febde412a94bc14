package rabbitmq

import "github.com/streadway/amqp"

// QueueConfig описывает очередь и ключ маршрутизации, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
	DeadLetter bool // отклонённые сообщения уходят в DeadLetterExchange
}

func (q QueueConfig) args() amqp.Table {
	if !q.DeadLetter {
		return nil
	}
	return amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
}

// Очередь наступивших напоминаний.
const (
	ReminderQueue      = "notifications.reminders"
	ReminderRoutingKey = "reminder"
)

// GetNotificationQueues возвращает очереди, которые нужно объявить при старте.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: ReminderQueue, RoutingKey: ReminderRoutingKey, DeadLetter: true},
	}
}
