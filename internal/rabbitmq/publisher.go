package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// Channel покрывает часть *amqp.Channel, нужную для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishReminder публикует наступившее напоминание в обменник notifications с ключом reminder.
// MessageId сообщения равен msg.MessageID. Пустой идентификатор является ошибкой.
func PublishReminder(ch Channel, msg models.ReminderMessage) error {
	const op = "rabbitmq.PublishReminder"
	if msg.MessageID == "" {
		return fmt.Errorf("%s: empty message id for %s", op, msg.Tag)
	}
	err := publishJSON(ch, Exchange, ReminderRoutingKey, amqp.Publishing{
		MessageId: msg.MessageID,
		Timestamp: msg.DispatchedAt,
		Type:      "reminder." + string(msg.Scenario),
	}, msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// publishJSON дополняет props телом в JSON и публикует постоянное сообщение.
func publishJSON(ch Channel, exchange, key string, props amqp.Publishing, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	props.ContentType = "application/json"
	props.DeliveryMode = amqp.Persistent
	props.Body = body
	if props.Timestamp.IsZero() {
		props.Timestamp = time.Now().UTC()
	}
	return ch.Publish(exchange, key, false, false, props)
}
