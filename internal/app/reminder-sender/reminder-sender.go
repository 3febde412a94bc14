// Package remindersender собирает сервис доставки напоминаний: читает наступившие
// напоминания из RabbitMQ и отправляет их владельцам сайтов по SMTP.
package remindersender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/storeplan-sync/internal/config"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/smtp"
	"github.com/magabrotheeeer/storeplan-sync/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/storeplan-sync/internal/services/sender"
)

const sendTimeout = 30 * time.Second

// App представляет приложение отправки напоминаний.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к RabbitMQ и настраивает SMTP-транспорт.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(transport, logger, sendTimeout),
		logger:        logger,
	}, nil
}

// Run потребляет очередь напоминаний до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.ReminderQueue, a.senderService.HandleReminder, a.logger)
	if err != nil {
		a.logger.Error("failed to start reminder consumer", sl.Err(err))
		a.close()
		return err
	}

	<-ctx.Done()
	a.logger.Info("reminder sender shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
