// Package sender доставляет наступившие напоминания владельцам сайтов по электронной почте.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"strings"
	"time"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/smtp"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/rabbitmq"
	"github.com/magabrotheeeer/storeplan-sync/internal/reminder"
)

// Service отправляет письма с напоминаниями.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
	timeout   time.Duration
}

// New создает новый экземпляр Service. timeout ограничивает отправку одного письма.
func New(transport smtp.TransportInterface, log *slog.Logger, timeout time.Duration) *Service {
	return &Service{
		transport: transport,
		log:       log,
		timeout:   timeout,
	}
}

// HandleReminder обрабатывает тело сообщения из очереди напоминаний.
// Нечитаемые сообщения, сообщения без адресата и письма, отвергнутые SMTP с кодом 5xx,
// помечаются rabbitmq.ErrDrop.
func (s *Service) HandleReminder(body []byte) error {
	const op = "sender.HandleReminder"

	var msg models.ReminderMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, errors.Join(rabbitmq.ErrDrop, err))
	}

	log := s.log.With(sl.Op(op), sl.SiteID(msg.SiteID), slog.String("tag", string(msg.Tag)), slog.String("message_id", msg.MessageID))

	to := msg.Payload[reminder.PayloadOwnerEmail]
	if to == "" {
		log.Warn("reminder has no recipient, dropping")
		return fmt.Errorf("%s: no recipient: %w", op, rabbitmq.ErrDrop)
	}
	if !reminder.Known(msg.Scenario) {
		log.Warn("unknown scenario, dropping", slog.String("scenario", string(msg.Scenario)))
		return fmt.Errorf("%s: unknown scenario %q: %w", op, msg.Scenario, rabbitmq.ErrDrop)
	}

	content := reminder.ContentFor(msg.Scenario, msg.Payload)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sendEmail(ctx, []string{to}, content.Title, content.Body); err != nil {
		if permanent(err) {
			log.Warn("smtp rejected reminder permanently, dropping", sl.Err(err))
			return fmt.Errorf("%s: %w", op, errors.Join(rabbitmq.ErrDrop, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("reminder delivered")
	return nil
}

// permanent сообщает, что SMTP-сервер отверг письмо с кодом 5xx: повтор не поможет.
func permanent(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}

func (s *Service) sendEmail(ctx context.Context, to []string, subject, bodyText string) error {
	from := s.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect(ctx)
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Debug("email sent successfully", slog.Any("to", to))
	return nil
}
