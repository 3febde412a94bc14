// Package smtp предоставляет SMTP-транспорт и интерфейсы для отправки писем.
package smtp

import (
	"context"
	"errors"
	"io"
)

var errNoStartTLS = errors.New("STARTTLS not advertised")

// Client интерфейс для SMTP клиента.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface интерфейс для SMTP транспорта.
type TransportInterface interface {
	Connect(ctx context.Context) (Client, error)
	GetSMTPUser() string
}
