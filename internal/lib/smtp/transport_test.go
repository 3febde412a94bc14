package smtp

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storeplan-sync/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// fakeServer отвечает как SMTP-сервер без поддержки STARTTLS.
func fakeServer(t *testing.T) (host, port string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "EHLO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 AUTH PLAIN\r\n"))
			case strings.HasPrefix(line, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestConnect_RequiresStartTLS(t *testing.T) {
	host, port := fakeServer(t)
	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port, SMTPUser: "bot@example.com"}, newNoopLogger())

	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoStartTLS)
}

func TestConnect_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	tr := NewTransport(config.SMTP{SMTPHost: host, SMTPPort: port}, newNoopLogger())
	_, err = tr.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial SMTP server")
}

func TestGetSMTPUser(t *testing.T) {
	tr := NewTransport(config.SMTP{SMTPUser: "bot@example.com"}, newNoopLogger())
	assert.Equal(t, "bot@example.com", tr.GetSMTPUser())
}
