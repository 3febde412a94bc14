package rabbitmq

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SkipRabbitMQTestsEnv — значение SKIP_RABBITMQ_TESTS, отключающее интеграционные тесты.
const SkipRabbitMQTestsEnv = "true"

var amqpPort = nat.Port("5672/tcp")

// amqpURIForTest возвращает адрес внешнего брокера из TEST_RABBITMQ_URL
// или поднимает контейнер.
func amqpURIForTest(t *testing.T) string {
	t.Helper()
	if os.Getenv("SKIP_RABBITMQ_TESTS") == SkipRabbitMQTestsEnv {
		t.Skip("Skipping RabbitMQ tests")
	}
	if url := os.Getenv("TEST_RABBITMQ_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{string(amqpPort)},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForListeningPort(amqpPort).WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, amqpPort)
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}
