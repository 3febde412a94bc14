// Package server поднимает gRPC-сервер проверки здоровья сервиса.
//
// Статус обновляется фоновым опросом зависимостей: SERVING, пока все проверки
// проходят, и NOT_SERVING при первой же ошибке.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

// ServiceName задаёт имя сервиса в протоколе grpc.health.v1.
const ServiceName = "storeplan.PlanSynchronizer"

// Check проверяет одну зависимость.
type Check func(ctx context.Context) error

// HealthServer публикует состояние зависимостей по протоколу grpc.health.v1.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	log      *slog.Logger
}

// NewHealthServer создаёт сервер. До первого опроса статус NOT_SERVING.
func NewHealthServer(checks map[string]Check, interval time.Duration, log *slog.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		grpc:     srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		log:      log,
	}
}

// Refresh выполняет все проверки и обновляет статус.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.log.Warn("health check failed", slog.String("dependency", name), sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Serve принимает соединения на lis и опрашивает зависимости до отмены ctx.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	const op = "grpc.HealthServer.Serve"

	go s.poll(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.log.Info("gRPC health server listening", slog.String("address", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *HealthServer) poll(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, s.interval)
		s.Refresh(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
