// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

// Check проверяет одну зависимость сервиса.
type Check func(ctx context.Context) error

// Handler обрабатывает GET /health. При отказе любой зависимости отвечает 503.
type Handler struct {
	log     *slog.Logger
	checks  map[string]Check
	timeout time.Duration
}

// New создает новый Handler.
func New(log *slog.Logger, checks map[string]Check) *Handler {
	return &Handler{
		log:     log,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{}
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn("dependency unhealthy", sl.Op(op), slog.String("dependency", name), sl.Err(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Error: "unhealthy", Data: status})
		return
	}
	render.JSON(w, r, response.StatusOKWithData(status))
}
