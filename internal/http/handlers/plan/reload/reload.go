// Package reload реализует HTTP-обработчик повторной загрузки плана текущего сайта.
package reload

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/planstate"
)

// Synchronizer запускает повторную загрузку плана.
type Synchronizer interface {
	ReloadPlan() bool
	State() planstate.State
}

// Handler обрабатывает POST /api/v1/plan/reload. Ответ всегда 202: загрузка идёт асинхронно,
// поле started показывает, была ли она запущена этим запросом.
type Handler struct {
	log  *slog.Logger
	sync Synchronizer
}

// New создает новый Handler.
func New(log *slog.Logger, sync Synchronizer) *Handler {
	return &Handler{log: log, sync: sync}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.reload"
	started := h.sync.ReloadPlan()
	state := h.sync.State()

	h.log.Info("plan reload requested",
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Bool("started", started),
		slog.String("state", state.String()))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"started":    started,
		"plan_state": state,
		"retryable":  state.Retryable(),
	}))
}
