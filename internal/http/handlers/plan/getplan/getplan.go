// Package getplan реализует HTTP-обработчик чтения состояния плана текущего сайта.
package getplan

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/planstate"
)

// Synchronizer отдаёт текущий сайт и состояние его плана.
type Synchronizer interface {
	State() planstate.State
	Site() *models.Site
}

// History отдаёт последнее сохранённое состояние плана сайта.
type History interface {
	LastKnown(ctx context.Context, siteID int64) (planstate.State, bool, error)
}

// Result — тело успешного ответа.
type Result struct {
	Site      *models.Site     `json:"site"`
	PlanState planstate.State  `json:"plan_state"`
	Retryable bool             `json:"retryable"` // клиент может предложить POST /plan/reload
	LastKnown *planstate.State `json:"last_known,omitempty"`
}

// Handler обрабатывает GET /api/v1/plan.
type Handler struct {
	log     *slog.Logger
	sync    Synchronizer
	history History
}

// New создает новый Handler. history может быть nil.
func New(log *slog.Logger, sync Synchronizer, history History) *Handler {
	return &Handler{log: log, sync: sync, history: history}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.get"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	state := h.sync.State()
	res := Result{
		Site:      h.sync.Site(),
		PlanState: state,
		Retryable: state.Retryable(),
	}

	// пока план загружается, показываем последнее известное состояние
	if res.Site != nil && h.history != nil && res.PlanState.Kind == planstate.Loading {
		st, found, err := h.history.LastKnown(r.Context(), res.Site.ID)
		if err != nil {
			log.Warn("failed to read last known plan state", sl.Err(err))
		} else if found {
			res.LastKnown = &st
		}
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}
