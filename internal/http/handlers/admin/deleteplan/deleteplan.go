// Package deleteplan реализует административный обработчик удаления текущего плана сайта.
package deleteplan

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/params"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/storage/repository"
)

// Service удаляет план сайта.
type Service interface {
	DeletePlan(ctx context.Context, siteID int64) (bool, error)
}

// Handler обрабатывает DELETE /api/v1/admin/sites/{id}/plan.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.deleteplan"

	siteID, err := params.SiteID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	started, err := h.service.DeletePlan(r.Context(), siteID)
	if errors.Is(err, repository.ErrSiteNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("site not found"))
		return
	}
	if err != nil {
		h.log.Error("failed to delete plan",
			sl.Op(op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.SiteID(siteID),
			sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete plan"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"site_id":        siteID,
		"reload_started": started,
	}))
}
