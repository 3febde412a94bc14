// Package pending реализует HTTP-обработчик списка запланированных напоминаний текущего сайта.
package pending

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// Store отдаёт запланированные напоминания сайта.
type Store interface {
	Pending(ctx context.Context, siteID int64) ([]models.Reminder, error)
}

// Sites отдаёт текущий сайт.
type Sites interface {
	Current() *models.Site
}

// Handler обрабатывает GET /api/v1/reminders.
type Handler struct {
	log   *slog.Logger
	store Store
	sites Sites
}

// New создает новый Handler.
func New(log *slog.Logger, store Store, sites Sites) *Handler {
	return &Handler{log: log, store: store, sites: sites}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reminders.pending"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	site := h.sites.Current()
	if site == nil {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, response.Error("no site selected"))
		return
	}

	reminders, err := h.store.Pending(r.Context(), site.ID)
	if err != nil {
		log.Error("failed to list reminders", sl.SiteID(site.ID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list reminders"))
		return
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}

	render.JSON(w, r, response.StatusOKWithData(reminders))
}
