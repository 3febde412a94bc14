// Package logout реализует HTTP-обработчик сброса текущего сайта.
package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

// Service сбрасывает текущий сайт.
type Service interface {
	Logout()
}

// Handler обрабатывает DELETE /api/v1/site.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.site.logout"
	h.service.Logout()
	h.log.Info("current site cleared", sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))
	render.JSON(w, r, response.OK())
}
