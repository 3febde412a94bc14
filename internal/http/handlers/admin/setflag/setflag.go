// Package setflag реализует административный обработчик переопределения фича-флага.
package setflag

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

// Request — тело запроса. Enabled обязателен: отсутствие поля не то же самое, что false.
type Request struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Service записывает значение флага.
type Service interface {
	SetFlag(ctx context.Context, flag string, enabled bool) error
}

// Handler обрабатывает PUT /api/v1/admin/flags/{flag}.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.setflag"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	flag := chi.URLParam(r, "flag")

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		log.Error("validator failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	if err := h.service.SetFlag(r.Context(), flag, *req.Enabled); err != nil {
		log.Error("failed to set feature flag", slog.String("flag", flag), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not set flag"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"flag":    flag,
		"enabled": *req.Enabled,
	}))
}
