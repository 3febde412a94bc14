// Package upsertsite реализует административный обработчик создания и обновления сайта.
package upsertsite

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/params"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// Request — тело запроса.
type Request struct {
	Name       string `json:"name" validate:"required"`
	URL        string `json:"url" validate:"omitempty,url"`
	OwnerEmail string `json:"owner_email" validate:"omitempty,email"`
	IsWPCom    bool   `json:"is_wpcom"`
}

// Service сохраняет сайт.
type Service interface {
	UpsertSite(ctx context.Context, site models.Site) error
}

// Handler обрабатывает PUT /api/v1/admin/sites/{id}.
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
	const op = "handlers.admin.upsertsite"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	siteID, err := params.SiteID(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

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

	site := models.Site{
		ID:                  siteID,
		Name:                req.Name,
		URL:                 req.URL,
		OwnerEmail:          req.OwnerEmail,
		IsWordPressComStore: req.IsWPCom,
	}
	if err := h.service.UpsertSite(r.Context(), site); err != nil {
		log.Error("failed to save site", sl.SiteID(siteID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save site"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(site))
}
