// Package selectsite реализует HTTP-обработчик выбора текущего сайта.
//
// После выбора синхронизатор загружает план сайта асинхронно,
// его состояние доступно через GET /api/v1/plan.
package selectsite

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/storage/repository"
)

// Request — тело запроса выбора сайта.
type Request struct {
	SiteID int64 `json:"site_id" validate:"required,gt=0"`
}

// Service делает сайт текущим.
type Service interface {
	Select(ctx context.Context, siteID int64) (*models.Site, error)
}

// Handler обрабатывает POST /api/v1/site.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.site.select"
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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
			log.Warn("validation failed", sl.Err(err))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		log.Error("validator failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	site, err := h.service.Select(r.Context(), req.SiteID)
	if errors.Is(err, repository.ErrSiteNotFound) {
		log.Info("site not found", sl.SiteID(req.SiteID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("site not found"))
		return
	}
	if err != nil {
		log.Error("failed to select site", sl.SiteID(req.SiteID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not select site"))
		return
	}

	log.Info("site selected", sl.SiteID(site.ID))
	render.JSON(w, r, response.StatusOKWithData(site))
}
