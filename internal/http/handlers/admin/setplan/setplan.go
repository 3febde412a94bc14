// Package setplan реализует административный обработчик замены текущего плана сайта.
//
// Для текущего сайта сессии после записи сразу запускается повторная загрузка плана.
package setplan

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/params"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/response"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/storage/repository"
)

// Request — тело запроса.
type Request struct {
	ID             string     `json:"id" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	IsFreeTrial    bool       `json:"is_free_trial"`
	SubscribedDate *time.Time `json:"subscribed_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
}

// Result — тело успешного ответа.
type Result struct {
	SiteID        int64               `json:"site_id"`
	Plan          models.PlanSnapshot `json:"plan"`
	ReloadStarted bool                `json:"reload_started"`
}

// Service заменяет план сайта.
type Service interface {
	SetPlan(ctx context.Context, siteID int64, plan models.PlanSnapshot) (bool, error)
}

// Handler обрабатывает PUT /api/v1/admin/sites/{id}/plan.
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
	const op = "handlers.admin.setplan"
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

	plan := models.PlanSnapshot{
		ID:             req.ID,
		Name:           req.Name,
		IsFreeTrial:    req.IsFreeTrial || models.IsFreeTrialPlan(req.ID, req.Name),
		SubscribedDate: utc(req.SubscribedDate),
		ExpiryDate:     utc(req.ExpiryDate),
	}
	started, err := h.service.SetPlan(r.Context(), siteID, plan)
	if errors.Is(err, repository.ErrSiteNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("site not found"))
		return
	}
	if err != nil {
		log.Error("failed to save plan", sl.SiteID(siteID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not save plan"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(Result{SiteID: siteID, Plan: plan, ReloadStarted: started}))
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
