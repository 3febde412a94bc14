// Package plansynchronizer собирает сервис синхронизации тарифного плана: HTTP API,
// синхронизатор, рассылку наступивших напоминаний и gRPC-проверку здоровья.
package plansynchronizer

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/deleteplan"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/setflag"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/setplan"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/admin/upsertsite"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/health"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/plan/getplan"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/plan/reload"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/reminders/pending"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/site/logout"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/handlers/site/selectsite"
	"github.com/magabrotheeeer/storeplan-sync/internal/http/middlewarectx"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/jwt"
)

// Dependencies собирает зависимости маршрутов.
type Dependencies struct {
	Session      sessionService
	Synchronizer synchronizerService
	Admin        adminService
	History      getplan.History
	Reminders    pending.Store
	Tokens       middlewarectx.TokenParser
	Checks       map[string]health.Check
	Metrics      http.Handler
	RateLimit    float64
	RateBurst    int
}

type sessionService interface {
	selectsite.Service
	logout.Service
	pending.Sites
}

type adminService interface {
	upsertsite.Service
	setplan.Service
	deleteplan.Service
	setflag.Service
}

type synchronizerService interface {
	getplan.Synchronizer
	reload.Synchronizer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Dependencies) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(deps.RateLimit, deps.RateBurst, logger))

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger, jwt.RoleSiteAdmin))

			r.Post("/site", selectsite.New(logger, deps.Session).ServeHTTP)
			r.Delete("/site", logout.New(logger, deps.Session).ServeHTTP)
			r.Get("/plan", getplan.New(logger, deps.Synchronizer, deps.History).ServeHTTP)
			r.Post("/plan/reload", reload.New(logger, deps.Synchronizer).ServeHTTP)
			r.Get("/reminders", pending.New(logger, deps.Reminders, deps.Session).ServeHTTP)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger, jwt.RoleAdmin))

			r.Put("/sites/{id}", upsertsite.New(logger, deps.Admin).ServeHTTP)
			r.Put("/sites/{id}/plan", setplan.New(logger, deps.Admin).ServeHTTP)
			r.Delete("/sites/{id}/plan", deleteplan.New(logger, deps.Admin).ServeHTTP)
			r.Put("/flags/{flag}", setflag.New(logger, deps.Admin).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.Checks).ServeHTTP)
	r.Handle("/metrics", deps.Metrics)
}
