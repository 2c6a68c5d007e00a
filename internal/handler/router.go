package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"promocode-service/internal/model"
)

// NewRouter wires all routes. Admin routes require an admin token,
// competitor routes a competitor token; redemption is rate limited per user.
// healthCheck probes the storage backing the service.
func NewRouter(h *Handler, redeemLimiter *UserRateLimiter, healthCheck func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if healthCheck != nil {
			if err := healthCheck(req.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "database unavailable", nil)
				return
			}
		}
		respond(w, http.StatusOK, "ok", nil)
	})

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.tokens))
		r.Use(RequireRole(model.RoleAdmin))

		r.Post("/admin/create-user", h.CreateUser)
		r.Get("/admin/codes", h.ListCodes)
		r.Post("/codes", h.CreateCode)
		r.Put("/codes/{id}", h.UpdateCode)
		r.Delete("/codes/{id}", h.DeleteCode)
		r.Get("/codes/{id}/redeemable", h.CheckRedeemable)
		r.Post("/admin/codes/generate", h.GenerateCodes)
		r.Post("/admin/codes/manual", h.CreateCode)
		r.Get("/admin/competitors", h.ListCompetitors)
		r.Post("/admin/competitors", h.OnboardCompetitor)
		r.Get("/admin/dashboard", h.Dashboard)
		r.Get("/admin/ranking", h.Ranking)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.tokens))
		r.Use(RequireRole(model.RoleCompetitor))

		r.With(redeemLimiter.Middleware).Post("/codes/{code}/redeem", h.Redeem)
		r.Get("/competitor/score", h.Score)
		r.Get("/competitor/redeemed-codes", h.History)
	})

	return r
}
