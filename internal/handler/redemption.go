package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Redeem handles POST /codes/{code}/redeem for the authenticated
// competitor. Rate-limited per user by the router.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
		return
	}

	code := chi.URLParam(r, "code")
	red, err := h.engine.Redeem(r.Context(), code, claims.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Code redeemed successfully.", red)
}

// Score handles GET /competitor/score: the competitor's total points from
// their ledger entries.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
		return
	}

	total, err := h.ranking.UserScore(r.Context(), claims.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Total score retrieved successfully.", map[string]int64{
		"total_points": total,
	})
}

// History handles GET /competitor/redeemed-codes: the competitor's
// redemption history with masked code identifiers.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token", nil)
		return
	}

	history, err := h.ranking.UserHistory(r.Context(), claims.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Redeemed codes retrieved successfully.", history)
}
