package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"promocode-service/internal/policy"
)

func codeIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func issuerID(r *http.Request) int64 {
	claims, _ := ClaimsFromContext(r.Context())
	if claims == nil {
		return 0
	}
	return claims.UserID
}

// CreateCode handles POST /codes and POST /admin/codes/manual: store one
// code with an explicitly chosen code string.
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var in policy.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	pc, err := h.codes.Create(r.Context(), in, issuerID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Promotional code created successfully.", pc)
}

// UpdateCode handles PUT /codes/{id}.
func (h *Handler) UpdateCode(w http.ResponseWriter, r *http.Request) {
	id, ok := codeIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "promotional code not found", nil)
		return
	}

	var in policy.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	pc, err := h.codes.Update(r.Context(), id, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Promotional code updated successfully.", pc)
}

// DeleteCode handles DELETE /codes/{id}: soft delete.
func (h *Handler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	id, ok := codeIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "promotional code not found", nil)
		return
	}

	if err := h.codes.Delete(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Promotional code deleted successfully.", nil)
}

// ListCodes handles GET /admin/codes.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.codes.List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Promotional code list.", codes)
}

// CheckRedeemable handles GET /codes/{id}/redeemable: capacity preview for
// administrative tooling.
func (h *Handler) CheckRedeemable(w http.ResponseWriter, r *http.Request) {
	id, ok := codeIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "promotional code not found", nil)
		return
	}

	ok, err := h.engine.IsRedeemable(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusBadRequest, "The code is no longer redeemable.", nil)
		return
	}

	pc, err := h.codes.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "The code is redeemable.", map[string]string{"code": pc.Code})
}

type generateRequest struct {
	Count int `json:"count"`
	policy.CreateInput
}

// GenerateCodes handles POST /admin/codes/generate: bulk generation from a
// shared policy template.
func (h *Handler) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	codes, err := h.codes.GenerateBatch(r.Context(), req.Count, req.CreateInput, issuerID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, strconv.Itoa(len(codes))+" promotional codes generated successfully.", codes)
}
