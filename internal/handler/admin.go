package handler

import "net/http"

type createUserRequest struct {
	registerRequest
	Role string `json:"role"`
}

// CreateUser handles POST /admin/create-user: account creation with an
// explicit role.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	fields := req.validate()
	if req.Role == "" {
		fields["role"] = "required"
	}
	if len(fields) > 0 {
		respondError(w, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	user, err := h.accounts.CreateUser(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, "User created successfully.", publicUser(user))
}

type onboardRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OnboardCompetitor handles POST /admin/competitors: create a competitor
// with a generated temporary password and send credentials by email.
func (h *Handler) OnboardCompetitor(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "required"
	}
	if req.Email == "" {
		fields["email"] = "required"
	}
	if len(fields) > 0 {
		respondError(w, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	user, err := h.accounts.OnboardCompetitor(r.Context(), req.Name, req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, "Competitor registered successfully.", publicUser(user))
}

// ListCompetitors handles GET /admin/competitors.
func (h *Handler) ListCompetitors(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListCompetitors(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	data := make([]userData, 0, len(users))
	for _, u := range users {
		data = append(data, publicUser(u))
	}
	respond(w, http.StatusOK, "Competitor list.", data)
}

// Dashboard handles GET /admin/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.accounts.Dashboard(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard data.", stats)
}

// Ranking handles GET /admin/ranking: top competitors by score.
func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ranking.TopCompetitors(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "Competitor ranking.", entries)
}
