package handler

import (
	"net/http"

	"promocode-service/internal/auth"
	"promocode-service/internal/model"
	"promocode-service/internal/service"
)

// Handler holds the HTTP handlers' dependencies.
type Handler struct {
	accounts *service.AccountService
	codes    *service.CodeService
	engine   *service.RedemptionEngine
	ranking  *service.RankingService
	tokens   *auth.TokenManager
}

// New creates a new Handler instance.
func New(
	accounts *service.AccountService,
	codes *service.CodeService,
	engine *service.RedemptionEngine,
	ranking *service.RankingService,
	tokens *auth.TokenManager,
) *Handler {
	return &Handler{
		accounts: accounts,
		codes:    codes,
		engine:   engine,
		ranking:  ranking,
		tokens:   tokens,
	}
}

// userData is the public account representation returned by the API.
type userData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func publicUser(u *model.User) userData {
	return userData{Name: u.Name, Email: u.Email, Role: u.Role}
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// validate applies the handler-level field rules shared by registration and
// admin user creation.
func (req *registerRequest) validate() map[string]string {
	fields := map[string]string{}
	if req.Name == "" {
		fields["name"] = "required"
	}
	if req.Email == "" {
		fields["email"] = "required"
	}
	if len(req.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if req.Password != req.PasswordConfirmation {
		fields["password_confirmation"] = "does not match password"
	}
	return fields
}

// Register handles POST /register: self-registration as competitor.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if fields := req.validate(); len(fields) > 0 {
		respondError(w, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, "User registered successfully.", publicUser(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        userData `json:"user"`
}

// Login handles POST /login: credentials in, bearer token out.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, "Validation failed.", map[string]string{
			"email":    "required",
			"password": "required",
		})
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respond(w, http.StatusOK, "Login successful.", loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		User:        publicUser(user),
	})
}
