package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drew/identity-service/internal/api/middleware"
	"github.com/drew/identity-service/internal/domain"
	"github.com/drew/identity-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type UserHandler struct {
	identity *service.IdentityService
}

func NewUserHandler(identity *service.IdentityService) *UserHandler {
	return &UserHandler{identity: identity}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string          `json:"message"`
	User    *domain.Profile `json:"user"`
}

// LoginUserResponse is the redacted profile returned by Login; unlike the
// cached projection it carries no created_at.
type LoginUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type LoginResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    LoginUserResponse `json:"user"`
}

type ProfileResponse struct {
	Source string          `json:"source"`
	Data   *domain.Profile `json:"data"`
}

type ListResponse struct {
	Data  []*domain.Profile `json:"data"`
	Count int               `json:"count"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.identity.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, service.ErrUserExists):
			writeError(w, http.StatusConflict, "Username or email already exists")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "User created successfully",
		User:    profile,
	})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.identity.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			writeError(w, http.StatusBadRequest, "Missing credentials")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		User: LoginUserResponse{
			ID:       result.User.ID.String(),
			Username: result.User.Username,
			Email:    result.User.Email,
			FullName: result.User.FullName,
		},
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	h.respondProfile(w, r, id)
}

// Me returns the profile of the authenticated caller, resolved from the
// bearer token by the auth middleware.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	h.respondProfile(w, r, id)
}

func (h *UserHandler) respondProfile(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	profile, source, err := h.identity.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{Source: source, Data: profile})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.identity.ListProfiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Data: profiles, Count: len(profiles)})
}
