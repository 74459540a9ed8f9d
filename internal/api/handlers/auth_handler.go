package handlers

import (
	"errors"
	"net/http"

	"binaryoptions/internal/api/middleware"
	"binaryoptions/internal/models"
	"binaryoptions/internal/service"
	"binaryoptions/pkg/utils"
)

// authService часть UserService, нужная для аутентификации
type authService interface {
	Register(req service.RegisterRequest) (*models.User, *service.AuthTokens, error)
	Login(email, password string) (*models.User, *service.AuthTokens, error)
	Refresh(refreshToken string) (*service.AuthTokens, error)
	Logout(userID int, refreshToken string) error
}

// AuthHandler отвечает за регистрацию и вход
//
// Endpoints:
// - POST /api/v1/auth/register - регистрация нового пользователя
// - POST /api/v1/auth/login    - вход, выдача пары токенов
// - POST /api/v1/auth/refresh  - обмен refresh токена на новую пару
// - POST /api/v1/auth/logout   - отзыв refresh токена
type AuthHandler struct {
	users authService
}

// NewAuthHandler создает новый AuthHandler с внедрением зависимостей
func NewAuthHandler(users authService) *AuthHandler {
	return &AuthHandler{users: users}
}

// RegisterRequest структура запроса на регистрацию
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest структура запроса на вход
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest структура запроса на обновление токенов
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse пара токенов плюс профиль пользователя
type AuthResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// Register регистрирует нового пользователя
// POST /api/v1/auth/register
//
// Response:
// - 201 Created: пользователь создан, токены выданы
// - 400 Bad Request: невалидный email или слабый пароль
// - 409 Conflict: email уже занят
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	user, tokens, err := h.users.Register(service.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, AuthResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Login аутентифицирует пользователя по email и паролю
// POST /api/v1/auth/login
//
// Response:
// - 200 OK: токены выданы
// - 401 Unauthorized: неверный email или пароль (одинаковый ответ, чтобы не раскрывать существование аккаунта)
// - 403 Forbidden: аккаунт отключен
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	user, tokens, err := h.users.Login(req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, AuthResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Refresh обменивает refresh токен на новую пару токенов.
// Старый refresh токен отзывается, повторное использование невозможно.
// POST /api/v1/auth/refresh
//
// Response:
// - 200 OK: новая пара токенов
// - 401 Unauthorized: токен невалиден или уже использован
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "missing_token", "refresh_token is required", "")
		return
	}

	tokens, err := h.users.Refresh(req.RefreshToken)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, AuthResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Logout отзывает refresh токен текущего пользователя
// POST /api/v1/auth/logout (требует access токен)
//
// Response:
// - 200 OK: токен отозван
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	if err := h.users.Logout(userID, req.RefreshToken); err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "logged out"})
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidEmail):
		respondWithError(w, http.StatusBadRequest, "invalid_email", "Invalid email address", "")

	case errors.Is(err, utils.ErrPasswordTooWeak):
		respondWithError(w, http.StatusBadRequest, "weak_password", "Password must be at least 8 characters", "")

	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "email_taken", "Email is already registered", "")

	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", "")

	case errors.Is(err, service.ErrAccountDisabled):
		respondWithError(w, http.StatusForbidden, "account_disabled", "Account is disabled", "")

	case errors.Is(err, service.ErrInvalidRefreshToken):
		respondWithError(w, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token is invalid or revoked", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
