package handlers

import (
	"context"
	"errors"
	"net/http"

	"binaryoptions/internal/api/middleware"
	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/service"
)

// userService часть UserService, нужная handlers профиля
type userService interface {
	Profile(userID int) (*models.User, error)
	Deposit(ctx context.Context, userID int, amount float64, method string) (*models.User, error)
	Transactions(userID, limit, offset int) ([]*models.Transaction, int, error)
}

// UserHandler отвечает за профиль, баланс и пополнения
//
// Endpoints:
// - GET /api/v1/users/me               - профиль текущего пользователя
// - POST /api/v1/users/me/deposit      - пополнение баланса
// - GET /api/v1/users/me/transactions  - история движений по балансу
type UserHandler struct {
	users userService
}

// NewUserHandler создает новый UserHandler с внедрением зависимостей
func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

// DepositRequest структура запроса на пополнение
type DepositRequest struct {
	Amount float64 `json:"amount"` // от 10 до 10000
	Method string  `json:"method"` // card, crypto, bank
}

// TransactionListResponse история движений с общим количеством
type TransactionListResponse struct {
	Transactions []*models.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
}

// Profile возвращает профиль текущего пользователя
// GET /api/v1/users/me
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	user, err := h.users.Profile(userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// Deposit пополняет баланс пользователя
// POST /api/v1/users/me/deposit
//
// Response:
// - 200 OK: баланс пополнен, возвращается обновленный профиль
// - 400 Bad Request: сумма вне лимитов или неизвестный способ оплаты
func (h *UserHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	user, err := h.users.Deposit(r.Context(), userID, req.Amount, req.Method)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// Transactions возвращает историю движений по балансу
// GET /api/v1/users/me/transactions
//
// Query Parameters:
// - limit, offset: пагинация
func (h *UserHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	limit, offset := parsePagination(r)
	transactions, total, err := h.users.Transactions(userID, limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, TransactionListResponse{Transactions: transactions, Total: total})
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "user_not_found", "User not found", "")

	case errors.Is(err, service.ErrInvalidDepositAmount):
		respondWithError(w, http.StatusBadRequest, "invalid_deposit_amount", "Deposit amount is outside allowed limits", "")

	case errors.Is(err, service.ErrUnknownPaymentMethod):
		respondWithError(w, http.StatusBadRequest, "unknown_payment_method", "Payment method must be card, crypto or bank", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
