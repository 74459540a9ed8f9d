package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"binaryoptions/internal/api/middleware"
	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/service"
	"binaryoptions/internal/settlement"

	"github.com/gorilla/mux"
)

// tradeService часть TradeService, нужная handlers
type tradeService interface {
	OpenTrade(ctx context.Context, userID int, req service.OpenTradeRequest) (*models.Trade, error)
	GetTrade(tradeID, userID int) (*models.Trade, error)
	ListTrades(userID int, statusFilter string, limit, offset int) ([]*models.Trade, int, error)
	CloseTrade(ctx context.Context, tradeID, userID int) (*models.Trade, error)
	GetStats(userID int) (*repository.TradeStats, error)
}

// TradeHandler отвечает за сделки пользователя
//
// Endpoints:
// - POST /api/v1/trades             - открытие сделки
// - GET /api/v1/trades              - история сделок (с фильтром по статусу)
// - GET /api/v1/trades/stats        - агрегированная статистика
// - GET /api/v1/trades/{id}         - конкретная сделка
// - POST /api/v1/trades/{id}/close  - досрочное закрытие по текущей цене
type TradeHandler struct {
	trades tradeService
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимостей
func NewTradeHandler(trades tradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// OpenTradeRequest структура запроса на открытие сделки
type OpenTradeRequest struct {
	AssetID         int     `json:"asset_id"`
	Direction       string  `json:"direction"`        // call или put
	Amount          float64 `json:"amount"`           // ставка, списывается с баланса сразу
	DurationMinutes int     `json:"duration_minutes"` // срок сделки, 1-1440; экспирацию считает сервер
}

// TradeListResponse список сделок с общим количеством для пагинации
type TradeListResponse struct {
	Trades []*models.Trade `json:"trades"`
	Total  int             `json:"total"`
}

// OpenTrade открывает новую сделку
// POST /api/v1/trades
//
// Response:
// - 201 Created: сделка открыта, ставка списана
// - 400 Bad Request: невалидные параметры
// - 402 Payment Required: недостаточно средств
// - 409 Conflict: актив недоступен для торговли
func (h *TradeHandler) OpenTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	var req OpenTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}

	trade, err := h.trades.OpenTrade(r.Context(), userID, service.OpenTradeRequest{
		AssetID:         req.AssetID,
		Direction:       req.Direction,
		Amount:          req.Amount,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, trade)
}

// GetTrades возвращает историю сделок пользователя
// GET /api/v1/trades
//
// Query Parameters:
// - status: фильтр по статусу (active, won, lost, cancelled)
// - limit, offset: пагинация
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	limit, offset := parsePagination(r)
	trades, total, err := h.trades.ListTrades(userID, r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, TradeListResponse{Trades: trades, Total: total})
}

// GetTrade возвращает конкретную сделку по ID
// GET /api/v1/trades/{id}
//
// Response:
// - 200 OK: данные сделки
// - 404 Not Found: сделка не найдена или принадлежит другому пользователю
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid trade ID", "ID must be a number")
		return
	}

	trade, err := h.trades.GetTrade(id, userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, trade)
}

// CloseTrade досрочно закрывает активную сделку по текущей цене актива
// POST /api/v1/trades/{id}/close
//
// Response:
// - 200 OK: сделка рассчитана
// - 404 Not Found: сделка не найдена
// - 409 Conflict: сделка уже рассчитана
func (h *TradeHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid trade ID", "ID must be a number")
		return
	}

	trade, err := h.trades.CloseTrade(r.Context(), id, userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, trade)
}

// GetStats возвращает агрегированную статистику сделок пользователя
// GET /api/v1/trades/stats
func (h *TradeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Authentication required", "")
		return
	}

	stats, err := h.trades.GetStats(userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// handleServiceError обрабатывает ошибки от сервиса и возвращает соответствующий HTTP статус
func (h *TradeHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrTradeNotFound):
		respondWithError(w, http.StatusNotFound, "trade_not_found", "Trade not found", "")

	case errors.Is(err, service.ErrInsufficientFunds):
		respondWithError(w, http.StatusPaymentRequired, "insufficient_funds", "Insufficient balance", "")

	case errors.Is(err, service.ErrAssetUnavailable):
		respondWithError(w, http.StatusConflict, "asset_unavailable", "Asset is not available for trading", "")

	case errors.Is(err, service.ErrInvalidDirection):
		respondWithError(w, http.StatusBadRequest, "invalid_direction", "Direction must be call or put", "")

	case errors.Is(err, service.ErrInvalidTradeAmount):
		respondWithError(w, http.StatusBadRequest, "invalid_amount", "Trade amount is outside asset limits", "")

	case errors.Is(err, service.ErrInvalidDuration):
		respondWithError(w, http.StatusBadRequest, "invalid_duration", "Duration must be between 1 and 1440 minutes", "")

	case errors.Is(err, settlement.ErrAlreadySettled):
		respondWithError(w, http.StatusConflict, "already_settled", "Trade is already settled", "")

	default:
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", err.Error())
	}
}
