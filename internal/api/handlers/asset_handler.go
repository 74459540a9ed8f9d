package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/service"

	"github.com/gorilla/mux"
)

// assetService часть AssetService, нужная handlers
type assetService interface {
	List(assetType string) ([]*models.Asset, error)
	Get(id int) (*models.Asset, error)
	UpdatePrice(id int, price float64) (*models.Asset, error)
}

// AssetHandler отвечает за каталог торгуемых активов
//
// Endpoints:
// - GET   /api/v1/assets            - список активных активов (с фильтром по типу)
// - GET   /api/v1/assets/{id}       - конкретный актив с текущей ценой
// - PATCH /api/v1/assets/{id}/price - ручная корректировка цены
type AssetHandler struct {
	assets assetService
}

// NewAssetHandler создает новый AssetHandler с внедрением зависимостей
func NewAssetHandler(assets assetService) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// AssetListResponse список активов
type AssetListResponse struct {
	Assets []*models.Asset `json:"assets"`
	Total  int             `json:"total"`
}

// GetAssets возвращает список активов, доступных для торговли
// GET /api/v1/assets
//
// Query Parameters:
// - type: фильтр по типу (forex, crypto, stock, commodity, index)
func (h *AssetHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assets.List(r.URL.Query().Get("type"))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get assets", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, AssetListResponse{Assets: assets, Total: len(assets)})
}

// GetAsset возвращает конкретный актив по ID
// GET /api/v1/assets/{id}
//
// Response:
// - 200 OK: данные актива
// - 404 Not Found: актив не найден
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid asset ID", "ID must be a number")
		return
	}

	asset, err := h.assets.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			respondWithError(w, http.StatusNotFound, "asset_not_found", "Asset not found", "")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to get asset", err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, asset)
}

// UpdatePriceRequest запрос корректировки цены
type UpdatePriceRequest struct {
	Price float64 `json:"price"`
}

// UpdatePrice выставляет новую цену актива
// PATCH /api/v1/assets/{id}/price
//
// Response:
// - 200 OK: актив с пересчитанными полями изменения
// - 400 Bad Request: некорректная цена
// - 404 Not Found: актив не найден
func (h *AssetHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_id", "Invalid asset ID", "ID must be a number")
		return
	}

	var req UpdatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	asset, err := h.assets.UpdatePrice(id, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPrice):
			respondWithError(w, http.StatusBadRequest, "invalid_price", "Price must be positive", "")
		case errors.Is(err, repository.ErrAssetNotFound):
			respondWithError(w, http.StatusNotFound, "asset_not_found", "Asset not found", "")
		default:
			respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to update price", err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, asset)
}
