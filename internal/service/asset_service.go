package service

import (
	"errors"
	"time"

	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
)

var ErrInvalidPrice = errors.New("price must be positive")

// AssetService - чтение каталога активов для API
type AssetService struct {
	assets *repository.AssetRepository
}

// NewAssetService создает новый сервис активов
func NewAssetService(assets *repository.AssetRepository) *AssetService {
	return &AssetService{assets: assets}
}

// List возвращает активы, опционально отфильтрованные по типу.
// Неактивные активы в выдачу не попадают.
func (s *AssetService) List(assetType string) ([]*models.Asset, error) {
	return s.assets.GetAll(assetType, true)
}

// Get возвращает актив по ID
func (s *AssetService) Get(id int) (*models.Asset, error) {
	return s.assets.GetByID(id)
}

// GetBySymbol возвращает актив по символу
func (s *AssetService) GetBySymbol(symbol string) (*models.Asset, error) {
	return s.assets.GetBySymbol(symbol)
}

// UpdatePrice вручную выставляет цену актива и пересчитывает поля изменения
func (s *AssetService) UpdatePrice(id int, price float64) (*models.Asset, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	asset, err := s.assets.GetByID(id)
	if err != nil {
		return nil, err
	}

	asset.UpdatePrice(price, time.Now())
	if err := s.assets.UpdatePrice(asset); err != nil {
		return nil, err
	}

	return asset, nil
}
