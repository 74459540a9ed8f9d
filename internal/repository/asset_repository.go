package repository

import (
	"database/sql"
	"errors"
	"time"

	"binaryoptions/internal/models"
)

// Ошибки репозитория активов
var (
	ErrAssetNotFound = errors.New("asset not found")
)

const assetColumns = `id, symbol, name, asset_type, current_price, previous_price, price_change, price_change_percent, is_active, min_trade_amount, max_trade_amount, payout_percentage, updated_at`

// AssetRepository - работа с таблицей assets
type AssetRepository struct {
	db *sql.DB
}

// NewAssetRepository создает новый экземпляр репозитория
func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// GetByID возвращает актив по ID
func (r *AssetRepository) GetByID(id int) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	return scanAsset(r.db.QueryRow(query, id))
}

// GetByIDTx читает актив внутри транзакции.
// Цена в результате - снимок на момент вызова; иных гарантий свежести нет.
func (r *AssetRepository) GetByIDTx(tx *sql.Tx, id int) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	return scanAsset(tx.QueryRow(query, id))
}

// GetBySymbol возвращает актив по символу
func (r *AssetRepository) GetBySymbol(symbol string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE symbol = $1`

	return scanAsset(r.db.QueryRow(query, symbol))
}

// GetAll возвращает активы с опциональными фильтрами по типу и активности
func (r *AssetRepository) GetAll(assetType string, onlyActive bool) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []interface{}

	switch {
	case assetType != "" && onlyActive:
		query += ` WHERE asset_type = $1 AND is_active = true`
		args = append(args, assetType)
	case assetType != "":
		query += ` WHERE asset_type = $1`
		args = append(args, assetType)
	case onlyActive:
		query += ` WHERE is_active = true`
	}

	query += ` ORDER BY symbol`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset, err := scanAssetRows(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return assets, nil
}

// UpdatePrice записывает новую цену и производные поля изменения
func (r *AssetRepository) UpdatePrice(asset *models.Asset) error {
	query := `
		UPDATE assets
		SET current_price = $1, previous_price = $2, price_change = $3, price_change_percent = $4, updated_at = $5
		WHERE id = $6`

	result, err := r.db.Exec(
		query,
		asset.CurrentPrice,
		asset.PreviousPrice,
		asset.PriceChange,
		asset.PriceChangePercent,
		asset.UpdatedAt,
		asset.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrAssetNotFound
	}

	return nil
}

// Create создает новый актив (используется при начальном наполнении)
func (r *AssetRepository) Create(asset *models.Asset) error {
	query := `
		INSERT INTO assets (symbol, name, asset_type, current_price, previous_price, price_change, price_change_percent, is_active, min_trade_amount, max_trade_amount, payout_percentage, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	asset.UpdatedAt = time.Now()

	err := r.db.QueryRow(
		query,
		asset.Symbol,
		asset.Name,
		asset.AssetType,
		asset.CurrentPrice,
		asset.PreviousPrice,
		asset.PriceChange,
		asset.PriceChangePercent,
		asset.IsActive,
		asset.MinTradeAmount,
		asset.MaxTradeAmount,
		asset.PayoutPercentage,
		asset.UpdatedAt,
	).Scan(&asset.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return errors.New("asset already exists")
		}
		return err
	}

	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanAssetFrom(s scannable) (*models.Asset, error) {
	asset := &models.Asset{}
	err := s.Scan(
		&asset.ID,
		&asset.Symbol,
		&asset.Name,
		&asset.AssetType,
		&asset.CurrentPrice,
		&asset.PreviousPrice,
		&asset.PriceChange,
		&asset.PriceChangePercent,
		&asset.IsActive,
		&asset.MinTradeAmount,
		&asset.MaxTradeAmount,
		&asset.PayoutPercentage,
		&asset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func scanAsset(row *sql.Row) (*models.Asset, error) {
	asset, err := scanAssetFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}

func scanAssetRows(rows *sql.Rows) (*models.Asset, error) {
	return scanAssetFrom(rows)
}
