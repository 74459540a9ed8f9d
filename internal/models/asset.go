package models

import (
	"time"

	"binaryoptions/pkg/utils"
)

// Asset представляет торгуемый актив
//
// CurrentPrice обновляется внешним источником котировок; ядро расчета
// читает цену как снимок на момент обращения.
type Asset struct {
	ID                 int       `json:"id" db:"id"`
	Symbol             string    `json:"symbol" db:"symbol"` // EURUSD, BTCUSD
	Name               string    `json:"name" db:"name"`
	AssetType          string    `json:"asset_type" db:"asset_type"` // forex, crypto, stock, commodity, index
	CurrentPrice       float64   `json:"current_price" db:"current_price"`
	PreviousPrice      float64   `json:"previous_price" db:"previous_price"`
	PriceChange        float64   `json:"price_change" db:"price_change"`
	PriceChangePercent float64   `json:"price_change_percent" db:"price_change_percent"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	MinTradeAmount     float64   `json:"min_trade_amount" db:"min_trade_amount"`
	MaxTradeAmount     float64   `json:"max_trade_amount" db:"max_trade_amount"`
	PayoutPercentage   float64   `json:"payout_percentage" db:"payout_percentage"` // 0-100
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Типы активов
const (
	AssetTypeForex     = "forex"
	AssetTypeCrypto    = "crypto"
	AssetTypeStock     = "stock"
	AssetTypeCommodity = "commodity"
	AssetTypeIndex     = "index"
)

// UpdatePrice записывает новую цену и пересчитывает изменение
func (a *Asset) UpdatePrice(price float64, at time.Time) {
	a.PreviousPrice = a.CurrentPrice
	a.CurrentPrice = price
	a.PriceChange = price - a.PreviousPrice
	a.PriceChangePercent = utils.ChangePercent(a.PreviousPrice, price)
	a.UpdatedAt = at
}
