package websocket

import (
	"time"

	"binaryoptions/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePriceUpdate - новая котировка актива.
	// Отправляется всем подключенным клиентам на каждом тике фида.
	MessageTypePriceUpdate MessageType = "priceUpdate"

	// MessageTypeTradeSettled - сделка рассчитана.
	// Отправляется только владельцу сделки.
	MessageTypeTradeSettled MessageType = "tradeSettled"

	// MessageTypeBalanceUpdate - новый баланс счета.
	// Отправляется только владельцу счета.
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"
)

// BaseMessage - общие поля всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PriceUpdateMessage - сообщение о новой котировке
type PriceUpdateMessage struct {
	BaseMessage
	AssetID            int     `json:"asset_id"`
	Symbol             string  `json:"symbol"`
	Price              float64 `json:"price"`
	PriceChange        float64 `json:"price_change"`
	PriceChangePercent float64 `json:"price_change_percent"`
}

// TradeSettledMessage - сообщение о расчете сделки
type TradeSettledMessage struct {
	BaseMessage
	Trade *models.Trade `json:"trade"`
}

// BalanceUpdateMessage - сообщение о новом балансе счета
type BalanceUpdateMessage struct {
	BaseMessage
	Balance float64 `json:"balance"`
}

// NewPriceUpdateMessage создает сообщение котировки из состояния актива
func NewPriceUpdateMessage(asset *models.Asset) *PriceUpdateMessage {
	return &PriceUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePriceUpdate,
			Timestamp: time.Now(),
		},
		AssetID:            asset.ID,
		Symbol:             asset.Symbol,
		Price:              asset.CurrentPrice,
		PriceChange:        asset.PriceChange,
		PriceChangePercent: asset.PriceChangePercent,
	}
}

// NewTradeSettledMessage создает сообщение о расчете сделки
func NewTradeSettledMessage(trade *models.Trade) *TradeSettledMessage {
	return &TradeSettledMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeSettled,
			Timestamp: time.Now(),
		},
		Trade: trade,
	}
}

// NewBalanceUpdateMessage создает сообщение о новом балансе
func NewBalanceUpdateMessage(balance float64) *BalanceUpdateMessage {
	return &BalanceUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBalanceUpdate,
			Timestamp: time.Now(),
		},
		Balance: balance,
	}
}
