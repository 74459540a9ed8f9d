package models

import (
	"time"

	"binaryoptions/pkg/utils"
)

// Trade представляет одну бинарную опционную позицию
type Trade struct {
	ID               int        `json:"id" db:"id"`
	UserID           int        `json:"user_id" db:"user_id"`
	AssetID          int        `json:"asset_id" db:"asset_id"`
	Direction        string     `json:"direction" db:"direction"`                 // call, put
	Amount           float64    `json:"amount" db:"amount"`                       // ставка, списывается при открытии
	EntryPrice       float64    `json:"entry_price" db:"entry_price"`             // снимок цены актива на момент открытия
	ExitPrice        *float64   `json:"exit_price,omitempty" db:"exit_price"`     // заполняется только при расчете
	ExpiryTime       time.Time  `json:"expiry_time" db:"expiry_time"`
	Status           string     `json:"status" db:"status"`                       // active, won, lost, cancelled
	Result           string     `json:"result,omitempty" db:"result"`             // win, loss, draw ("" пока активна)
	Profit           float64    `json:"profit" db:"profit"`                       // +payout / -amount / 0
	Payout           float64    `json:"payout" db:"payout"`                       // выплата при выигрыше, иначе 0
	PayoutPercentage float64    `json:"payout_percentage" db:"payout_percentage"` // снимок с актива на момент открытия
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty" db:"closed_at"`
}

// Статусы сделки
const (
	TradeStatusActive    = "active"
	TradeStatusWon       = "won"
	TradeStatusLost      = "lost"
	TradeStatusCancelled = "cancelled"
)

// Направления сделки
const (
	DirectionCall = "call" // ставка на рост цены
	DirectionPut  = "put"  // ставка на падение цены
)

// Результаты расчета
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// IsActive возвращает true если сделка еще не рассчитана
func (t *Trade) IsActive() bool {
	return t.Status == TradeStatusActive
}

// IsExpired возвращает true если срок сделки истек
func (t *Trade) IsExpired(now time.Time) bool {
	return !t.ExpiryTime.After(now)
}

// ApplyOutcome переводит сделку в терминальное состояние и вычисляет
// производные поля (payout, profit). Это единственное место, где
// устанавливается терминальный статус: статус и производные поля
// меняются только вместе, одной операцией.
func (t *Trade) ApplyOutcome(result string, exitPrice float64, closedAt time.Time) {
	t.Result = result
	t.ExitPrice = &exitPrice
	t.ClosedAt = &closedAt

	switch result {
	case ResultWin:
		t.Status = TradeStatusWon
		t.Payout = utils.PercentOf(t.Amount, t.PayoutPercentage)
		t.Profit = t.Payout
	case ResultLoss:
		t.Status = TradeStatusLost
		t.Payout = 0
		t.Profit = -t.Amount
	case ResultDraw:
		// Ничья: ставка возвращается полностью, прибыли и убытка нет
		t.Status = TradeStatusCancelled
		t.Payout = 0
		t.Profit = 0
	}
}
