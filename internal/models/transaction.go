package models

import "time"

// Transaction - запись журнала балансовых операций (ledger)
//
// Журнал append-only: записи никогда не изменяются и не удаляются.
// Одна запись на каждое событие, влияющее на баланс. TradeID - слабая
// ссылка на породившую сделку (только для поиска, удаление сделки не
// каскадирует на журнал).
type Transaction struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Kind        string    `json:"kind" db:"kind"` // trade_open, trade_win, trade_tie, deposit
	Amount      float64   `json:"amount" db:"amount"` // со знаком: дебет < 0, кредит > 0
	Currency    string    `json:"currency" db:"currency"`
	Status      string    `json:"status" db:"status"`
	Method      string    `json:"method,omitempty" db:"method"` // для пополнений: card, crypto, bank
	Description string    `json:"description,omitempty" db:"description"`
	TradeID     *int      `json:"trade_id,omitempty" db:"trade_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Виды записей журнала
const (
	TxKindTradeOpen = "trade_open"
	TxKindTradeWin  = "trade_win"
	TxKindTradeTie  = "trade_tie"
	TxKindDeposit   = "deposit"
)

// Статусы записей журнала
const (
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Способы пополнения
const (
	PaymentMethodCard   = "card"
	PaymentMethodCrypto = "crypto"
	PaymentMethodBank   = "bank"
)
