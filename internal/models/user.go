package models

import "time"

// User представляет аккаунт трейдера
//
// Баланс изменяется только внутри транзакций протоколов открытия сделки,
// расчета и пополнения. Прямая запись баланса вне этих протоколов запрещена.
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Balance      float64   `json:"balance" db:"balance"` // неотрицательный
	Currency     string    `json:"currency" db:"currency"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DefaultCurrency - валюта аккаунта по умолчанию
const DefaultCurrency = "USD"
