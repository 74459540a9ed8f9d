package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"binaryoptions/internal/config"
	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/pkg/crypto"
	"binaryoptions/pkg/token"
)

// ============================================================
// UserService Tests
// ============================================================

func newTestUserService(t *testing.T) (*UserService, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}

	svc := NewUserService(
		db,
		repository.NewUserRepository(db),
		repository.NewTransactionRepository(db),
		token.NewManager("unit-test-secret", 15*time.Minute, 7*24*time.Hour),
		config.SecurityConfig{BcryptCost: bcrypt.MinCost},
		config.FundingConfig{MinDeposit: 10, MaxDeposit: 10000},
		zap.NewNop(),
	)

	return svc, mock, db
}

func userRowWithHash(id int, hash string, active bool, balance float64) *sqlmock.Rows {
	return sqlmock.NewRows(userTestColumns).AddRow(
		id, "trader@example.com", hash, "Ivan", "Petrov", balance,
		"USD", active, nil, time.Now(),
	)
}

func TestRegister(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("trader@example.com", sqlmock.AnyArg(), "Ivan", "Petrov",
			float64(0), "USD", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user, tokens, err := svc.Register(RegisterRequest{
		Email:     " Trader@Example.com ",
		Password:  "password123",
		FirstName: "Ivan",
		LastName:  "Petrov",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Email != "trader@example.com" {
		t.Errorf("email должен нормализоваться, получили %q", user.Email)
	}
	if user.PasswordHash == "password123" {
		t.Error("пароль должен храниться хешированным")
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Error("регистрация должна выдавать пару токенов")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, db := newTestUserService(t)
	defer db.Close()

	if _, _, err := svc.Register(RegisterRequest{Email: "bad-email", Password: "password123"}); err == nil {
		t.Error("невалидный email должен быть отклонен")
	}
	if _, _, err := svc.Register(RegisterRequest{Email: "ok@example.com", Password: "short"}); err == nil {
		t.Error("слабый пароль должен быть отклонен")
	}
}

func TestRegisterEmailTaken(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))

	_, _, err := svc.Register(RegisterRequest{Email: "taken@example.com", Password: "password123"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("ожидали ErrEmailTaken, получили %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	hash, _ := crypto.HashPasswordWithCost("password123", bcrypt.MinCost)

	mock.ExpectQuery(`SELECT (.+) FROM users`).
		WithArgs("trader@example.com").
		WillReturnRows(userRowWithHash(5, hash, true, 100.0))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE users SET last_login`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, tokens, err := svc.Login("Trader@Example.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.ID != 5 {
		t.Errorf("ID: ожидали 5, получили %d", user.ID)
	}
	if user.LastLogin == nil {
		t.Error("LastLogin должен обновиться после входа")
	}
	if tokens.AccessToken == "" {
		t.Error("вход должен выдавать access-токен")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	hash, _ := crypto.HashPasswordWithCost("password123", bcrypt.MinCost)

	mock.ExpectQuery(`SELECT (.+) FROM users`).
		WithArgs("trader@example.com").
		WillReturnRows(userRowWithHash(5, hash, true, 100.0))

	_, _, err := svc.Login("trader@example.com", "wrongpassword")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("ожидали ErrInvalidCredentials, получили %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM users`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	// Ответ не отличается от неверного пароля
	_, _, err := svc.Login("ghost@example.com", "password123")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("ожидали ErrInvalidCredentials, получили %v", err)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	hash, _ := crypto.HashPasswordWithCost("password123", bcrypt.MinCost)

	mock.ExpectQuery(`SELECT (.+) FROM users`).
		WithArgs("trader@example.com").
		WillReturnRows(userRowWithHash(5, hash, false, 100.0))

	_, _, err := svc.Login("trader@example.com", "password123")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("ожидали ErrAccountDisabled, получили %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	refresh, err := svc.tokens.NewRefreshToken(5, "trader@example.com")
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM refresh_tokens`).
		WithArgs(5, refresh).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM users`).
		WithArgs(5).
		WillReturnRows(userRowWithHash(5, "hash", true, 100.0))
	mock.ExpectExec(`DELETE FROM refresh_tokens`).
		WithArgs(5, refresh).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	tokens, err := svc.Refresh(refresh)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.RefreshToken == refresh {
		t.Error("refresh-токен должен ротироваться")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRefreshRevokedToken(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	refresh, _ := svc.tokens.NewRefreshToken(5, "trader@example.com")

	// Токен подписан верно, но отозван (нет в базе)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM refresh_tokens`).
		WithArgs(5, refresh).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := svc.Refresh(refresh)
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("ожидали ErrInvalidRefreshToken, получили %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	svc, _, db := newTestUserService(t)
	defer db.Close()

	_, err := svc.Refresh("not-a-jwt")
	if !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("ожидали ErrInvalidRefreshToken, получили %v", err)
	}
}

func TestDeposit(t *testing.T) {
	svc, mock, db := newTestUserService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM users`).
		WithArgs(5).
		WillReturnRows(userRowWithHash(5, "hash", true, 100.0))
	mock.ExpectExec(`UPDATE users SET balance`).
		WithArgs(600.0, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(5, models.TxKindDeposit, 500.0, "USD", models.TxStatusCompleted,
			models.PaymentMethodCard, "Deposit via card", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	mock.ExpectCommit()

	user, err := svc.Deposit(context.Background(), 5, 500.0, models.PaymentMethodCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Balance != 600.0 {
		t.Errorf("Balance: ожидали 600.0, получили %v", user.Balance)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDepositValidation(t *testing.T) {
	svc, _, db := newTestUserService(t)
	defer db.Close()

	tests := []struct {
		name     string
		amount   float64
		method   string
		expected error
	}{
		{"below minimum", 5, models.PaymentMethodCard, ErrInvalidDepositAmount},
		{"above maximum", 10001, models.PaymentMethodCard, ErrInvalidDepositAmount},
		{"unknown method", 100, "paypal", ErrUnknownPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Deposit(context.Background(), 5, tt.amount, tt.method)
			if !errors.Is(err, tt.expected) {
				t.Errorf("ожидали %v, получили %v", tt.expected, err)
			}
		})
	}
}
