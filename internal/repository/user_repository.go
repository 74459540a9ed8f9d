package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"binaryoptions/internal/models"
)

// Ошибки репозитория пользователей
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserRepository - работа с таблицами users и refresh_tokens
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository создает новый экземпляр репозитория
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create создает нового пользователя
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, balance, currency, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	user.CreatedAt = time.Now()
	if user.Currency == "" {
		user.Currency = models.DefaultCurrency
	}
	user.IsActive = true

	err := r.db.QueryRow(
		query,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Balance,
		user.Currency,
		user.IsActive,
		user.CreatedAt,
	).Scan(&user.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return err
	}

	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepository) GetByID(id int) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, balance, currency, is_active, last_login, created_at
		FROM users
		WHERE id = $1`

	return r.scanUser(r.db.QueryRow(query, id))
}

// GetByEmail возвращает пользователя по email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, balance, currency, is_active, last_login, created_at
		FROM users
		WHERE email = $1`

	return r.scanUser(r.db.QueryRow(query, email))
}

// GetForUpdateTx читает пользователя с блокировкой строки (SELECT ... FOR UPDATE).
//
// Используется протоколами открытия сделки, расчета и пополнения:
// блокировка сериализует конкурирующие операции над одним балансом
// в пределах транзакции.
func (r *UserRepository) GetForUpdateTx(tx *sql.Tx, id int) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, balance, currency, is_active, last_login, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE`

	return r.scanUser(tx.QueryRow(query, id))
}

// UpdateBalanceTx записывает новый баланс внутри транзакции.
//
// Вызывается только под блокировкой строки из GetForUpdateTx - это
// единственный путь изменения баланса во всей системе.
func (r *UserRepository) UpdateBalanceTx(tx *sql.Tx, id int, balance float64) error {
	query := `UPDATE users SET balance = $1 WHERE id = $2`

	result, err := tx.Exec(query, balance, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateLastLogin отмечает время последнего входа
func (r *UserRepository) UpdateLastLogin(id int, at time.Time) error {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`

	_, err := r.db.Exec(query, at, id)
	return err
}

// AddRefreshToken сохраняет refresh токен пользователя
func (r *UserRepository) AddRefreshToken(userID int, token string) error {
	query := `INSERT INTO refresh_tokens (user_id, token, created_at) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(query, userID, token, time.Now())
	return err
}

// HasRefreshToken проверяет, что refresh токен был выдан и не отозван
func (r *UserRepository) HasRefreshToken(userID int, token string) (bool, error) {
	query := `SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1 AND token = $2`

	var count int
	if err := r.db.QueryRow(query, userID, token).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// RemoveRefreshToken отзывает refresh токен (logout)
func (r *UserRepository) RemoveRefreshToken(userID int, token string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1 AND token = $2`

	_, err := r.db.Exec(query, userID, token)
	return err
}

// scanUser читает строку пользователя
func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Balance,
		&user.Currency,
		&user.IsActive,
		&lastLogin,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	return user, nil
}

// isUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "23505")
}
