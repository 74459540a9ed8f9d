package repository

import (
	"database/sql"
	"time"

	"binaryoptions/internal/models"
)

const transactionColumns = `id, user_id, kind, amount, currency, status, method, description, trade_id, created_at`

// TransactionRepository - работа с таблицей transactions (журнал балансовых операций)
//
// Журнал append-only: единственная операция записи - CreateTx, выполняемая
// внутри той же транзакции, что и сопровождающее изменение баланса.
// Update и Delete отсутствуют намеренно.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository создает новый экземпляр репозитория
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTx добавляет запись в журнал внутри транзакции
func (r *TransactionRepository) CreateTx(tx *sql.Tx, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, kind, amount, currency, status, method, description, trade_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	txn.CreatedAt = time.Now()
	if txn.Status == "" {
		txn.Status = models.TxStatusCompleted
	}

	return tx.QueryRow(
		query,
		txn.UserID,
		txn.Kind,
		txn.Amount,
		txn.Currency,
		txn.Status,
		txn.Method,
		txn.Description,
		txn.TradeID,
		txn.CreatedAt,
	).Scan(&txn.ID)
}

// GetByUser возвращает записи журнала пользователя (новые первыми)
func (r *TransactionRepository) GetByUser(userID int, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn := &models.Transaction{}
		var tradeID sql.NullInt64

		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Kind,
			&txn.Amount,
			&txn.Currency,
			&txn.Status,
			&txn.Method,
			&txn.Description,
			&tradeID,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if tradeID.Valid {
			id := int(tradeID.Int64)
			txn.TradeID = &id
		}

		txns = append(txns, txn)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return txns, nil
}

// CountByUser возвращает количество записей журнала пользователя
func (r *TransactionRepository) CountByUser(userID int) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`

	var count int
	if err := r.db.QueryRow(query, userID).Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// GetByTradeID возвращает записи журнала, ссылающиеся на сделку.
// Слабая ссылка: записи существуют независимо от сделки.
func (r *TransactionRepository) GetByTradeID(tradeID int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE trade_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(query, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn := &models.Transaction{}
		var tid sql.NullInt64

		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Kind,
			&txn.Amount,
			&txn.Currency,
			&txn.Status,
			&txn.Method,
			&txn.Description,
			&tid,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if tid.Valid {
			id := int(tid.Int64)
			txn.TradeID = &id
		}

		txns = append(txns, txn)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return txns, nil
}
