package repository

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"binaryoptions/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound  = errors.New("trade not found")
	ErrTradeNotActive = errors.New("trade is not active")
)

const tradeColumns = `id, user_id, asset_id, direction, amount, entry_price, exit_price, expiry_time, status, result, profit, payout, payout_percentage, created_at, closed_at`

// TradeStatusFilterClosed - синтетический фильтр статуса: все терминальные
// состояния (won, lost, cancelled)
const TradeStatusFilterClosed = "closed"

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// CreateTx создает сделку внутри транзакции протокола открытия.
// Вне транзакции сделки не создаются: создание всегда сопровождается
// списанием баланса и записью в журнал.
func (r *TradeRepository) CreateTx(tx *sql.Tx, trade *models.Trade) error {
	query := `
		INSERT INTO trades (user_id, asset_id, direction, amount, entry_price, expiry_time, status, result, profit, payout, payout_percentage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	trade.CreatedAt = time.Now()
	if trade.Status == "" {
		trade.Status = models.TradeStatusActive
	}

	return tx.QueryRow(
		query,
		trade.UserID,
		trade.AssetID,
		trade.Direction,
		trade.Amount,
		trade.EntryPrice,
		trade.ExpiryTime,
		trade.Status,
		trade.Result,
		trade.Profit,
		trade.Payout,
		trade.PayoutPercentage,
		trade.CreatedAt,
	).Scan(&trade.ID)
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	return scanTradeRow(r.db.QueryRow(query, id))
}

// GetByIDForUser возвращает сделку по ID с проверкой владельца
func (r *TradeRepository) GetByIDForUser(id, userID int) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 AND user_id = $2`

	return scanTradeRow(r.db.QueryRow(query, id, userID))
}

// GetForUpdateTx читает сделку с блокировкой строки.
//
// Два конкурирующих расчета одной сделки сериализуются этой блокировкой:
// только первый увидит status=active и выполнит переход, второй увидит
// терминальное состояние и выйдет без побочных эффектов.
func (r *TradeRepository) GetForUpdateTx(tx *sql.Tx, id int) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 FOR UPDATE`

	return scanTradeRow(tx.QueryRow(query, id))
}

// GetByUser возвращает сделки пользователя с фильтром по статусу и пагинацией.
// statusFilter "" - все сделки; "closed" - все терминальные.
func (r *TradeRepository) GetByUser(userID int, statusFilter string, limit, offset int) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1`
	args := []interface{}{userID}

	switch statusFilter {
	case "":
		// без фильтра
	case TradeStatusFilterClosed:
		query += ` AND status IN ($2, $3, $4)`
		args = append(args, models.TradeStatusWon, models.TradeStatusLost, models.TradeStatusCancelled)
	default:
		query += ` AND status = $2`
		args = append(args, statusFilter)
	}

	query += ` ORDER BY created_at DESC`

	argPos := len(args)
	query += ` LIMIT $` + strconv.Itoa(argPos+1) + ` OFFSET $` + strconv.Itoa(argPos+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// CountByUser возвращает количество сделок пользователя под фильтром
func (r *TradeRepository) CountByUser(userID int, statusFilter string) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE user_id = $1`
	args := []interface{}{userID}

	switch statusFilter {
	case "":
	case TradeStatusFilterClosed:
		query += ` AND status IN ($2, $3, $4)`
		args = append(args, models.TradeStatusWon, models.TradeStatusLost, models.TradeStatusCancelled)
	default:
		query += ` AND status = $2`
		args = append(args, statusFilter)
	}

	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// GetDue возвращает все активные сделки с истекшим сроком.
// Планировщик расчета вызывает этот метод на каждом тике.
func (r *TradeRepository) GetDue(now time.Time) ([]*models.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = $1 AND expiry_time <= $2
		ORDER BY expiry_time`

	rows, err := r.db.Query(query, models.TradeStatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// SettleTx записывает терминальные поля сделки внутри транзакции расчета.
//
// Условие status='active' в WHERE - compare-and-swap: переход выполняется
// не более одного раза. ErrTradeNotActive означает, что сделка уже была
// рассчитана конкурирующей операцией.
func (r *TradeRepository) SettleTx(tx *sql.Tx, trade *models.Trade) error {
	query := `
		UPDATE trades
		SET status = $1, result = $2, exit_price = $3, profit = $4, payout = $5, closed_at = $6
		WHERE id = $7 AND status = $8`

	result, err := tx.Exec(
		query,
		trade.Status,
		trade.Result,
		trade.ExitPrice,
		trade.Profit,
		trade.Payout,
		trade.ClosedAt,
		trade.ID,
		models.TradeStatusActive,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTradeNotActive
	}

	return nil
}

// TradeStats - агрегированная статистика сделок пользователя
type TradeStats struct {
	TotalTrades   int     `json:"total_trades"`
	WonTrades     int     `json:"won_trades"`
	LostTrades    int     `json:"lost_trades"`
	TotalProfit   float64 `json:"total_profit"`
	TotalInvested float64 `json:"total_invested"` // ставки в активных сделках
}

// GetStats возвращает статистику сделок пользователя
func (r *TradeRepository) GetStats(userID int) (*TradeStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COALESCE(SUM(profit), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = $4), 0)
		FROM trades
		WHERE user_id = $1`

	stats := &TradeStats{}
	err := r.db.QueryRow(
		query,
		userID,
		models.TradeStatusWon,
		models.TradeStatusLost,
		models.TradeStatusActive,
	).Scan(
		&stats.TotalTrades,
		&stats.WonTrades,
		&stats.LostTrades,
		&stats.TotalProfit,
		&stats.TotalInvested,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func scanTradeFrom(s scannable) (*models.Trade, error) {
	trade := &models.Trade{}
	var exitPrice sql.NullFloat64
	var closedAt sql.NullTime

	err := s.Scan(
		&trade.ID,
		&trade.UserID,
		&trade.AssetID,
		&trade.Direction,
		&trade.Amount,
		&trade.EntryPrice,
		&exitPrice,
		&trade.ExpiryTime,
		&trade.Status,
		&trade.Result,
		&trade.Profit,
		&trade.Payout,
		&trade.PayoutPercentage,
		&trade.CreatedAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	if exitPrice.Valid {
		trade.ExitPrice = &exitPrice.Float64
	}
	if closedAt.Valid {
		trade.ClosedAt = &closedAt.Time
	}

	return trade, nil
}

func scanTradeRow(row *sql.Row) (*models.Trade, error) {
	trade, err := scanTradeFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return trade, nil
}

func scanTrade(rows *sql.Rows) (*models.Trade, error) {
	return scanTradeFrom(rows)
}
