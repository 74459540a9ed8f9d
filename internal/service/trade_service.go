package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/settlement"
	"binaryoptions/pkg/utils"
)

// Ошибки сервиса сделок
var (
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrAssetUnavailable   = errors.New("asset is not available for trading")
	ErrInvalidDirection   = errors.New("direction must be call or put")
	ErrInvalidTradeAmount = errors.New("trade amount is outside asset limits")
	ErrInvalidDuration    = errors.New("duration must be between 1 and 1440 minutes")
	ErrTradeNotOwned      = errors.New("trade does not belong to user")
)

// Допустимый срок жизни сделки в минутах. Меньше минуты котировки не
// успевают сделать ни одного тика, больше суток держать опцион нет смысла.
const (
	MinTradeDurationMinutes = 1
	MaxTradeDurationMinutes = 1440
)

// OpenTradeRequest - параметры открытия сделки. Срок задается
// длительностью в минутах, время экспирации вычисляет сервер -
// часы клиента на него не влияют.
type OpenTradeRequest struct {
	AssetID         int     `json:"asset_id"`
	Direction       string  `json:"direction"`
	Amount          float64 `json:"amount"`
	DurationMinutes int     `json:"duration_minutes"`
}

// TradeService - бизнес-логика торговли бинарными опционами
type TradeService struct {
	db     *sql.DB
	trades *repository.TradeRepository
	users  *repository.UserRepository
	assets *repository.AssetRepository
	ledger *repository.TransactionRepository
	engine *settlement.Engine
	logger *zap.Logger
}

// NewTradeService создает новый сервис сделок
func NewTradeService(
	db *sql.DB,
	trades *repository.TradeRepository,
	users *repository.UserRepository,
	assets *repository.AssetRepository,
	ledger *repository.TransactionRepository,
	engine *settlement.Engine,
	logger *zap.Logger,
) *TradeService {
	return &TradeService{
		db:     db,
		trades: trades,
		users:  users,
		assets: assets,
		ledger: ledger,
		engine: engine,
		logger: logger,
	}
}

// OpenTrade открывает новую сделку.
//
// Списание ставки, создание сделки и запись в журнал выполняются одной
// транзакцией под блокировкой строки пользователя: конкурирующие
// открытия сериализуются, баланс не может уйти в минус. Цена входа и
// процент выплаты фиксируются снимком с актива на момент открытия -
// последующие изменения актива на открытую сделку не влияют.
func (s *TradeService) OpenTrade(ctx context.Context, userID int, req OpenTradeRequest) (*models.Trade, error) {
	direction := strings.ToLower(req.Direction)
	if direction != models.DirectionCall && direction != models.DirectionPut {
		return nil, ErrInvalidDirection
	}

	if req.DurationMinutes < MinTradeDurationMinutes || req.DurationMinutes > MaxTradeDurationMinutes {
		return nil, ErrInvalidDuration
	}
	expiry := time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute)

	var trade *models.Trade

	err := repository.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		asset, err := s.assets.GetByIDTx(tx, req.AssetID)
		if err != nil {
			if errors.Is(err, repository.ErrAssetNotFound) {
				return ErrAssetUnavailable
			}
			return err
		}
		if !asset.IsActive {
			return ErrAssetUnavailable
		}
		if req.Amount < asset.MinTradeAmount || req.Amount > asset.MaxTradeAmount {
			return ErrInvalidTradeAmount
		}

		user, err := s.users.GetForUpdateTx(tx, userID)
		if err != nil {
			return err
		}
		if user.Balance < req.Amount {
			return ErrInsufficientFunds
		}

		if err := s.users.UpdateBalanceTx(tx, user.ID, utils.RoundMoney(user.Balance-req.Amount)); err != nil {
			return err
		}

		trade = &models.Trade{
			UserID:           user.ID,
			AssetID:          asset.ID,
			Direction:        direction,
			Amount:           req.Amount,
			EntryPrice:       asset.CurrentPrice,
			ExpiryTime:       expiry,
			Status:           models.TradeStatusActive,
			PayoutPercentage: asset.PayoutPercentage,
		}
		if err := s.trades.CreateTx(tx, trade); err != nil {
			return err
		}

		tradeID := trade.ID
		entry := &models.Transaction{
			UserID:      user.ID,
			Kind:        models.TxKindTradeOpen,
			Amount:      -req.Amount,
			Currency:    user.Currency,
			Status:      models.TxStatusCompleted,
			Description: fmt.Sprintf("Trade opened: %s %s", asset.Symbol, strings.ToUpper(direction)),
			TradeID:     &tradeID,
		}
		return s.ledger.CreateTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	settlement.RecordTradeOpened(direction)

	s.logger.Info("trade opened",
		zap.Int("trade_id", trade.ID),
		zap.Int("user_id", userID),
		zap.String("direction", direction),
		zap.Float64("amount", trade.Amount),
		zap.Float64("entry_price", trade.EntryPrice),
		zap.Time("expiry", trade.ExpiryTime),
	)

	return trade, nil
}

// GetTrade возвращает сделку пользователя
func (s *TradeService) GetTrade(tradeID, userID int) (*models.Trade, error) {
	return s.trades.GetByIDForUser(tradeID, userID)
}

// ListTrades возвращает страницу сделок пользователя и общее количество.
// statusFilter: "" (все), active, won, lost, cancelled или closed
// (все терминальные).
func (s *TradeService) ListTrades(userID int, statusFilter string, limit, offset int) ([]*models.Trade, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	trades, err := s.trades.GetByUser(userID, statusFilter, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.trades.CountByUser(userID, statusFilter)
	if err != nil {
		return nil, 0, err
	}

	return trades, total, nil
}

// CloseTrade досрочно рассчитывает активную сделку пользователя по
// текущей цене актива. Исход определяется обычными правилами - досрочное
// закрытие не гарантирует возврата ставки.
func (s *TradeService) CloseTrade(ctx context.Context, tradeID, userID int) (*models.Trade, error) {
	trade, err := s.trades.GetByID(tradeID)
	if err != nil {
		return nil, err
	}
	if trade.UserID != userID {
		// Не раскрываем чужие сделки
		return nil, repository.ErrTradeNotFound
	}
	if !trade.IsActive() {
		return nil, settlement.ErrAlreadySettled
	}

	return s.engine.SettleTrade(ctx, tradeID)
}

// GetStats возвращает агрегированную статистику сделок пользователя
func (s *TradeService) GetStats(userID int) (*repository.TradeStats, error) {
	return s.trades.GetStats(userID)
}
