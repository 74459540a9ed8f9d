package settlement

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
	"binaryoptions/pkg/utils"
)

// Ошибки движка расчета
var (
	// ErrAlreadySettled - сигнал идемпотентности, не сбой: сделка уже
	// переведена в терминальное состояние конкурирующей операцией.
	// Повторный расчет не выполняет никаких записей.
	ErrAlreadySettled = errors.New("trade already settled")
)

// Notifier - интерфейс для отправки real-time уведомлений клиентам.
// Реализуется пакетом internal/websocket.
type Notifier interface {
	// BroadcastTradeSettled отправляет уведомление о расчете сделки
	BroadcastTradeSettled(trade *models.Trade)
	// BroadcastBalanceUpdate отправляет новый баланс пользователя
	BroadcastBalanceUpdate(userID int, balance float64)
}

// Engine - движок расчета бинарных опционов
//
// Выполняет один расчет как атомарную транзакцию: терминальные поля
// сделки, изменение баланса и запись в журнал фиксируются вместе либо
// не фиксируются вовсе. Согласованность при конкуренции обеспечивают
// блокировка строки сделки (FOR UPDATE) и compare-and-swap по статусу.
type Engine struct {
	db     *sql.DB
	trades *repository.TradeRepository
	users  *repository.UserRepository
	assets *repository.AssetRepository
	ledger *repository.TransactionRepository

	logger   *zap.Logger
	notifier Notifier // может быть nil
}

// NewEngine создает новый движок расчета
func NewEngine(
	db *sql.DB,
	trades *repository.TradeRepository,
	users *repository.UserRepository,
	assets *repository.AssetRepository,
	ledger *repository.TransactionRepository,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:     db,
		trades: trades,
		users:  users,
		assets: assets,
		ledger: ledger,
		logger: logger,
	}
}

// SetNotifier устанавливает получателя real-time уведомлений.
// Вызывается после инициализации websocket hub.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SettleTrade рассчитывает одну сделку по текущей цене ее актива.
//
// Последовательность внутри одной транзакции:
//  1. Блокировка строки сделки; если статус не active - ErrAlreadySettled.
//  2. Снимок текущей цены актива.
//  3. Вычисление результата (win/loss/draw) и производных полей.
//  4. CAS-обновление сделки (WHERE status='active').
//  5. Для win и draw: кредит баланса под блокировкой строки пользователя
//     и запись в журнал. Для loss записей нет: ставка уже списана при
//     открытии, отсутствие возврата и есть проигрыш.
//
// Повторный вызов для рассчитанной сделки возвращает ErrAlreadySettled
// без каких-либо побочных эффектов.
func (e *Engine) SettleTrade(ctx context.Context, tradeID int) (*models.Trade, error) {
	start := time.Now()

	var settled *models.Trade
	var balance float64
	var notifyBalance bool

	err := repository.WithinTx(ctx, e.db, func(tx *sql.Tx) error {
		trade, err := e.trades.GetForUpdateTx(tx, tradeID)
		if err != nil {
			return err
		}

		// Конкурирующий расчет уже выполнил переход - выходим без записей
		if !trade.IsActive() {
			return ErrAlreadySettled
		}

		asset, err := e.assets.GetByIDTx(tx, trade.AssetID)
		if err != nil {
			return fmt.Errorf("asset %d: %w", trade.AssetID, err)
		}

		result := Outcome(trade.Direction, trade.EntryPrice, asset.CurrentPrice)
		trade.ApplyOutcome(result, asset.CurrentPrice, time.Now())

		if err := e.trades.SettleTx(tx, trade); err != nil {
			if errors.Is(err, repository.ErrTradeNotActive) {
				return ErrAlreadySettled
			}
			return err
		}

		credit, kind := settlementCredit(trade)
		if credit > 0 {
			user, err := e.users.GetForUpdateTx(tx, trade.UserID)
			if err != nil {
				return fmt.Errorf("user %d: %w", trade.UserID, err)
			}

			balance = utils.RoundMoney(user.Balance + credit)
			if err := e.users.UpdateBalanceTx(tx, user.ID, balance); err != nil {
				return err
			}

			tradeID := trade.ID
			entry := &models.Transaction{
				UserID:      user.ID,
				Kind:        kind,
				Amount:      credit,
				Currency:    user.Currency,
				Status:      models.TxStatusCompleted,
				Description: settlementDescription(trade, asset.Symbol),
				TradeID:     &tradeID,
			}
			if err := e.ledger.CreateTx(tx, entry); err != nil {
				return err
			}

			notifyBalance = true
		}

		settled = trade
		return nil
	})

	if err != nil {
		return nil, err
	}

	ObserveSettlement(settled.Result, time.Since(start))

	e.logger.Info("trade settled",
		zap.Int("trade_id", settled.ID),
		zap.String("result", settled.Result),
		zap.Float64("entry_price", settled.EntryPrice),
		zap.Float64("exit_price", *settled.ExitPrice),
		zap.Float64("profit", settled.Profit),
	)

	if e.notifier != nil {
		e.notifier.BroadcastTradeSettled(settled)
		if notifyBalance {
			e.notifier.BroadcastBalanceUpdate(settled.UserID, balance)
		}
	}

	return settled, nil
}

// settlementCredit возвращает сумму кредита баланса и вид записи журнала.
// Проигрыш не меняет баланс: кредит 0, записи нет.
func settlementCredit(trade *models.Trade) (float64, string) {
	switch trade.Result {
	case models.ResultWin:
		return trade.Amount + trade.Payout, models.TxKindTradeWin
	case models.ResultDraw:
		return trade.Amount, models.TxKindTradeTie
	default:
		return 0, ""
	}
}

func settlementDescription(trade *models.Trade, symbol string) string {
	verb := "won"
	if trade.Result == models.ResultDraw {
		verb = "tied"
	}
	return fmt.Sprintf("Trade %s: %s %s", verb, symbol, strings.ToUpper(trade.Direction))
}
