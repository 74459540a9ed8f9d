package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"binaryoptions/internal/models"
)

// dueSource - источник просроченных сделок (реализуется TradeRepository)
type dueSource interface {
	GetDue(now time.Time) ([]*models.Trade, error)
}

// tradeSettler - исполнитель расчета одной сделки (реализуется Engine)
type tradeSettler interface {
	SettleTrade(ctx context.Context, tradeID int) (*models.Trade, error)
}

// Scheduler - периодический планировщик расчета истекших сделок
//
// На каждом тике берет снимок всех активных сделок с истекшим сроком и
// рассчитывает их последовательно, изолируя сбои: ошибка одной сделки
// логируется, остальные сделки тика обрабатываются дальше. Ошибки
// никогда не фатальны для процесса - планировщик не перестает тикать
// из-за неудачного цикла. Нерассчитанная сделка остается active и
// естественно попадает в следующий тик.
type Scheduler struct {
	trades   dueSource
	settler  tradeSettler
	interval time.Duration
	logger   *zap.Logger

	shutdown chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewScheduler создает новый планировщик расчета
func NewScheduler(trades dueSource, settler tradeSettler, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		trades:   trades,
		settler:  settler,
		interval: interval,
		logger:   logger,
		shutdown: make(chan struct{}),
	}
}

// Start запускает цикл планировщика в отдельной горутине.
// Первый проход выполняется сразу, не дожидаясь первого тика.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.run()

	s.logger.Info("settlement scheduler started", zap.Duration("interval", s.interval))
}

// Stop останавливает планировщик и дожидается завершения текущего цикла.
// Тик не прерывается посередине пакета - только завершение процесса
// заканчивает обработку.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	s.logger.Info("settlement scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Немедленный первый проход
	s.RunCycle(context.Background())

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.RunCycle(context.Background())
		}
	}
}

// RunCycle выполняет один проход: снимок просроченных сделок и их
// последовательный расчет с изоляцией ошибок по сделкам.
func (s *Scheduler) RunCycle(ctx context.Context) {
	SchedulerCycles.Inc()

	due, err := s.trades.GetDue(time.Now())
	if err != nil {
		// Сбой выборки не фатален: следующий тик повторит попытку
		SchedulerErrors.Inc()
		s.logger.Error("failed to fetch due trades", zap.Error(err))
		return
	}

	DueTrades.Set(float64(len(due)))

	if len(due) == 0 {
		return
	}

	s.logger.Info("settling expired trades", zap.Int("count", len(due)))

	for _, trade := range due {
		if _, err := s.settler.SettleTrade(ctx, trade.ID); err != nil {
			if errors.Is(err, ErrAlreadySettled) {
				// Конкурирующий расчет успел раньше - не ошибка
				continue
			}

			// Изоляция сбоя: сделка остается active и будет
			// повторена на следующем тике
			SchedulerErrors.Inc()
			s.logger.Error("failed to settle trade",
				zap.Int("trade_id", trade.ID),
				zap.Error(err),
			)
		}
	}
}
