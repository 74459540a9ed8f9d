package pricefeed

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"binaryoptions/internal/models"
	"binaryoptions/pkg/utils"
)

// assetStore - персистентность котировок (реализуется AssetRepository)
type assetStore interface {
	GetAll(assetType string, onlyActive bool) ([]*models.Asset, error)
	UpdatePrice(asset *models.Asset) error
}

// PriceNotifier получает каждую новую котировку (реализуется websocket.Hub)
type PriceNotifier interface {
	BroadcastPriceUpdate(asset *models.Asset)
}

// Feed - симулятор котировок случайным блужданием
//
// На каждом тике цена каждого активного актива сдвигается на случайную
// долю в пределах volatility, сохраняется в базу и рассылается
// клиентам. Движок расчета читает цены из базы, поэтому фид - ее
// единственный писатель котировок.
type Feed struct {
	store      assetStore
	notifier   PriceNotifier
	interval   time.Duration
	volatility float64
	logger     *zap.Logger

	rng *rand.Rand

	shutdown chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// NewFeed создает новый фид котировок
func NewFeed(store assetStore, notifier PriceNotifier, interval time.Duration, volatility float64, logger *zap.Logger) *Feed {
	return &Feed{
		store:      store,
		notifier:   notifier,
		interval:   interval,
		volatility: volatility,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		shutdown:   make(chan struct{}),
	}
}

// Start запускает цикл фида в отдельной горутине
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true

	f.wg.Add(1)
	go f.run()

	f.logger.Info("price feed started",
		zap.Duration("interval", f.interval),
		zap.Float64("volatility", f.volatility),
	)
}

// Stop останавливает фид и дожидается завершения текущего тика
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	close(f.shutdown)
	f.wg.Wait()

	f.logger.Info("price feed stopped")
}

func (f *Feed) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.shutdown:
			return
		case <-ticker.C:
			f.Tick(time.Now())
		}
	}
}

// Tick выполняет один шаг котировок по всем активным активам
func (f *Feed) Tick(now time.Time) {
	assets, err := f.store.GetAll("", true)
	if err != nil {
		f.logger.Error("failed to load assets for price tick", zap.Error(err))
		return
	}

	for _, asset := range assets {
		asset.UpdatePrice(f.nextPrice(asset.CurrentPrice), now)

		if err := f.store.UpdatePrice(asset); err != nil {
			f.logger.Error("failed to persist price",
				zap.String("symbol", asset.Symbol),
				zap.Error(err),
			)
			continue
		}

		if f.notifier != nil {
			f.notifier.BroadcastPriceUpdate(asset)
		}
	}
}

// nextPrice возвращает следующий шаг случайного блуждания.
// Сдвиг равномерный в [-volatility, +volatility] от текущей цены;
// цена не может упасть до нуля или ниже.
func (f *Feed) nextPrice(current float64) float64 {
	step := (f.rng.Float64()*2 - 1) * f.volatility
	next := utils.RoundPrice(current*(1+step), 6)
	if next <= 0 {
		return current
	}
	return next
}
