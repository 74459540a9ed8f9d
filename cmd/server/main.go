package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binaryoptions/internal/api"
	"binaryoptions/internal/config"
	"binaryoptions/internal/pricefeed"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/service"
	"binaryoptions/internal/settlement"
	"binaryoptions/internal/websocket"
	"binaryoptions/pkg/logger"
	"binaryoptions/pkg/ratelimit"
	"binaryoptions/pkg/retry"
	"binaryoptions/pkg/token"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zlog.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		zlog.Fatal("не удалось подключиться к базе данных", zap.Error(err))
	}
	defer db.Close()

	zlog.Info("подключение к базе данных установлено",
		zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	userRepo := repository.NewUserRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	// JWT и rate limiter для логина
	tokens := token.NewManager(
		cfg.Security.JWTSecret,
		cfg.Security.AccessTokenTTL,
		cfg.Security.RefreshTokenTTL,
	)
	loginLimiter := ratelimit.NewKeyedLimiter(cfg.Security.LoginRateLimit, cfg.Security.LoginRateBurst)
	defer loginLimiter.Close()

	// Движок расчета и сервисы
	engine := settlement.NewEngine(db, tradeRepo, userRepo, assetRepo, txRepo, zlog)

	userService := service.NewUserService(db, userRepo, txRepo, tokens, cfg.Security, cfg.Funding, zlog)
	tradeService := service.NewTradeService(db, tradeRepo, userRepo, assetRepo, txRepo, engine, zlog)
	assetService := service.NewAssetService(assetRepo)

	// WebSocket hub: рассылка цен, расчетов и балансов
	hub := websocket.NewHub(zlog)
	go hub.Run()
	engine.SetNotifier(hub)
	userService.SetNotifier(hub)

	// Планировщик расчета просроченных сделок
	scheduler := settlement.NewScheduler(tradeRepo, engine, cfg.Settlement.Interval, zlog)
	scheduler.Start()

	// Генератор цен
	feed := pricefeed.NewFeed(assetRepo, hub, cfg.PriceFeed.Interval, cfg.PriceFeed.Volatility, zlog)
	feed.Start()

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		UserService:  userService,
		TradeService: tradeService,
		AssetService: assetService,
		Hub:          hub,
		Tokens:       tokens,
		LoginLimiter: loginLimiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       zlog,
		DB:           db,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		zlog.Info("запуск HTTP сервера", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("сервер упал", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("остановка сервера...")

	// Фоновые воркеры останавливаем до закрытия БД:
	// планировщик может еще дорасчитывать сделки
	feed.Stop()
	scheduler.Stop()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Fatal("сервер не остановился корректно", zap.Error(err))
	}

	zlog.Info("сервер остановлен")
}

// initDatabase создает подключение к базе данных.
// Postgres в соседнем контейнере может подниматься дольше самого сервиса,
// поэтому ping повторяется с экспоненциальной задержкой.
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	err = retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, retry.StartupConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
