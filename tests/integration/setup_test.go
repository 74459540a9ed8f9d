//go:build integration

// Package integration contains integration tests for the binary options platform.
//
// These tests verify the correct interaction between components:
// - API integration tests: full HTTP request cycle
// - WebSocket tests: connection, targeted broadcast messaging
//
// Integration tests use build tag "integration" to separate from unit tests.
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"binaryoptions/internal/api"
	"binaryoptions/internal/config"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/service"
	"binaryoptions/internal/settlement"
	"binaryoptions/internal/websocket"
	"binaryoptions/pkg/ratelimit"
	"binaryoptions/pkg/token"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const testJWTSecret = "integration-test-secret-0123456789"

// TestConfig contains database configuration for integration tests
type TestConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// TestServer encapsulates all components needed for integration testing
type TestServer struct {
	DB      *sql.DB
	Router  *mux.Router
	Server  *httptest.Server
	Hub     *websocket.Hub
	Engine  *settlement.Engine
	Tokens  *token.Manager
	Users   *service.UserService
	Trades  *service.TradeService
	Cleanup func()
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "binaryoptions_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// SetupTestServer creates a complete test server with all components
func SetupTestServer(t *testing.T) *TestServer {
	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	if err := initTestTables(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize tables: %v", err)
		return nil
	}

	logger := zap.NewNop()

	hub := websocket.NewHub(logger)
	go hub.Run()

	userRepo := repository.NewUserRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	txRepo := repository.NewTransactionRepository(db)

	tokens := token.NewManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	limiter := ratelimit.NewKeyedLimiter(100, 100) // в тестах лимит не должен мешать

	engine := settlement.NewEngine(db, tradeRepo, userRepo, assetRepo, txRepo, logger)
	engine.SetNotifier(hub)

	security := config.SecurityConfig{
		JWTSecret:       testJWTSecret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		BcryptCost:      4, // минимальная стоимость, тесты не должны тормозить
	}
	funding := config.FundingConfig{MinDeposit: 10, MaxDeposit: 10000}

	userSvc := service.NewUserService(db, userRepo, txRepo, tokens, security, funding, logger)
	userSvc.SetNotifier(hub)
	tradeSvc := service.NewTradeService(db, tradeRepo, userRepo, assetRepo, txRepo, engine, logger)
	assetSvc := service.NewAssetService(assetRepo)

	deps := &api.Dependencies{
		UserService:  userSvc,
		TradeService: tradeSvc,
		AssetService: assetSvc,
		Hub:          hub,
		Tokens:       tokens,
		LoginLimiter: limiter,
		Logger:       logger,
		DB:           db,
	}
	router := api.SetupRoutes(deps)

	server := httptest.NewServer(router)

	cleanup := func() {
		server.Close()
		hub.Stop()
		limiter.Close()
		cleanupTestTables(db)
		dbCleanup()
	}

	return &TestServer{
		DB:      db,
		Router:  router,
		Server:  server,
		Hub:     hub,
		Engine:  engine,
		Tokens:  tokens,
		Users:   userSvc,
		Trades:  tradeSvc,
		Cleanup: cleanup,
	}
}

// initTestTables creates or truncates tables for testing
func initTestTables(db *sql.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(254) UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			balance DECIMAL(20, 2) NOT NULL DEFAULT 0,
			currency VARCHAR(10) NOT NULL DEFAULT 'USD',
			is_active BOOLEAN NOT NULL DEFAULT true,
			last_login TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id SERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) UNIQUE NOT NULL,
			name VARCHAR(100) NOT NULL,
			asset_type VARCHAR(20) NOT NULL,
			current_price DECIMAL(20, 6) NOT NULL,
			previous_price DECIMAL(20, 6) NOT NULL DEFAULT 0,
			price_change DECIMAL(20, 6) NOT NULL DEFAULT 0,
			price_change_percent DECIMAL(10, 4) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT true,
			min_trade_amount DECIMAL(20, 2) NOT NULL DEFAULT 1,
			max_trade_amount DECIMAL(20, 2) NOT NULL DEFAULT 1000,
			payout_percentage DECIMAL(5, 2) NOT NULL DEFAULT 85,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id),
			asset_id INT NOT NULL REFERENCES assets(id),
			direction VARCHAR(10) NOT NULL,
			amount DECIMAL(20, 2) NOT NULL,
			entry_price DECIMAL(20, 6) NOT NULL,
			exit_price DECIMAL(20, 6),
			expiry_time TIMESTAMP NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			result VARCHAR(10) NOT NULL DEFAULT '',
			profit DECIMAL(20, 2) NOT NULL DEFAULT 0,
			payout DECIMAL(20, 2) NOT NULL DEFAULT 0,
			payout_percentage DECIMAL(5, 2) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			user_id INT NOT NULL REFERENCES users(id),
			kind VARCHAR(20) NOT NULL,
			amount DECIMAL(20, 2) NOT NULL,
			currency VARCHAR(10) NOT NULL DEFAULT 'USD',
			status VARCHAR(20) NOT NULL DEFAULT 'completed',
			method VARCHAR(20) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			trade_id INT REFERENCES trades(id),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Тестовый актив
	_, err := db.Exec(`
		INSERT INTO assets (symbol, name, asset_type, current_price, min_trade_amount, max_trade_amount, payout_percentage)
		VALUES ('EURUSD', 'Euro / US Dollar', 'forex', 1.0850, 1, 1000, 85)
		ON CONFLICT (symbol) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to insert test asset: %w", err)
	}

	return nil
}

// cleanupTestTables truncates all test tables
func cleanupTestTables(db *sql.DB) {
	tables := []string{"transactions", "trades", "refresh_tokens", "users"}
	for _, table := range tables {
		if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			log.Printf("Error truncating table %s: %v", table, err)
		}
	}
}
