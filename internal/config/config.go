package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Security   SecurityConfig
	Settlement SettlementConfig
	PriceFeed  PriceFeedConfig
	Funding    FundingConfig
	Logging    LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// CORSOrigins - белый список доменов frontend для CORS
	CORSOrigins []string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки аутентификации
type SecurityConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// Лимит попыток логина на один IP (защита от перебора паролей)
	LoginRateLimit float64
	LoginRateBurst float64
}

// SettlementConfig - настройки планировщика расчета сделок
type SettlementConfig struct {
	// Interval - период опроса просроченных сделок
	Interval time.Duration
}

// PriceFeedConfig - настройки источника котировок
type PriceFeedConfig struct {
	Interval   time.Duration
	Volatility float64 // относительная величина шага цены за тик
}

// FundingConfig - лимиты пополнения счета за одну операцию
type FundingConfig struct {
	MinDeposit float64
	MaxDeposit float64
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000", "http://127.0.0.1:3000",
				"http://localhost:8080", "http://127.0.0.1:8080",
				"http://localhost:5173", "http://127.0.0.1:5173", // Vite dev server
			}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "binaryoptions"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			JWTSecret:       getEnv("JWT_SECRET", "change-me-in-production"),
			AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			BcryptCost:      getEnvAsInt("BCRYPT_COST", 12),
			LoginRateLimit:  getEnvAsFloat("LOGIN_RATE_LIMIT", 0.5), // 1 попытка в 2 секунды
			LoginRateBurst:  getEnvAsFloat("LOGIN_RATE_BURST", 5),
		},
		Settlement: SettlementConfig{
			Interval: getEnvAsDuration("SETTLEMENT_INTERVAL", 10*time.Second),
		},
		PriceFeed: PriceFeedConfig{
			Interval:   getEnvAsDuration("PRICE_FEED_INTERVAL", 1*time.Second),
			Volatility: getEnvAsFloat("PRICE_FEED_VOLATILITY", 0.0005),
		},
		Funding: FundingConfig{
			MinDeposit: getEnvAsFloat("MIN_DEPOSIT", 10),
			MaxDeposit: getEnvAsFloat("MAX_DEPOSIT", 10000),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for authentication")
	}

	if c.Security.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET must be changed from default value in production")
	}

	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Settlement.Interval <= 0 {
		return fmt.Errorf("SETTLEMENT_INTERVAL must be positive, got %v", c.Settlement.Interval)
	}

	if c.PriceFeed.Interval <= 0 {
		return fmt.Errorf("PRICE_FEED_INTERVAL must be positive, got %v", c.PriceFeed.Interval)
	}

	if c.PriceFeed.Volatility <= 0 || c.PriceFeed.Volatility > 0.1 {
		return fmt.Errorf("PRICE_FEED_VOLATILITY must be in (0, 0.1], got %v", c.PriceFeed.Volatility)
	}

	if c.Security.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %v", c.Security.AccessTokenTTL)
	}

	if c.Security.RefreshTokenTTL <= c.Security.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL, got %v", c.Security.RefreshTokenTTL)
	}

	if c.Funding.MinDeposit <= 0 || c.Funding.MaxDeposit <= c.Funding.MinDeposit {
		return fmt.Errorf("deposit limits invalid: min %v, max %v", c.Funding.MinDeposit, c.Funding.MaxDeposit)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
