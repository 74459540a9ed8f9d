package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"binaryoptions/internal/config"
	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/pkg/crypto"
	"binaryoptions/pkg/token"
	"binaryoptions/pkg/utils"
)

// Ошибки сервиса пользователей
var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrAccountDisabled      = errors.New("account is disabled")
	ErrInvalidRefreshToken  = errors.New("refresh token is invalid or revoked")
	ErrInvalidDepositAmount = errors.New("deposit amount is outside allowed limits")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

// BalanceNotifier отправляет обновления баланса подключенным клиентам.
// Реализуется пакетом internal/websocket.
type BalanceNotifier interface {
	BroadcastBalanceUpdate(userID int, balance float64)
}

// RegisterRequest - параметры регистрации
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthTokens - пара access/refresh токенов
type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserService - регистрация, аутентификация и операции со счетом
type UserService struct {
	db     *sql.DB
	users  *repository.UserRepository
	ledger *repository.TransactionRepository
	tokens *token.Manager

	security config.SecurityConfig
	funding  config.FundingConfig

	logger   *zap.Logger
	notifier BalanceNotifier // может быть nil
}

// NewUserService создает новый сервис пользователей
func NewUserService(
	db *sql.DB,
	users *repository.UserRepository,
	ledger *repository.TransactionRepository,
	tokens *token.Manager,
	security config.SecurityConfig,
	funding config.FundingConfig,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		db:       db,
		users:    users,
		ledger:   ledger,
		tokens:   tokens,
		security: security,
		funding:  funding,
		logger:   logger,
	}
}

// SetNotifier устанавливает получателя обновлений баланса
func (s *UserService) SetNotifier(n BalanceNotifier) {
	s.notifier = n
}

// Register создает нового пользователя и выдает пару токенов
func (s *UserService) Register(req RegisterRequest) (*models.User, *AuthTokens, error) {
	email := utils.NormalizeEmail(req.Email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, nil, err
	}

	hash, err := crypto.HashPasswordWithCost(req.Password, s.security.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Balance:      0,
		Currency:     models.DefaultCurrency,
		IsActive:     true,
	}

	if err := s.users.Create(user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("email", email))

	return user, tokens, nil
}

// Login проверяет учетные данные и выдает пару токенов.
// Для несуществующего email и неверного пароля ответ одинаков -
// ErrInvalidCredentials не раскрывает, зарегистрирован ли адрес.
func (s *UserService) Login(email, password string) (*models.User, *AuthTokens, error) {
	user, err := s.users.GetByEmail(utils.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !crypto.CheckPasswordMatch(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(user.ID, now); err != nil {
		// Не критично для логина, фиксируем и продолжаем
		s.logger.Warn("failed to update last login", zap.Int("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	return user, tokens, nil
}

// Refresh обменивает действующий refresh-токен на новую пару токенов.
// Старый токен отзывается - каждый refresh-токен одноразовый.
func (s *UserService) Refresh(refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	known, err := s.users.HasRefreshToken(claims.UserID, refreshToken)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := s.users.RemoveRefreshToken(claims.UserID, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// Logout отзывает refresh-токен пользователя
func (s *UserService) Logout(userID int, refreshToken string) error {
	return s.users.RemoveRefreshToken(userID, refreshToken)
}

// Profile возвращает данные пользователя
func (s *UserService) Profile(userID int) (*models.User, error) {
	return s.users.GetByID(userID)
}

// Deposit пополняет счет пользователя.
//
// Кредит баланса и запись в журнал выполняются одной транзакцией под
// блокировкой строки пользователя. Платежный провайдер не вызывается -
// пополнение фиксируется сразу как завершенное.
func (s *UserService) Deposit(ctx context.Context, userID int, amount float64, method string) (*models.User, error) {
	if err := utils.ValidateAmountRange(amount, s.funding.MinDeposit, s.funding.MaxDeposit); err != nil {
		return nil, ErrInvalidDepositAmount
	}

	switch method {
	case models.PaymentMethodCard, models.PaymentMethodCrypto, models.PaymentMethodBank:
	default:
		return nil, ErrUnknownPaymentMethod
	}

	var user *models.User

	err := repository.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		user, err = s.users.GetForUpdateTx(tx, userID)
		if err != nil {
			return err
		}

		user.Balance = utils.RoundMoney(user.Balance + amount)
		if err := s.users.UpdateBalanceTx(tx, user.ID, user.Balance); err != nil {
			return err
		}

		entry := &models.Transaction{
			UserID:      user.ID,
			Kind:        models.TxKindDeposit,
			Amount:      amount,
			Currency:    user.Currency,
			Status:      models.TxStatusCompleted,
			Method:      method,
			Description: fmt.Sprintf("Deposit via %s", method),
		}
		return s.ledger.CreateTx(tx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit completed",
		zap.Int("user_id", userID),
		zap.Float64("amount", amount),
		zap.String("method", method),
		zap.Float64("balance", user.Balance),
	)

	if s.notifier != nil {
		s.notifier.BroadcastBalanceUpdate(user.ID, user.Balance)
	}

	return user, nil
}

// Transactions возвращает страницу журнала операций пользователя
func (s *UserService) Transactions(userID, limit, offset int) ([]*models.Transaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.ledger.GetByUser(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledger.CountByUser(userID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (s *UserService) issueTokens(user *models.User) (*AuthTokens, error) {
	access, err := s.tokens.NewAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.NewRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.users.AddRefreshToken(user.ID, refresh); err != nil {
		return nil, err
	}

	return &AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}
