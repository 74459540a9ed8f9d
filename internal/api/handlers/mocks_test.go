package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"binaryoptions/internal/models"
	"binaryoptions/internal/repository"
	"binaryoptions/internal/service"
)

// ErrMockDatabase имитирует отказ БД в тестах
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock User Service ============

// MockUserService мок для authService и userService
type MockUserService struct {
	users      map[int]*models.User
	byEmail    map[string]*models.User
	nextID     int
	registered []service.RegisterRequest
	errs       map[string]error
	mu         sync.Mutex
}

// NewMockUserService создает новый мок пользовательского сервиса
func NewMockUserService() *MockUserService {
	return &MockUserService{
		users:   make(map[int]*models.User),
		byEmail: make(map[string]*models.User),
		nextID:  1,
		errs:    make(map[string]error),
	}
}

// SetError устанавливает ошибку для конкретного метода (register, login, ...)
func (m *MockUserService) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

// AddUser добавляет пользователя напрямую, минуя регистрацию
func (m *MockUserService) AddUser(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	}
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
}

func mockTokens() *service.AuthTokens {
	return &service.AuthTokens{
		AccessToken:  "mock-access-token",
		RefreshToken: "mock-refresh-token",
	}
}

func (m *MockUserService) Register(req service.RegisterRequest) (*models.User, *service.AuthTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["register"]; err != nil {
		return nil, nil, err
	}
	if _, exists := m.byEmail[req.Email]; exists {
		return nil, nil, service.ErrEmailTaken
	}

	user := &models.User{
		ID:        m.nextID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Currency:  "USD",
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	m.nextID++
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
	m.registered = append(m.registered, req)

	return user, mockTokens(), nil
}

func (m *MockUserService) Login(email, password string) (*models.User, *service.AuthTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["login"]; err != nil {
		return nil, nil, err
	}
	user, exists := m.byEmail[email]
	if !exists {
		return nil, nil, service.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, service.ErrAccountDisabled
	}
	return user, mockTokens(), nil
}

func (m *MockUserService) Refresh(refreshToken string) (*service.AuthTokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["refresh"]; err != nil {
		return nil, err
	}
	if refreshToken != "mock-refresh-token" {
		return nil, service.ErrInvalidRefreshToken
	}
	return mockTokens(), nil
}

func (m *MockUserService) Logout(userID int, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs["logout"]
}

func (m *MockUserService) Profile(userID int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["profile"]; err != nil {
		return nil, err
	}
	user, exists := m.users[userID]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *MockUserService) Deposit(ctx context.Context, userID int, amount float64, method string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["deposit"]; err != nil {
		return nil, err
	}
	if amount < 10 || amount > 10000 {
		return nil, service.ErrInvalidDepositAmount
	}
	if method != "card" && method != "crypto" && method != "bank" {
		return nil, service.ErrUnknownPaymentMethod
	}
	user, exists := m.users[userID]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	user.Balance += amount
	return user, nil
}

func (m *MockUserService) Transactions(userID, limit, offset int) ([]*models.Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["transactions"]; err != nil {
		return nil, 0, err
	}
	return []*models.Transaction{}, 0, nil
}

// ============ Mock Trade Service ============

// MockTradeService мок для tradeService
type MockTradeService struct {
	trades map[int]*models.Trade
	nextID int
	errs   map[string]error
	mu     sync.Mutex
}

// NewMockTradeService создает новый мок сервиса сделок
func NewMockTradeService() *MockTradeService {
	return &MockTradeService{
		trades: make(map[int]*models.Trade),
		nextID: 1,
		errs:   make(map[string]error),
	}
}

// SetError устанавливает ошибку для конкретного метода (open, get, list, close, stats)
func (m *MockTradeService) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

// AddTrade добавляет сделку напрямую
func (m *MockTradeService) AddTrade(trade *models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if trade.ID == 0 {
		trade.ID = m.nextID
		m.nextID++
	}
	m.trades[trade.ID] = trade
}

func (m *MockTradeService) OpenTrade(ctx context.Context, userID int, req service.OpenTradeRequest) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["open"]; err != nil {
		return nil, err
	}

	trade := &models.Trade{
		ID:         m.nextID,
		UserID:     userID,
		AssetID:    req.AssetID,
		Direction:  req.Direction,
		Amount:     req.Amount,
		ExpiryTime: time.Now().Add(time.Duration(req.DurationMinutes) * time.Minute),
		Status:     models.TradeStatusActive,
		CreatedAt:  time.Now(),
	}
	m.nextID++
	m.trades[trade.ID] = trade
	return trade, nil
}

func (m *MockTradeService) GetTrade(tradeID, userID int) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	trade, exists := m.trades[tradeID]
	if !exists || trade.UserID != userID {
		return nil, repository.ErrTradeNotFound
	}
	return trade, nil
}

func (m *MockTradeService) ListTrades(userID int, statusFilter string, limit, offset int) ([]*models.Trade, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["list"]; err != nil {
		return nil, 0, err
	}

	result := make([]*models.Trade, 0)
	for _, trade := range m.trades {
		if trade.UserID != userID {
			continue
		}
		if statusFilter != "" && trade.Status != statusFilter {
			continue
		}
		result = append(result, trade)
	}
	return result, len(result), nil
}

func (m *MockTradeService) CloseTrade(ctx context.Context, tradeID, userID int) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["close"]; err != nil {
		return nil, err
	}
	trade, exists := m.trades[tradeID]
	if !exists || trade.UserID != userID {
		return nil, repository.ErrTradeNotFound
	}
	trade.Status = models.TradeStatusWon
	return trade, nil
}

func (m *MockTradeService) GetStats(userID int) (*repository.TradeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["stats"]; err != nil {
		return nil, err
	}
	return &repository.TradeStats{TotalTrades: len(m.trades)}, nil
}

// ============ Mock Asset Service ============

// MockAssetService мок для assetService
type MockAssetService struct {
	assets map[int]*models.Asset
	errs   map[string]error
	mu     sync.Mutex
}

// NewMockAssetService создает новый мок сервиса активов
func NewMockAssetService() *MockAssetService {
	return &MockAssetService{
		assets: make(map[int]*models.Asset),
		errs:   make(map[string]error),
	}
}

// SetError устанавливает ошибку для конкретного метода (list, get, updatePrice)
func (m *MockAssetService) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

// AddAsset добавляет актив напрямую
func (m *MockAssetService) AddAsset(asset *models.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
}

func (m *MockAssetService) List(assetType string) ([]*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["list"]; err != nil {
		return nil, err
	}

	result := make([]*models.Asset, 0)
	for _, asset := range m.assets {
		if assetType != "" && asset.AssetType != assetType {
			continue
		}
		result = append(result, asset)
	}
	return result, nil
}

func (m *MockAssetService) Get(id int) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["get"]; err != nil {
		return nil, err
	}
	asset, exists := m.assets[id]
	if !exists {
		return nil, repository.ErrAssetNotFound
	}
	return asset, nil
}

func (m *MockAssetService) UpdatePrice(id int, price float64) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errs["updatePrice"]; err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, service.ErrInvalidPrice
	}
	asset, exists := m.assets[id]
	if !exists {
		return nil, repository.ErrAssetNotFound
	}
	asset.UpdatePrice(price, time.Now())
	return asset, nil
}
