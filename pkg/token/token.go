package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ошибки проверки токенов
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongPurpose = errors.New("token used for wrong purpose")
)

// Назначения токенов. Access и refresh подписываются одним ключом,
// поэтому различаются полем purpose в claims - refresh нельзя
// предъявить как access.
const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

// Claims - полезная нагрузка JWT
type Claims struct {
	UserID  int    `json:"user_id"`
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager выпускает и проверяет подписанные JWT (HMAC-SHA256)
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager создает менеджер токенов
func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// NewAccessToken выпускает короткоживущий access-токен
func (m *Manager) NewAccessToken(userID int, email string) (string, error) {
	return m.issue(userID, email, PurposeAccess, m.accessTTL)
}

// NewRefreshToken выпускает refresh-токен для продления сессии
func (m *Manager) NewRefreshToken(userID int, email string) (string, error) {
	return m.issue(userID, email, PurposeRefresh, m.refreshTTL)
}

func (m *Manager) issue(userID int, email, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  userID,
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccess проверяет access-токен и возвращает claims
func (m *Manager) VerifyAccess(tokenString string) (*Claims, error) {
	return m.verify(tokenString, PurposeAccess)
}

// VerifyRefresh проверяет refresh-токен и возвращает claims
func (m *Manager) VerifyRefresh(tokenString string) (*Claims, error) {
	return m.verify(tokenString, PurposeRefresh)
}

func (m *Manager) verify(tokenString, purpose string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// Фиксируем алгоритм: не принимаем ни none, ни RS*
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}

	return claims, nil
}
