package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация входных данных API
//
// Возвращает error с описанием проблемы или nil

// Ошибки валидации
var (
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail проверяет формат email
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 || !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooWeak
	}
	return nil
}

// ValidateAmountRange проверяет, что сумма лежит в [min, max]
func ValidateAmountRange(amount, min, max float64) error {
	if amount < min || amount > max {
		return fmt.Errorf("amount must be between %.2f and %.2f", min, max)
	}
	return nil
}

// NormalizeEmail приводит email к каноничному виду для поиска в базе
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
