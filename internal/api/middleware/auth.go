package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"binaryoptions/pkg/token"

	"github.com/gorilla/mux"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
)

// ContextWithUser кладет данные аутентифицированного пользователя в context.
// Используется в Auth middleware и в тестах handlers.
func ContextWithUser(ctx context.Context, userID int, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

// UserIDFromContext возвращает ID аутентифицированного пользователя.
// ok == false означает, что запрос прошел мимо Auth middleware.
func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok
}

// EmailFromContext возвращает email аутентифицированного пользователя.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

// Auth проверяет access токен из заголовка Authorization: Bearer <token>
// и кладет user_id из claims в context запроса.
// Без валидного токена запрос до handler не доходит.
func Auth(tokens *token.Manager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing Authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "Authorization header must be: Bearer <token>")
				return
			}

			claims, err := tokens.VerifyAccess(parts[1])
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := ContextWithUser(r.Context(), claims.UserID, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `","code":"unauthorized"}`))
}

// ClientIP извлекает IP клиента с учетом reverse proxy.
// Берется первый адрес из X-Forwarded-For, иначе RemoteAddr без порта.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
