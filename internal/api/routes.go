package api

import (
	"database/sql"
	"net/http"

	"binaryoptions/internal/api/handlers"
	"binaryoptions/internal/api/middleware"
	"binaryoptions/internal/service"
	"binaryoptions/internal/websocket"
	"binaryoptions/pkg/ratelimit"
	"binaryoptions/pkg/token"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	UserService  *service.UserService
	TradeService *service.TradeService
	AssetService *service.AssetService
	Hub          *websocket.Hub
	Tokens       *token.Manager
	LoginLimiter *ratelimit.KeyedLimiter
	CORSOrigins  []string
	Logger       *zap.Logger
	DB           *sql.DB
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /auth/
//	│   ├── POST /register - регистрация (rate limit по IP)
//	│   ├── POST /login    - вход (rate limit по IP)
//	│   ├── POST /refresh  - обновление токенов
//	│   └── POST /logout   - отзыв refresh токена (JWT)
//	├── /assets/
//	│   ├── GET /                 - каталог активов
//	│   ├── GET /{id}             - конкретный актив
//	│   └── PATCH /{id}/price     - ручная корректировка цены (JWT)
//	├── /trades/ (JWT)
//	│   ├── POST /            - открыть сделку
//	│   ├── GET /             - история сделок
//	│   ├── GET /stats        - статистика
//	│   ├── GET /{id}         - конкретная сделка
//	│   └── POST /{id}/close  - досрочное закрытие
//	└── /users/me/ (JWT)
//	    ├── GET /              - профиль
//	    ├── POST /deposit      - пополнение
//	    └── GET /transactions  - история движений
//
// /ws       - WebSocket для real-time обновлений (JWT через query param или заголовок)
// /health   - проверка живости (включая ping БД)
// /metrics  - Prometheus метрики
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. Auth (только для защищенных маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS(deps.CORSOrigins))

	authHandler := handlers.NewAuthHandler(deps.UserService)
	tradeHandler := handlers.NewTradeHandler(deps.TradeService)
	assetHandler := handlers.NewAssetHandler(deps.AssetService)
	userHandler := handlers.NewUserHandler(deps.UserService)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Auth routes: login и register за rate limiter, refresh без него
	auth := api.PathPrefix("/auth").Subrouter()
	if deps.LoginLimiter != nil {
		limited := auth.NewRoute().Subrouter()
		limited.Use(middleware.LoginRateLimit(deps.LoginLimiter))
		limited.HandleFunc("/register", authHandler.Register).Methods("POST")
		limited.HandleFunc("/login", authHandler.Login).Methods("POST")
	} else {
		auth.HandleFunc("/register", authHandler.Register).Methods("POST")
		auth.HandleFunc("/login", authHandler.Login).Methods("POST")
	}
	auth.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")

	logout := auth.NewRoute().Subrouter()
	logout.Use(middleware.Auth(deps.Tokens))
	logout.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	// Asset routes: публичный каталог, auth не требуется
	api.HandleFunc("/assets", assetHandler.GetAssets).Methods("GET")
	api.HandleFunc("/assets/{id}", assetHandler.GetAsset).Methods("GET")

	// Защищенные маршруты
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Auth(deps.Tokens))

	protected.HandleFunc("/trades", tradeHandler.OpenTrade).Methods("POST")
	protected.HandleFunc("/trades", tradeHandler.GetTrades).Methods("GET")
	protected.HandleFunc("/trades/stats", tradeHandler.GetStats).Methods("GET")
	protected.HandleFunc("/trades/{id}", tradeHandler.GetTrade).Methods("GET")
	protected.HandleFunc("/trades/{id}/close", tradeHandler.CloseTrade).Methods("POST")

	protected.HandleFunc("/assets/{id}/price", assetHandler.UpdatePrice).Methods("PATCH")

	protected.HandleFunc("/users/me", userHandler.Profile).Methods("GET")
	protected.HandleFunc("/users/me/deposit", userHandler.Deposit).Methods("POST")
	protected.HandleFunc("/users/me/transactions", userHandler.Transactions).Methods("GET")

	// WebSocket: браузер не умеет ставить заголовки на upgrade,
	// поэтому токен принимаем и через query param
	router.HandleFunc("/ws", serveWebsocket(deps.Hub, deps.Tokens)).Methods("GET")

	router.HandleFunc("/health", healthHandler(deps.DB)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

func serveWebsocket(hub *websocket.Hub, tokens *token.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("token")
		if raw == "" {
			header := r.Header.Get("Authorization")
			if len(header) > 7 && header[:7] == "Bearer " {
				raw = header[7:]
			}
		}
		if raw == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.VerifyAccess(raw)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		websocket.ServeWS(hub, claims.UserID, w, r)
	}
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
