package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradedesk/internal/api/handlers"
	"tradedesk/internal/api/middleware"
	"tradedesk/internal/service"
	"tradedesk/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	ConnectionService service.ConnectionServiceInterface
	WebSocketHub      *websocket.Hub

	// APIToken защищает API статическим токеном; пустая строка
	// отключает auth (локальная разработка)
	APIToken string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /exchanges/
//	│   └── GET /templates - поддерживаемые комбинации провайдер/семейство
//	└── /connections/
//	    ├── GET / - список подключений
//	    ├── POST / - подключить биржу
//	    ├── POST /test - пробное подключение без сохранения
//	    ├── GET /{id} - одно подключение
//	    ├── DELETE /{id} - удалить подключение
//	    ├── POST /{id}/disconnect - отключить (ключи сохраняются)
//	    ├── POST /{id}/rotate - ротация ключей
//	    ├── GET /{id}/balances - балансы
//	    ├── GET /{id}/ticker - цена инструмента
//	    ├── POST /{id}/orders - разместить ордер
//	    ├── GET /{id}/orders/{orderId} - статус ордера
//	    └── DELETE /{id}/orders/{orderId} - отменить ордер
//
// /ws - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /debug/pprof - профилирование (за basic auth)
// /health - health check
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. APITokenAuth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	var connectionHandler *handlers.ConnectionHandler
	if deps != nil && deps.ConnectionService != nil {
		connectionHandler = handlers.NewConnectionHandler(deps.ConnectionService)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	if deps != nil {
		api.Use(middleware.APITokenAuth(deps.APIToken))
	}

	if connectionHandler != nil {
		api.HandleFunc("/exchanges/templates", connectionHandler.GetTemplates).Methods("GET")

		api.HandleFunc("/connections", connectionHandler.GetConnections).Methods("GET")
		api.HandleFunc("/connections", connectionHandler.CreateConnection).Methods("POST")
		api.HandleFunc("/connections/test", connectionHandler.TestConnection).Methods("POST")
		api.HandleFunc("/connections/{id}", connectionHandler.GetConnection).Methods("GET")
		api.HandleFunc("/connections/{id}", connectionHandler.DeleteConnection).Methods("DELETE")
		api.HandleFunc("/connections/{id}/disconnect", connectionHandler.DisconnectConnection).Methods("POST")
		api.HandleFunc("/connections/{id}/rotate", connectionHandler.RotateCredentials).Methods("POST")
		api.HandleFunc("/connections/{id}/balances", connectionHandler.GetBalances).Methods("GET")
		api.HandleFunc("/connections/{id}/ticker", connectionHandler.GetTicker).Methods("GET")
		api.HandleFunc("/connections/{id}/orders", connectionHandler.CreateOrder).Methods("POST")
		api.HandleFunc("/connections/{id}/orders/{orderId}", connectionHandler.GetOrderStatus).Methods("GET")
		api.HandleFunc("/connections/{id}/orders/{orderId}", connectionHandler.CancelOrder).Methods("DELETE")
	}

	// WebSocket route
	if deps != nil && deps.WebSocketHub != nil {
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.WebSocketHub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// pprof под basic auth (DEBUG_USERNAME / DEBUG_PASSWORD)
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").Handler(http.HandlerFunc(pprof.Index))

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
