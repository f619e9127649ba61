// Package api serves the SOC dashboard HTTP API: the chatbot and its tools,
// alert browsing, the Telegram relay, login, health and metrics.
//
//	@title			socdash API
//	@version		1.0
//	@description	SOC dashboard backend: chatbot, alert queries and Telegram relay
//
// @license.name	MIT
// @license.url	https://opensource.org/licenses/MIT
//
// @BasePath	/
// @securityDefinitions.apikey	ApiKeyAuth
// @in							header
// @name						Authorization
// @description				Bearer token from /api/auth/login
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"socdash/chatbot"
	"socdash/config"
	"socdash/core"
	_ "socdash/docs"
	"socdash/mcp"
	"socdash/notify"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// ChatService answers chatbot messages and manages transcripts
type ChatService interface {
	Chat(ctx context.Context, req chatbot.ChatRequest) (*chatbot.ChatResponse, error)
	Help(topic string) (string, string)
	HelpTopics() []string
	History(ctx context.Context, sessionID string) ([]core.ChatTurn, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

// ToolService lists and runs the MCP tools
type ToolService interface {
	Tools() []mcp.Tool
	Execute(ctx context.Context, name string, args map[string]interface{}) (*mcp.ToolResult, error)
}

// AlertReader is the alert storage used by the dashboard endpoints
type AlertReader interface {
	GetAlerts(ctx context.Context, filter core.AlertFilter) ([]core.Alert, error)
	GetAlertCount(ctx context.Context, filter core.AlertFilter) (int64, error)
	GetAlertByID(ctx context.Context, alertID string) (*core.Alert, error)
	GetRecentAlerts(ctx context.Context, limit int, severity string) ([]core.Alert, error)
	GetAlertStatistics(ctx context.Context, since time.Time) (*core.AlertStats, error)
	GetTopAttackers(ctx context.Context, since time.Time, limit int) ([]core.Attacker, error)
}

// AlertNotifier relays alert groups to a chat
type AlertNotifier interface {
	SendAlert(ctx context.Context, n notify.AlertNotification) (*notify.SendResult, error)
}

// HealthCheckFunc reports whether a dependency is reachable
type HealthCheckFunc func(ctx context.Context) error

// Dependencies wires the API to the rest of the application. Redis is
// optional and only used to share rate limits between replicas.
type Dependencies struct {
	Chat     ChatService
	Tools    ToolService
	Alerts   AlertReader
	Notifier AlertNotifier
	Redis    *redis.Client
	Health   map[string]HealthCheckFunc
}

// API holds the API server
type API struct {
	router      *mux.Router
	server      *http.Server
	chat        ChatService
	tools       ToolService
	alerts      AlertReader
	notifier    AlertNotifier
	health      map[string]HealthCheckFunc
	config      *config.Config
	logger      *zap.SugaredLogger
	validate    *validator.Validate
	rateLimiter *RateLimiter
	loginLimit  *RateLimiter
	totp        totpGuard
	pongWait    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewAPI creates a new API server
func NewAPI(deps Dependencies, cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		router:   mux.NewRouter(),
		chat:     deps.Chat,
		tools:    deps.Tools,
		alerts:   deps.Alerts,
		notifier: deps.Notifier,
		health:   deps.Health,
		config:   cfg,
		logger:   logger,
		validate: newValidator(),
		pongWait: pongWait,
		stopCh:   make(chan struct{}),
	}

	var rdb *redis.Client
	if cfg.API.RateLimit.Redis {
		rdb = deps.Redis
	}
	a.rateLimiter = NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: float64(cfg.API.RateLimit.RequestsPerSecond),
		Burst:             cfg.API.RateLimit.Burst,
	}, rdb, logger)

	// 5 login attempts per minute per IP
	a.loginLimit = NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 5.0 / 60, Burst: 5}, nil, logger)

	a.setupRoutes()
	return a
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.requestIDMiddleware)
	a.router.Use(a.errorRecoveryMiddleware)
	a.router.Use(a.securityHeadersMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	// preflight requests are answered by corsMiddleware for every path
	a.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	a.router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler).Methods("GET")
	// legacy relay path used by existing alert forwarders
	a.router.Handle("/alert", a.jwtAuthMiddleware(a.requireRole("analyst")(http.HandlerFunc(a.sendTelegramAlert)))).Methods("POST")

	api := a.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", a.login).Methods("POST")

	protected := api.NewRoute().Subrouter()
	protected.Use(a.jwtAuthMiddleware)

	protected.HandleFunc("/chatbot", a.chatHandler).Methods("POST")
	protected.HandleFunc("/chatbot/ws", a.chatWebSocket).Methods("GET")
	protected.HandleFunc("/chatbot/help", a.helpHandler).Methods("GET")
	protected.HandleFunc("/chatbot/help/{topic}", a.helpHandler).Methods("GET")
	protected.HandleFunc("/chatbot/history/{sessionId}", a.getHistory).Methods("GET")
	protected.Handle("/chatbot/history/{sessionId}", a.requireRole("analyst")(http.HandlerFunc(a.clearHistory))).Methods("DELETE")
	protected.HandleFunc("/chatbot/tools", a.listTools).Methods("GET")
	protected.Handle("/chatbot/tools/{name}", a.requireRole("analyst")(http.HandlerFunc(a.executeTool))).Methods("POST")

	protected.Handle("/telegram/alert", a.requireRole("analyst")(http.HandlerFunc(a.sendTelegramAlert))).Methods("POST")

	protected.HandleFunc("/alerts", a.getAlerts).Methods("GET")
	protected.HandleFunc("/alerts/stats", a.getAlertStats).Methods("GET")
	protected.HandleFunc("/alerts/{id}", a.getAlert).Methods("GET")
	protected.HandleFunc("/reports/summary", a.getSummaryReport).Methods("GET")
}

// Handler returns the root HTTP handler
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) newServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

// Start starts the API server
func (a *API) Start(addr string) error {
	a.server = a.newServer(addr)
	return a.server.ListenAndServe()
}

// StartTLS starts the API server with TLS
func (a *API) StartTLS(addr, certFile, keyFile string) error {
	a.server = a.newServer(addr)
	return a.server.ListenAndServeTLS(certFile, keyFile)
}

// Addr returns the listen address for the configured port
func (a *API) Addr() string {
	return fmt.Sprintf(":%d", a.config.API.Port)
}

// Stop closes open websocket sessions and shuts the server down. It is
// safe to call more than once.
func (a *API) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		a.rateLimiter.Close()
		a.loginLimit.Close()
	})
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}
