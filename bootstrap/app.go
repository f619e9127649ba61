package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"socdash/api"
	"socdash/chatbot"
	"socdash/config"
	"socdash/core"
	"socdash/llm"
	"socdash/mcp"
	"socdash/notify"
	"socdash/util/goroutine"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 30 * time.Second

// Options tunes NewApp for the command being run
type Options struct {
	ConfigFile string
	LogLevel   zapcore.Level
}

// App represents the socdash application with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	Storage *StorageComponents

	// Services
	Tools     *mcp.Service
	LLM       *llm.OpenAIClient // nil when OpenAI is disabled
	Chatbot   *chatbot.Service
	Notifier  *notify.TelegramNotifier
	APIServer *api.API

	// Lifecycle
	serviceWg    *sync.WaitGroup
	serverErrCh  chan error
	shutdownOnce sync.Once
}

// NewApp loads configuration, connects storage and builds every service.
// Nothing listens until Start is called.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	app := &App{
		serviceWg:   &sync.WaitGroup{},
		serverErrCh: make(chan error, 1),
	}

	logger, sugar, err := InitLogger(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	cfg, err := InitConfig(ctx, opts.ConfigFile, sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	storageComponents, err := InitStorage(ctx, cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Storage = storageComponents

	if err := app.initServices(); err != nil {
		storageComponents.Close(sugar)
		return nil, err
	}

	return app, nil
}

func (a *App) initServices() error {
	tools, err := mcp.NewService(a.Storage.AlertStorage, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize MCP tools: %w", err)
	}
	a.Tools = tools

	// a nil *OpenAIClient must not reach the chatbot as a non-nil Completer
	var completer chatbot.Completer
	if a.Config.OpenAI.Enabled {
		client, err := llm.NewOpenAIClient(a.Config, a.Sugar)
		switch {
		case errors.Is(err, core.ErrNotConfigured):
			a.Sugar.Warn("OpenAI is enabled but no API key is set, chatbot will answer with tools and help only")
		case err != nil:
			return fmt.Errorf("failed to initialize OpenAI client: %w", err)
		default:
			a.LLM = client
			completer = client
			a.Sugar.Infow("OpenAI enabled", "model", client.Model())
		}
	} else {
		a.Sugar.Info("OpenAI disabled, chatbot will answer with tools and help only")
	}

	a.Chatbot = chatbot.NewService(tools, a.Storage.History, completer, chatbot.Options{
		MaxMessageLength: a.Config.Chatbot.MaxMessageLength,
		ContextTurns:     a.Config.History.ContextTurns,
	}, a.Sugar)

	a.Notifier, err = notify.NewTelegramNotifier(a.Config, a.Sugar)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram notifier: %w", err)
	}
	if !a.Notifier.Configured() {
		a.Sugar.Warn("Telegram bot token not set, alert relay will return 503")
	}

	a.APIServer = api.NewAPI(api.Dependencies{
		Chat:     a.Chatbot,
		Tools:    a.Tools,
		Alerts:   a.Storage.AlertStorage,
		Notifier: a.Notifier,
		Redis:    a.Storage.Redis,
		Health: map[string]api.HealthCheckFunc{
			"clickhouse": a.Storage.ClickHouse.HealthCheck,
			"history":    a.Storage.History.Ping,
		},
	}, a.Config, a.Sugar)

	return nil
}

// Start starts the HTTP server in the background. A listen failure is
// reported by WaitForShutdown.
func (a *App) Start(ctx context.Context) error {
	if a.APIServer == nil {
		return errors.New("API server is not initialized")
	}

	addr := a.APIServer.Addr()
	a.serviceWg.Add(1)
	goroutine.Go("api-server", a.Sugar, func() {
		defer a.serviceWg.Done()

		var err error
		if a.Config.API.TLS {
			a.Sugar.Infow("Starting API server with TLS", "addr", addr)
			err = a.APIServer.StartTLS(addr, a.Config.API.CertFile, a.Config.API.KeyFile)
		} else {
			a.Sugar.Infow("Starting API server", "addr", addr)
			err = a.APIServer.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorw("API server failed", "error", err)
			a.serverErrCh <- err
		}
	})

	return nil
}

// WaitForShutdown blocks until a shutdown signal is received, the context
// is cancelled or the server fails. It returns the server error, if any.
func (a *App) WaitForShutdown(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		a.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	case err := <-a.serverErrCh:
		return err
	}
}

// Shutdown gracefully shuts down all components. It is safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.Sugar.Info("Shutting down...")

		// Phase 1 - Stop accepting requests and close websocket sessions
		if a.APIServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.APIServer.Stop(ctx); err != nil {
				a.Sugar.Errorw("API server shutdown failed", "error", err)
			}
			cancel()
		}
		a.serviceWg.Wait()

		// Phase 2 - Close storage connections
		if a.Storage != nil {
			a.Storage.Close(a.Sugar)
		}

		a.Sugar.Info("Shutdown complete")
		_ = a.Logger.Sync()
	})
}
