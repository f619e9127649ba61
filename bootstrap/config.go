package bootstrap

import (
	"context"
	"fmt"
	"os"

	"socdash/config"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the zap logger with colored console output.
// Logs go to stderr so CLI commands can keep stdout for their results.
func InitLogger(level zapcore.Level) (*zap.Logger, *zap.SugaredLogger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the application configuration. configFile overrides the
// default search path when set.
func InitConfig(ctx context.Context, configFile string, sugar *zap.SugaredLogger) (*config.Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		sugar.Info("No config file found, using defaults and env vars")
	}

	masked := cfg.Masked()
	sugar.Infow("Config loaded",
		"clickhouse_addr", masked.ClickHouse.Addr,
		"alerts_table", masked.ClickHouse.AlertsTable,
		"history_backend", masked.History.Backend,
		"openai_enabled", masked.OpenAI.Enabled,
		"openai_model", masked.OpenAI.Model,
		"telegram_configured", masked.Telegram.BotToken != "",
		"auth_enabled", masked.Auth.Enabled,
		"secrets_provider", masked.Secrets.Provider,
		"port", masked.API.Port)

	return cfg, nil
}
