package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// History backends
const (
	HistoryBackendMemory = "memory"
	HistoryBackendRedis  = "redis"
	HistoryBackendSQLite = "sqlite"
)

// identifierRegex restricts database and table names that end up in SQL text
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config holds all configuration for the socdash service
type Config struct {
	API struct {
		Port                 int      `mapstructure:"port"`
		TLS                  bool     `mapstructure:"tls"`
		CertFile             string   `mapstructure:"cert_file"`
		KeyFile              string   `mapstructure:"key_file"`
		AllowedOrigins       []string `mapstructure:"allowed_origins"`
		TrustProxy           bool     `mapstructure:"trust_proxy"`
		TrustedProxyNetworks []string `mapstructure:"trusted_proxy_networks"`
		BodyLimit            int64    `mapstructure:"body_limit"` // bytes
		RateLimit            struct {
			RequestsPerSecond int  `mapstructure:"requests_per_second"`
			Burst             int  `mapstructure:"burst"`
			Redis             bool `mapstructure:"redis"` // share limits across replicas
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Auth struct {
		Enabled        bool   `mapstructure:"enabled"`
		Username       string `mapstructure:"username"`
		Password       string `mapstructure:"password"`
		HashedPassword string
		BcryptCost     int           `mapstructure:"bcrypt_cost"`
		JWTSecret      string        `mapstructure:"jwt_secret"`
		JWTExpiry      time.Duration `mapstructure:"jwt_expiry"`
		Roles          []string      `mapstructure:"roles"`
		TOTPSecret     string        `mapstructure:"totp_secret"` // base32; enables a second factor on login
	} `mapstructure:"auth"`

	ClickHouse struct {
		Addr         string        `mapstructure:"addr"`
		Database     string        `mapstructure:"database"`
		Username     string        `mapstructure:"username"`
		Password     string        `mapstructure:"password"`
		TLS          bool          `mapstructure:"tls"`
		MaxPoolSize  int           `mapstructure:"max_pool_size"`
		AlertsTable  string        `mapstructure:"alerts_table"`
		QueryTimeout time.Duration `mapstructure:"query_timeout"`
		CreateTables bool          `mapstructure:"create_tables"`
	} `mapstructure:"clickhouse"`

	History struct {
		Backend      string        `mapstructure:"backend"` // memory, redis, sqlite
		SQLitePath   string        `mapstructure:"sqlite_path"`
		MaxTurns     int           `mapstructure:"max_turns"`
		MaxSessions  int           `mapstructure:"max_sessions"`
		TTL          time.Duration `mapstructure:"ttl"`
		ContextTurns int           `mapstructure:"context_turns"` // turns replayed to the LLM
	} `mapstructure:"history"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	OpenAI struct {
		Enabled     bool          `mapstructure:"enabled"`
		APIKey      string        `mapstructure:"api_key"`
		Model       string        `mapstructure:"model"`
		BaseURL     string        `mapstructure:"base_url"`
		MaxTokens   int           `mapstructure:"max_tokens"`
		Temperature float32       `mapstructure:"temperature"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"openai"`

	Telegram struct {
		BotToken  string        `mapstructure:"bot_token"`
		APIURL    string        `mapstructure:"api_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		MaxTitles int           `mapstructure:"max_titles"`
	} `mapstructure:"telegram"`

	Chatbot struct {
		MaxMessageLength int `mapstructure:"max_message_length"`
	} `mapstructure:"chatbot"`

	Secrets struct {
		Provider string `mapstructure:"provider"` // file, vault, aws; empty disables
		Dir      string `mapstructure:"dir"`
		Vault    struct {
			Address string `mapstructure:"address"`
			Token   string `mapstructure:"token"`
			Path    string `mapstructure:"path"`
		} `mapstructure:"vault"`
		AWS struct {
			Region    string `mapstructure:"region"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
			SecretID  string `mapstructure:"secret_id"`
			Endpoint  string `mapstructure:"endpoint"`
		} `mapstructure:"aws"`
	} `mapstructure:"secrets"`
}

func setDefaults() {
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.tls", false)
	viper.SetDefault("api.cert_file", "server.crt")
	viper.SetDefault("api.key_file", "server.key")
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.trust_proxy", false)
	viper.SetDefault("api.trusted_proxy_networks", []string{})
	viper.SetDefault("api.body_limit", 1<<20)
	viper.SetDefault("api.rate_limit.requests_per_second", 10)
	viper.SetDefault("api.rate_limit.burst", 20)
	viper.SetDefault("api.rate_limit.redis", false)

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.username", "admin")
	viper.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)
	viper.SetDefault("auth.roles", []string{"analyst"})

	viper.SetDefault("clickhouse.addr", "localhost:9000")
	viper.SetDefault("clickhouse.database", "default")
	viper.SetDefault("clickhouse.username", "default")
	viper.SetDefault("clickhouse.password", "")
	viper.SetDefault("clickhouse.tls", false)
	viper.SetDefault("clickhouse.max_pool_size", 10)
	viper.SetDefault("clickhouse.alerts_table", "alerts")
	viper.SetDefault("clickhouse.query_timeout", 30*time.Second)
	viper.SetDefault("clickhouse.create_tables", false)

	viper.SetDefault("history.backend", HistoryBackendMemory)
	viper.SetDefault("history.max_turns", 50)
	viper.SetDefault("history.max_sessions", 10000)
	viper.SetDefault("history.ttl", 24*time.Hour)
	viper.SetDefault("history.sqlite_path", "data/history.db")
	viper.SetDefault("history.context_turns", 10)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("openai.model", "gpt-3.5-turbo")
	viper.SetDefault("openai.max_tokens", 500)
	viper.SetDefault("openai.temperature", 0.7)
	viper.SetDefault("openai.timeout", 30*time.Second)

	viper.SetDefault("telegram.api_url", "https://api.telegram.org")
	viper.SetDefault("telegram.timeout", 10*time.Second)
	viper.SetDefault("telegram.max_titles", 20)

	viper.SetDefault("chatbot.max_message_length", 4000)

	viper.SetDefault("secrets.provider", "")
	viper.SetDefault("secrets.dir", "/run/secrets")
	viper.SetDefault("secrets.vault.path", defaultVaultPath)
	viper.SetDefault("secrets.aws.secret_id", defaultAWSSecretID)
}

func loadFromEnv() {
	viper.SetEnvPrefix("SOCDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// openai.enabled has no default so an API key alone can switch it on
	_ = viper.BindEnv("openai.enabled", "SOCDASH_OPENAI_ENABLED")

	// Short names for the secrets operators set most often
	_ = viper.BindEnv("openai.api_key", "SOCDASH_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("telegram.bot_token", "SOCDASH_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = viper.BindEnv("clickhouse.password", "SOCDASH_CLICKHOUSE_PASSWORD", "CLICKHOUSE_PASSWORD")
}

// LoadConfig loads configuration from file and environment variables, then
// fills missing credentials from the secret store when one is configured
func LoadConfig(ctx context.Context) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// no config file: defaults and env vars only
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validateSecrets(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := LoadSecrets(ctx, &config); err != nil {
		return nil, err
	}

	if config.OpenAI.APIKey != "" && !viper.IsSet("openai.enabled") {
		config.OpenAI.Enabled = true
	}

	if err := validateAndHash(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateAndHash(config *Config) error {
	if config.Auth.Enabled {
		if len(config.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT secret must be at least 32 characters (256 bits) for security")
		}

		weakSecrets := []string{
			"secret", "password", "changeme", "default", "admin",
			"jwt_secret", "supersecret", "mysecret", "test", "example",
		}
		lowerSecret := strings.ToLower(config.Auth.JWTSecret)
		for _, weak := range weakSecrets {
			if strings.Contains(lowerSecret, weak) {
				return fmt.Errorf("JWT secret appears to contain weak/default value: please use a cryptographically secure random string")
			}
		}

		if config.Auth.Password == "" && config.Auth.HashedPassword == "" {
			return fmt.Errorf("auth is enabled but no password is configured")
		}

		if config.Auth.TOTPSecret != "" {
			if _, err := totp.GenerateCode(config.Auth.TOTPSecret, time.Now()); err != nil {
				return fmt.Errorf("invalid auth totp_secret: %w", err)
			}
		}
	}

	if config.Auth.Password != "" {
		cost := config.Auth.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(config.Auth.Password), cost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		config.Auth.HashedPassword = string(hashed)
		config.Auth.Password = "" // clear plain password
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// Validate checks the loaded values for consistency
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", c.API.Port)
	}
	if c.API.TLS && (c.API.CertFile == "" || c.API.KeyFile == "") {
		return fmt.Errorf("API TLS enabled but cert_file or key_file is empty")
	}
	for _, network := range c.API.TrustedProxyNetworks {
		if !isValidIPOrCIDR(network) {
			return fmt.Errorf("invalid trusted proxy network: %q", network)
		}
	}
	if c.API.RateLimit.RequestsPerSecond < 0 || c.API.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values cannot be negative")
	}

	if c.ClickHouse.Addr == "" {
		return fmt.Errorf("ClickHouse address cannot be empty")
	}
	if !identifierRegex.MatchString(c.ClickHouse.Database) {
		return fmt.Errorf("invalid ClickHouse database name: %q (only alphanumeric and underscore allowed)", c.ClickHouse.Database)
	}
	if !identifierRegex.MatchString(c.ClickHouse.AlertsTable) {
		return fmt.Errorf("invalid ClickHouse alerts table: %q (only alphanumeric and underscore allowed)", c.ClickHouse.AlertsTable)
	}

	switch c.History.Backend {
	case HistoryBackendMemory, HistoryBackendRedis:
	case HistoryBackendSQLite:
		if c.History.SQLitePath == "" {
			return fmt.Errorf("sqlite history backend requires history.sqlite_path")
		}
	default:
		return fmt.Errorf("invalid history backend: %q (must be memory, redis or sqlite)", c.History.Backend)
	}
	if c.History.MaxTurns < 1 {
		return fmt.Errorf("history max_turns must be positive")
	}
	if c.History.Backend == HistoryBackendMemory && c.History.MaxSessions < 1 {
		return fmt.Errorf("history max_sessions must be positive")
	}
	if c.History.ContextTurns < 0 {
		return fmt.Errorf("history context_turns cannot be negative")
	}

	if (c.History.Backend == HistoryBackendRedis || c.API.RateLimit.Redis) && c.Redis.Addr == "" {
		return fmt.Errorf("redis address required for redis history or shared rate limiting")
	}

	if c.OpenAI.Enabled {
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OpenAI enabled but api_key is empty")
		}
		if c.OpenAI.BaseURL != "" {
			if _, err := url.ParseRequestURI(c.OpenAI.BaseURL); err != nil {
				return fmt.Errorf("invalid OpenAI base_url: %w", err)
			}
		}
		if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
			return fmt.Errorf("invalid OpenAI temperature: %v (must be 0-2)", c.OpenAI.Temperature)
		}
	}

	if c.Telegram.APIURL != "" {
		parsed, err := url.Parse(c.Telegram.APIURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid Telegram api_url: %q", c.Telegram.APIURL)
		}
	}

	if c.Chatbot.MaxMessageLength < 1 {
		return fmt.Errorf("chatbot max_message_length must be positive")
	}

	return c.validateSecrets()
}

func (c *Config) validateSecrets() error {
	switch c.Secrets.Provider {
	case "":
	case SecretsProviderFile:
		if c.Secrets.Dir == "" {
			return fmt.Errorf("secrets provider file requires secrets.dir")
		}
	case SecretsProviderVault:
		if c.Secrets.Vault.Address == "" {
			return fmt.Errorf("secrets provider vault requires secrets.vault.address")
		}
	case SecretsProviderAWS:
		if c.Secrets.AWS.Region == "" {
			return fmt.Errorf("secrets provider aws requires secrets.aws.region")
		}
	default:
		return fmt.Errorf("invalid secrets provider: %q (must be file, vault or aws)", c.Secrets.Provider)
	}
	return nil
}

// Masked returns a copy safe to log, with credentials replaced
func (c *Config) Masked() Config {
	masked := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	masked.Auth.Password = mask(c.Auth.Password)
	masked.Auth.HashedPassword = mask(c.Auth.HashedPassword)
	masked.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	masked.Auth.TOTPSecret = mask(c.Auth.TOTPSecret)
	masked.ClickHouse.Password = mask(c.ClickHouse.Password)
	masked.Redis.Password = mask(c.Redis.Password)
	masked.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	masked.Telegram.BotToken = mask(c.Telegram.BotToken)
	masked.Secrets.Vault.Token = mask(c.Secrets.Vault.Token)
	masked.Secrets.AWS.SecretKey = mask(c.Secrets.AWS.SecretKey)
	return masked
}

func isValidIPOrCIDR(ipStr string) bool {
	if net.ParseIP(ipStr) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(ipStr)
	return err == nil
}
