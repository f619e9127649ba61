package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

// Secret providers
const (
	SecretsProviderFile  = "file"
	SecretsProviderVault = "vault"
	SecretsProviderAWS   = "aws"
)

// Keys looked up in the secret store
const (
	SecretJWT                = "jwt_secret"
	SecretAuthPassword       = "auth_password"
	SecretTOTP               = "auth_totp_secret"
	SecretClickHousePassword = "clickhouse_password"
	SecretRedisPassword      = "redis_password"
	SecretOpenAIKey          = "openai_api_key"
	SecretTelegramToken      = "telegram_bot_token"
)

const (
	defaultVaultPath   = "secret/socdash"
	defaultAWSSecretID = "socdash/secrets"
)

// ErrSecretNotFound is returned when the store has no value for a key
var ErrSecretNotFound = errors.New("secret not found")

// SecretManager retrieves individual secrets from a backing store
type SecretManager interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// FileSecretManager reads one secret per file from a directory, the layout
// used by Docker and Kubernetes secret mounts
type FileSecretManager struct {
	dir string
}

func NewFileSecretManager(dir string) *FileSecretManager {
	return &FileSecretManager{dir: dir}
}

func (f *FileSecretManager) GetSecret(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, filepath.Base(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// VaultSecretManager retrieves secrets from HashiCorp Vault. The secret at
// the configured path is read once and served from memory afterwards.
type VaultSecretManager struct {
	client *api.Client
	path   string

	mu   sync.Mutex
	data map[string]interface{}
}

func NewVaultSecretManager(config *Config) (*VaultSecretManager, error) {
	client, err := api.NewClient(&api.Config{
		Address: config.Secrets.Vault.Address,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if config.Secrets.Vault.Token != "" {
		client.SetToken(config.Secrets.Vault.Token)
	} else if token := os.Getenv("VAULT_TOKEN"); token != "" {
		client.SetToken(token)
	}

	path := config.Secrets.Vault.Path
	if path == "" {
		path = defaultVaultPath
	}

	return &VaultSecretManager{client: client, path: path}, nil
}

func (v *VaultSecretManager) load(ctx context.Context) (map[string]interface{}, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.data != nil {
		return v.data, nil
	}

	secret, err := v.client.Logical().ReadWithContext(ctx, v.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path %s", v.path)
	}

	data := secret.Data
	// KV version 2 nests the values under data alongside metadata
	if inner, ok := data["data"].(map[string]interface{}); ok {
		if _, hasMeta := data["metadata"]; hasMeta {
			data = inner
		}
	}

	v.data = data
	return data, nil
}

func (v *VaultSecretManager) GetSecret(ctx context.Context, key string) (string, error) {
	data, err := v.load(ctx)
	if err != nil {
		return "", err
	}

	value, ok := data[key]
	if !ok {
		return "", ErrSecretNotFound
	}

	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key %s is not a string", key)
	}
	return strValue, nil
}

// AWSSecretManager retrieves secrets from a JSON document in AWS Secrets
// Manager. The document is fetched once.
type AWSSecretManager struct {
	client   *secretsmanager.SecretsManager
	secretID string

	mu      sync.Mutex
	secrets map[string]string
}

func NewAWSSecretManager(config *Config) (*AWSSecretManager, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Secrets.AWS.Region),
	}
	if config.Secrets.AWS.AccessKey != "" && config.Secrets.AWS.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.Secrets.AWS.AccessKey,
			config.Secrets.AWS.SecretKey,
			"",
		)
	}
	if config.Secrets.AWS.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Secrets.AWS.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	secretID := config.Secrets.AWS.SecretID
	if secretID == "" {
		secretID = defaultAWSSecretID
	}

	return &AWSSecretManager{
		client:   secretsmanager.New(sess),
		secretID: secretID,
	}, nil
}

func (a *AWSSecretManager) load(ctx context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.secrets != nil {
		return a.secrets, nil
	}

	result, err := a.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret from AWS: %w", err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("AWS secret %s has no string value", a.secretID)
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse AWS secret JSON: %w", err)
	}

	a.secrets = secrets
	return secrets, nil
}

func (a *AWSSecretManager) GetSecret(ctx context.Context, key string) (string, error) {
	secrets, err := a.load(ctx)
	if err != nil {
		return "", err
	}

	value, ok := secrets[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// NewSecretManager creates the secret manager named by secrets.provider
func NewSecretManager(config *Config) (SecretManager, error) {
	switch config.Secrets.Provider {
	case SecretsProviderFile:
		return NewFileSecretManager(config.Secrets.Dir), nil
	case SecretsProviderVault:
		return NewVaultSecretManager(config)
	case SecretsProviderAWS:
		return NewAWSSecretManager(config)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %q", config.Secrets.Provider)
	}
}

// LoadSecrets fills credentials that the config file and environment left
// empty from the configured secret store. Keys missing from the store are
// skipped; values already set are never overwritten.
func LoadSecrets(ctx context.Context, config *Config) error {
	if config.Secrets.Provider == "" {
		return nil
	}

	manager, err := NewSecretManager(config)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}

	return applySecrets(ctx, manager, config)
}

func applySecrets(ctx context.Context, manager SecretManager, config *Config) error {
	targets := []struct {
		key   string
		value *string
	}{
		{SecretJWT, &config.Auth.JWTSecret},
		{SecretAuthPassword, &config.Auth.Password},
		{SecretTOTP, &config.Auth.TOTPSecret},
		{SecretClickHousePassword, &config.ClickHouse.Password},
		{SecretRedisPassword, &config.Redis.Password},
		{SecretOpenAIKey, &config.OpenAI.APIKey},
		{SecretTelegramToken, &config.Telegram.BotToken},
	}

	for _, target := range targets {
		if *target.value != "" {
			continue
		}
		value, err := manager.GetSecret(ctx, target.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", target.key, err)
		}
		*target.value = value
	}

	return nil
}
