package config

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSecretManager map[string]string

func (m mapSecretManager) GetSecret(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

type failingSecretManager struct{}

func (failingSecretManager) GetSecret(context.Context, string) (string, error) {
	return "", errors.New("store unavailable")
}

func TestApplySecrets_FillsOnlyEmptyValues(t *testing.T) {
	cfg := newTestConfig()
	cfg.ClickHouse.Password = "from-config"

	store := mapSecretManager{
		SecretJWT:                "vault-jwt-value",
		SecretClickHousePassword: "from-store",
		SecretOpenAIKey:          "sk-store",
	}

	require.NoError(t, applySecrets(context.Background(), store, cfg))

	assert.Equal(t, "vault-jwt-value", cfg.Auth.JWTSecret)
	assert.Equal(t, "from-config", cfg.ClickHouse.Password)
	assert.Equal(t, "sk-store", cfg.OpenAI.APIKey)
	assert.Empty(t, cfg.Telegram.BotToken, "missing keys are skipped")
}

func TestApplySecrets_StoreError(t *testing.T) {
	cfg := newTestConfig()

	err := applySecrets(context.Background(), failingSecretManager{}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load jwt_secret")
}

func TestLoadSecrets_NoProvider(t *testing.T) {
	cfg := newTestConfig()
	require.NoError(t, LoadSecrets(context.Background(), cfg))
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestNewSecretManager_Unsupported(t *testing.T) {
	cfg := newTestConfig()
	cfg.Secrets.Provider = "gcp"

	_, err := NewSecretManager(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported secret provider")
}

func TestFileSecretManager(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SecretTelegramToken), []byte("123:abc\n"), 0o600))

	m := NewFileSecretManager(dir)

	v, err := m.GetSecret(context.Background(), SecretTelegramToken)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", v)

	_, err = m.GetSecret(context.Background(), SecretOpenAIKey)
	assert.ErrorIs(t, err, ErrSecretNotFound)

	// keys cannot escape the directory
	_, err = m.GetSecret(context.Background(), "../"+SecretTelegramToken)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestVaultSecretManager(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "kv v1",
			body: map[string]interface{}{
				"data": map[string]interface{}{"openai_api_key": "sk-vault", "redis_password": 42},
			},
		},
		{
			name: "kv v2",
			body: map[string]interface{}{
				"data": map[string]interface{}{
					"data":     map[string]interface{}{"openai_api_key": "sk-vault", "redis_password": 42},
					"metadata": map[string]interface{}{"version": 3},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&requests, 1)
				assert.Equal(t, "/v1/secret/socdash", r.URL.Path)
				assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer srv.Close()

			cfg := newTestConfig()
			cfg.Secrets.Provider = SecretsProviderVault
			cfg.Secrets.Vault.Address = srv.URL
			cfg.Secrets.Vault.Token = "root-token"

			m, err := NewVaultSecretManager(cfg)
			require.NoError(t, err)

			v, err := m.GetSecret(context.Background(), SecretOpenAIKey)
			require.NoError(t, err)
			assert.Equal(t, "sk-vault", v)

			_, err = m.GetSecret(context.Background(), SecretJWT)
			assert.ErrorIs(t, err, ErrSecretNotFound)

			_, err = m.GetSecret(context.Background(), SecretRedisPassword)
			assert.ErrorContains(t, err, "not a string")

			assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "secret is read once")
		})
	}
}

func TestVaultSecretManager_MissingPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[]}`))
	}))
	defer srv.Close()

	cfg := newTestConfig()
	cfg.Secrets.Vault.Address = srv.URL
	cfg.Secrets.Vault.Token = "root-token"

	m, err := NewVaultSecretManager(cfg)
	require.NoError(t, err)

	_, err = m.GetSecret(context.Background(), SecretOpenAIKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}

func TestAWSSecretManager(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))

		var input struct {
			SecretId string
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "soc/prod", input.SecretId)

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Name":         "soc/prod",
			"SecretString": `{"telegram_bot_token":"123:aws","jwt_secret":"aws-jwt"}`,
		})
	}))
	defer srv.Close()

	cfg := newTestConfig()
	cfg.Secrets.Provider = SecretsProviderAWS
	cfg.Secrets.AWS.Region = "us-east-1"
	cfg.Secrets.AWS.AccessKey = "AKIDTEST"
	cfg.Secrets.AWS.SecretKey = "secret"
	cfg.Secrets.AWS.SecretID = "soc/prod"
	cfg.Secrets.AWS.Endpoint = srv.URL

	require.NoError(t, LoadSecrets(context.Background(), cfg))

	assert.Equal(t, "123:aws", cfg.Telegram.BotToken)
	assert.Equal(t, "aws-jwt", cfg.Auth.JWTSecret)
	assert.Empty(t, cfg.OpenAI.APIKey)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "secret document is fetched once")
}

func TestLoadConfig_FileSecrets(t *testing.T) {
	isolate(t)
	secretsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(secretsDir, SecretOpenAIKey), []byte("sk-mounted"), 0o600))

	t.Setenv("SOCDASH_SECRETS_PROVIDER", SecretsProviderFile)
	t.Setenv("SOCDASH_SECRETS_DIR", secretsDir)

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sk-mounted", cfg.OpenAI.APIKey)
	assert.True(t, cfg.OpenAI.Enabled, "a key from the secret store also enables the LLM")
}

func TestValidate_Secrets(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"disabled", func(c *Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Secrets.Provider = "gcp" }, "invalid secrets provider"},
		{"vault without address", func(c *Config) { c.Secrets.Provider = SecretsProviderVault }, "secrets.vault.address"},
		{"aws without region", func(c *Config) { c.Secrets.Provider = SecretsProviderAWS }, "secrets.aws.region"},
		{"file without dir", func(c *Config) { c.Secrets.Provider = SecretsProviderFile }, "secrets.dir"},
		{"file with dir", func(c *Config) {
			c.Secrets.Provider = SecretsProviderFile
			c.Secrets.Dir = "/run/secrets"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
