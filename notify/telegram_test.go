package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"socdash/config"
	"socdash/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "123456:test-token"

func newTestNotifier(t *testing.T, apiURL string, maxTitles int) *TelegramNotifier {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.BotToken = testToken
	cfg.Telegram.APIURL = apiURL
	cfg.Telegram.MaxTitles = maxTitles
	cfg.Telegram.Timeout = 2 * time.Second

	n, err := NewTelegramNotifier(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func TestFormatMessage(t *testing.T) {
	n := newTestNotifier(t, "", 2)

	msg := n.FormatMessage(AlertNotification{
		GroupID: "-100123",
		Summary: "3 alerts on web_server *prod*",
		Titles:  []string{"SSH brute_force", "Port scan", "Malware"},
	})

	want := "🚨 *Security Alert Notification*\n\n" +
		"3 alerts on web\\_server \\*prod\\*\n\n" +
		"*Alerts:*\n" +
		"1. SSH brute\\_force\n" +
		"2. Port scan\n" +
		"...and 1 more\n\n" +
		"_2026-05-01 12:00:00 UTC_"
	assert.Equal(t, want, msg)
}

func TestFormatMessage_NoTitles(t *testing.T) {
	n := newTestNotifier(t, "", 0)

	msg := n.FormatMessage(AlertNotification{GroupID: "1", Summary: "quiet"})
	assert.NotContains(t, msg, "*Alerts:*")
	assert.Equal(t, defaultMaxTitles, n.maxTitles)
}

func TestSendAlert(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42}}`)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 10)
	res, err := n.SendAlert(context.Background(), AlertNotification{
		GroupID: "-100123",
		Summary: "summary",
		Titles:  []string{"a"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.MessageID)
	assert.Equal(t, "-100123", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
	assert.True(t, strings.HasPrefix(got.Text, "🚨 *Security Alert Notification*"))
}

func TestSendAlert_TelegramError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 10)
	_, err := n.SendAlert(context.Background(), AlertNotification{GroupID: "x", Summary: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.NotContains(t, err.Error(), testToken)
}

func TestSendAlert_NotConfigured(t *testing.T) {
	n, err := NewTelegramNotifier(&config.Config{}, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.False(t, n.Configured())
	_, err = n.SendAlert(context.Background(), AlertNotification{GroupID: "x", Summary: "s"})
	assert.True(t, errors.Is(err, core.ErrNotConfigured))
}

func TestSendAlert_CircuitBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := newTestNotifier(t, server.URL, 10)
	maxFailures := int(core.DefaultCircuitBreakerConfig().MaxFailures)
	for i := 0; i < maxFailures; i++ {
		_, err := n.SendAlert(context.Background(), AlertNotification{GroupID: "x", Summary: "s"})
		require.Error(t, err)
	}

	assert.Equal(t, core.CircuitBreakerStateOpen, n.BreakerState())
	_, err := n.SendAlert(context.Background(), AlertNotification{GroupID: "x", Summary: "s"})
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(maxFailures), atomic.LoadInt32(&calls))
}
