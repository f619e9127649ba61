package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"socdash/config"
	"socdash/core"
	"socdash/metrics"

	"go.uber.org/zap"
)

const (
	defaultAPIURL    = "https://api.telegram.org"
	defaultMaxTitles = 10
	maxResponseBytes = 1 << 20
)

// markdownEscaper escapes the characters legacy Telegram Markdown treats as markup
var markdownEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// AlertNotification is a group of alerts relayed to one Telegram chat
type AlertNotification struct {
	GroupID string   `json:"groupId" validate:"required,max=64"`
	Summary string   `json:"summary" validate:"required,max=2000"`
	Titles  []string `json:"titles" validate:"max=100,dive,max=500"`
}

// SendResult is Telegram's acknowledgement of a sent message
type SendResult struct {
	MessageID int64 `json:"messageId"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// TelegramNotifier relays alert notifications through the Telegram Bot API
type TelegramNotifier struct {
	token     string
	apiURL    string
	maxTitles int
	client    *http.Client
	breaker   *core.CircuitBreaker
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewTelegramNotifier creates a notifier from configuration. A missing bot
// token is not an error here; SendAlert reports core.ErrNotConfigured instead.
func NewTelegramNotifier(cfg *config.Config, logger *zap.SugaredLogger) (*TelegramNotifier, error) {
	breaker, err := core.NewCircuitBreaker(core.DefaultCircuitBreakerConfig())
	if err != nil {
		return nil, err
	}

	apiURL := strings.TrimRight(cfg.Telegram.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	maxTitles := cfg.Telegram.MaxTitles
	if maxTitles <= 0 {
		maxTitles = defaultMaxTitles
	}
	timeout := cfg.Telegram.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TelegramNotifier{
		token:     strings.TrimSpace(cfg.Telegram.BotToken),
		apiURL:    apiURL,
		maxTitles: maxTitles,
		client:    &http.Client{Timeout: timeout},
		breaker:   breaker,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Configured reports whether a bot token is set
func (t *TelegramNotifier) Configured() bool {
	return t.token != ""
}

// BreakerState exposes the circuit breaker state for health reporting
func (t *TelegramNotifier) BreakerState() core.CircuitBreakerState {
	return t.breaker.State()
}

// SendAlert formats n and posts it to the chat named by n.GroupID
func (t *TelegramNotifier) SendAlert(ctx context.Context, n AlertNotification) (*SendResult, error) {
	if !t.Configured() {
		return nil, fmt.Errorf("%w: telegram bot token is not set", core.ErrNotConfigured)
	}

	var result *SendResult
	err := t.breaker.Execute(func() error {
		var sendErr error
		result, sendErr = t.send(ctx, n.GroupID, t.FormatMessage(n))
		return sendErr
	})
	if err != nil {
		status := "error"
		if errors.Is(err, core.ErrCircuitBreakerOpen) {
			status = "rejected"
		}
		metrics.TelegramMessages.WithLabelValues(status).Inc()
		t.logger.Warnw("Telegram notification failed",
			"group_id", n.GroupID,
			"breaker_state", t.breaker.State(),
			"error", err)
		return nil, err
	}

	metrics.TelegramMessages.WithLabelValues("success").Inc()
	t.logger.Infow("Telegram notification sent",
		"group_id", n.GroupID,
		"message_id", result.MessageID,
		"titles", len(n.Titles))
	return result, nil
}

// FormatMessage renders the Markdown body of a notification
func (t *TelegramNotifier) FormatMessage(n AlertNotification) string {
	var b strings.Builder
	b.WriteString("🚨 *Security Alert Notification*\n\n")
	b.WriteString(markdownEscaper.Replace(n.Summary))

	if len(n.Titles) > 0 {
		b.WriteString("\n\n*Alerts:*")
		shown := n.Titles
		if len(shown) > t.maxTitles {
			shown = shown[:t.maxTitles]
		}
		for i, title := range shown {
			fmt.Fprintf(&b, "\n%d. %s", i+1, markdownEscaper.Replace(title))
		}
		if rest := len(n.Titles) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "\n...and %d more", rest)
		}
	}

	fmt.Fprintf(&b, "\n\n_%s_", t.now().UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func (t *TelegramNotifier) send(ctx context.Context, chatID, text string) (*SendResult, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the request URL carries the token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read telegram response: %w", err)
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("telegram returned %d with an unreadable body", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.OK {
		desc := parsed.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("telegram returned %d: %s", resp.StatusCode, desc)
	}

	return &SendResult{MessageID: parsed.Result.MessageID}, nil
}
