package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"socdash/core"
	"socdash/mcp"
	"socdash/metrics"
	"socdash/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxToolPayload bounds the tool output forwarded to the LLM
const maxToolPayload = 8 * 1024

const systemPrompt = `You are a security operations (SOC) assistant embedded in an alert dashboard.
Answer questions about security alerts, incident triage and detection engineering concisely.
When you are given query results, summarize them for an analyst: lead with the most severe findings,
mention concrete IPs, rule names and counts, and suggest a next step when one is obvious.
Never invent alerts that are not in the data.`

// ToolExecutor runs MCP tools
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]interface{}) (*mcp.ToolResult, error)
}

// HistoryStore persists per-session transcripts
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, turn core.ChatTurn) error
	Get(ctx context.Context, sessionID string) ([]core.ChatTurn, error)
	Delete(ctx context.Context, sessionID string) error
}

// Completer produces an assistant reply for a conversation
type Completer interface {
	Complete(ctx context.Context, messages []core.ChatMessage) (string, error)
}

// ChatRequest is the body of POST /api/chatbot
type ChatRequest struct {
	Message   string             `json:"message"`
	History   []core.ChatMessage `json:"history,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
}

// ChatResponse is the reply to a ChatRequest
type ChatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	ToolUsed  *string   `json:"toolUsed"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
}

// Options tunes the chatbot service
type Options struct {
	MaxMessageLength int
	ContextTurns     int
}

// Service answers chat messages by routing them to MCP tools or the LLM
type Service struct {
	tools    ToolExecutor
	history  HistoryStore
	llm      Completer
	detector *IntentDetector
	help     *HelpCatalog
	opts     Options
	logger   *zap.SugaredLogger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates a chatbot service. llm may be nil, in which case tool
// results are formatted locally and other messages get the help text.
func NewService(tools ToolExecutor, history HistoryStore, llm Completer, opts Options, logger *zap.SugaredLogger) *Service {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 4000
	}
	if opts.ContextTurns < 0 {
		opts.ContextTurns = 0
	}
	return &Service{
		tools:    tools,
		history:  history,
		llm:      llm,
		detector: NewIntentDetector(DefaultMatchTimeout),
		help:     DefaultHelpCatalog(),
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("socdash/chatbot"),
		now:      time.Now,
	}
}

// LLMEnabled reports whether an LLM is wired in
func (s *Service) LLMEnabled() bool {
	return s.llm != nil
}

// Chat answers one message and records the exchange in the session history
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", core.ErrInvalidArgument)
	}
	if n := utf8.RuneCountInString(message); n > s.opts.MaxMessageLength {
		return nil, fmt.Errorf("%w: message too long (%d characters, max %d)", core.ErrInvalidArgument, n, s.opts.MaxMessageLength)
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, span := s.tracer.Start(ctx, "chatbot.chat")
	defer span.End()

	var (
		response string
		toolUsed *string
		err      error
	)

	if call := s.detector.Detect(message); call != nil {
		name := call.Name
		toolUsed = &name
		metrics.ChatRequests.WithLabelValues(name).Inc()
		span.SetAttributes(attribute.String("chatbot.tool", name))
		response, err = s.answerWithTool(ctx, message, call)
	} else {
		metrics.ChatRequests.WithLabelValues("none").Inc()
		span.SetAttributes(attribute.Bool("chatbot.llm", s.LLMEnabled()))
		response, err = s.answerConversation(ctx, sessionID, message, req.History)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return nil, err
	}

	now := s.now().UTC()
	turn := core.ChatTurn{
		Timestamp:   now,
		UserMessage: message,
		BotResponse: response,
		ToolUsed:    toolUsed,
	}
	if err := s.history.Append(ctx, sessionID, turn); err != nil {
		s.logger.Warnw("Failed to record chat turn",
			"session_id", sessionID,
			"error", err)
	}

	return &ChatResponse{
		Success:   true,
		Response:  response,
		ToolUsed:  toolUsed,
		Timestamp: now,
		SessionID: sessionID,
	}, nil
}

func (s *Service) answerWithTool(ctx context.Context, message string, call *ToolCall) (string, error) {
	result, err := s.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		return "", fmt.Errorf("failed to execute %s: %w", call.Name, err)
	}

	formatted := FormatToolResult(result)
	if s.llm == nil {
		return formatted, nil
	}

	payload, err := json.Marshal(result.Data)
	if err != nil {
		return formatted, nil
	}
	data := util.Truncate(string(payload), maxToolPayload)
	args, _ := json.Marshal(result.Arguments)

	prompt := fmt.Sprintf("The analyst asked: %q\n\nI ran the %s query with arguments %s and got %d results:\n%s\n\nSummarize these results for the analyst.",
		message, result.Tool, args, result.Count, data)

	summary, err := s.llm.Complete(ctx, []core.ChatMessage{
		{Role: core.RoleSystem, Content: systemPrompt},
		{Role: core.RoleUser, Content: prompt},
	})
	if err != nil || strings.TrimSpace(summary) == "" {
		s.logger.Warnw("LLM summary unavailable, using formatted tool output",
			"tool", result.Tool,
			"error", util.SanitizeError(err))
		return formatted, nil
	}
	return summary, nil
}

func (s *Service) answerConversation(ctx context.Context, sessionID, message string, history []core.ChatMessage) (string, error) {
	if s.llm == nil {
		_, text := s.help.Get(DefaultHelpTopic)
		return text, nil
	}

	messages := []core.ChatMessage{{Role: core.RoleSystem, Content: systemPrompt}}
	messages = append(messages, s.conversationContext(ctx, sessionID, history)...)
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: message})

	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to get AI response: %w", err)
	}
	return reply, nil
}

// conversationContext prefers the history sent by the client and falls back
// to the stored transcript. Client supplied system messages are dropped.
func (s *Service) conversationContext(ctx context.Context, sessionID string, history []core.ChatMessage) []core.ChatMessage {
	limit := s.opts.ContextTurns * 2
	if limit == 0 {
		return nil
	}

	var msgs []core.ChatMessage
	if len(history) > 0 {
		for _, m := range history {
			if (m.Role == core.RoleUser || m.Role == core.RoleAssistant) && strings.TrimSpace(m.Content) != "" {
				msgs = append(msgs, m)
			}
		}
	} else {
		turns, err := s.history.Get(ctx, sessionID)
		if err != nil {
			s.logger.Warnw("Failed to load chat history for context", "session_id", sessionID, "error", err)
			return nil
		}
		msgs = core.Messages(turns)
	}

	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}

// Help returns the resolved topic and its text
func (s *Service) Help(topic string) (string, string) {
	return s.help.Get(topic)
}

// HelpTopics lists the known help topics
func (s *Service) HelpTopics() []string {
	return s.help.Topics()
}

// History returns the stored transcript for a session
func (s *Service) History(ctx context.Context, sessionID string) ([]core.ChatTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session ID is required", core.ErrInvalidArgument)
	}
	return s.history.Get(ctx, sessionID)
}

// ClearHistory deletes the stored transcript for a session
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session ID is required", core.ErrInvalidArgument)
	}
	return s.history.Delete(ctx, sessionID)
}
