package core

import "time"

// Chat roles accepted in client supplied history
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one entry of the conversation context sent to the LLM
type ChatMessage struct {
	Role    string `json:"role" msgpack:"role"`
	Content string `json:"content" msgpack:"content"`
}

// ChatTurn is a recorded exchange between an analyst and the chatbot
type ChatTurn struct {
	Timestamp   time.Time `json:"timestamp" msgpack:"ts"`
	UserMessage string    `json:"userMessage" msgpack:"user"`
	BotResponse string    `json:"botResponse" msgpack:"bot"`
	ToolUsed    *string   `json:"toolUsed" msgpack:"tool"`
}

// Messages expands turns into alternating user/assistant messages
func Messages(turns []ChatTurn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			ChatMessage{Role: RoleUser, Content: t.UserMessage},
			ChatMessage{Role: RoleAssistant, Content: t.BotResponse},
		)
	}
	return msgs
}
