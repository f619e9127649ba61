package api

import (
	"net/http"
	"strings"

	"socdash/chatbot"
	"socdash/core"
	"socdash/mcp"

	"github.com/gorilla/mux"
)

const maxSessionIDLength = 128

type helpResponse struct {
	Success bool     `json:"success"`
	Topic   string   `json:"topic"`
	Help    string   `json:"help"`
	Topics  []string `json:"topics"`
}

type historyResponse struct {
	Success   bool            `json:"success"`
	SessionID string          `json:"sessionId"`
	History   []core.ChatTurn `json:"history"`
	Count     int             `json:"count"`
}

type toolsResponse struct {
	Success bool       `json:"success"`
	Tools   []mcp.Tool `json:"tools"`
}

type toolExecutionResponse struct {
	Success bool            `json:"success"`
	Tool    string          `json:"tool"`
	Result  *mcp.ToolResult `json:"result"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// chatHandler answers one chatbot message
func (a *API) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatbot.ChatRequest
	if err := a.decodeJSONBodyWithLimit(w, r, &req, a.config.API.BodyLimit); err != nil {
		return
	}
	if len(req.SessionID) > maxSessionIDLength {
		writeError(w, http.StatusBadRequest, "sessionId is too long", nil, a.logger)
		return
	}

	resp, err := a.chat.Chat(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, "Failed to process chat message", err)
		return
	}
	a.respondJSON(w, resp, http.StatusOK)
}

// helpHandler serves the help text for a topic, falling back to the general topic
func (a *API) helpHandler(w http.ResponseWriter, r *http.Request) {
	topic, text := a.chat.Help(mux.Vars(r)["topic"])
	a.respondJSON(w, helpResponse{
		Success: true,
		Topic:   topic,
		Help:    text,
		Topics:  a.chat.HelpTopics(),
	}, http.StatusOK)
}

func (a *API) sessionIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := strings.TrimSpace(mux.Vars(r)["sessionId"])
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		writeError(w, http.StatusBadRequest, "Invalid session ID", nil, a.logger)
		return "", false
	}
	return sessionID, true
}

// getHistory returns the stored transcript of a session
func (a *API) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := a.sessionIDFromPath(w, r)
	if !ok {
		return
	}

	turns, err := a.chat.History(r.Context(), sessionID)
	if err != nil {
		a.writeServiceError(w, "Failed to load chat history", err)
		return
	}
	if turns == nil {
		turns = []core.ChatTurn{}
	}

	a.respondJSON(w, historyResponse{
		Success:   true,
		SessionID: sessionID,
		History:   turns,
		Count:     len(turns),
	}, http.StatusOK)
}

// clearHistory deletes the stored transcript of a session
func (a *API) clearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := a.sessionIDFromPath(w, r)
	if !ok {
		return
	}

	if err := a.chat.ClearHistory(r.Context(), sessionID); err != nil {
		a.writeServiceError(w, "Failed to clear chat history", err)
		return
	}

	a.respondJSON(w, messageResponse{Success: true, Message: "History cleared"}, http.StatusOK)
}

// listTools returns the tool manifest
func (a *API) listTools(w http.ResponseWriter, r *http.Request) {
	a.respondJSON(w, toolsResponse{Success: true, Tools: a.tools.Tools()}, http.StatusOK)
}

// executeTool runs a tool directly with the JSON object in the body as arguments
func (a *API) executeTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	args := map[string]interface{}{}
	if r.ContentLength != 0 {
		if err := a.decodeJSONBodyWithLimit(w, r, &args, a.config.API.BodyLimit); err != nil {
			return
		}
	}

	result, err := a.tools.Execute(r.Context(), name, args)
	if err != nil {
		a.writeServiceError(w, "Failed to execute tool", err)
		return
	}

	a.respondJSON(w, toolExecutionResponse{Success: true, Tool: name, Result: result}, http.StatusOK)
}
