package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socdash/chatbot"
	"socdash/core"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dialChat(t *testing.T, a *API, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/chatbot/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestChatWebSocket(t *testing.T) {
	a, deps := setupTestAPI(t, nil)

	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: "hello"}).
		Return(&chatbot.ChatResponse{Success: true, Response: "hi there", SessionID: "generated"}, nil).Once()
	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: "and again", SessionID: "generated"}).
		Return(&chatbot.ChatResponse{Success: true, Response: "still here", SessionID: "generated"}, nil).Once()

	conn, _, err := dialChat(t, a, "", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hello"}))
	msg := readJSON(t, conn)
	assert.Equal(t, true, msg["success"])
	assert.Equal(t, "hi there", msg["response"])
	assert.Equal(t, "generated", msg["sessionId"])

	// the session assigned by the first reply sticks to the connection
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "and again"}))
	msg = readJSON(t, conn)
	assert.Equal(t, "still here", msg["response"])

	deps.chat.AssertExpectations(t)
}

func TestChatWebSocket_SlowChatKeepsConnection(t *testing.T) {
	a, deps := setupTestAPI(t, nil)
	a.pongWait = 300 * time.Millisecond

	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: "slow"}).
		After(3 * a.pongWait).
		Return(&chatbot.ChatResponse{Success: true, Response: "done", SessionID: "s1"}, nil).Once()
	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: "next", SessionID: "s1"}).
		Return(&chatbot.ChatResponse{Success: true, Response: "still connected", SessionID: "s1"}, nil).Once()

	conn, _, err := dialChat(t, a, "", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "slow"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "done", msg["response"])

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "next"}))
	msg = readJSON(t, conn)
	assert.Equal(t, "still connected", msg["response"])

	deps.chat.AssertExpectations(t)
}

func TestChatWebSocket_SessionFromQuery(t *testing.T) {
	a, deps := setupTestAPI(t, nil)
	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: "hi", SessionID: "s-9"}).
		Return(&chatbot.ChatResponse{Success: true, Response: "ok", SessionID: "s-9"}, nil)

	conn, _, err := dialChat(t, a, "?sessionId=s-9", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hi"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "s-9", msg["sessionId"])
}

func TestChatWebSocket_Errors(t *testing.T) {
	a, deps := setupTestAPI(t, nil)
	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: ""}).
		Return(nil, fmt.Errorf("%w: message is required", core.ErrInvalidArgument))
	deps.chat.On("Chat", mock.Anything, chatbot.ChatRequest{Message: "boom"}).
		Return(nil, fmt.Errorf("query failed: dial tcp 10.0.0.9:9000: connection refused"))

	conn, _, err := dialChat(t, a, "", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readJSON(t, conn)
	assert.Equal(t, false, msg["success"])
	assert.Equal(t, "Invalid JSON body", msg["error"])

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	msg = readJSON(t, conn)
	assert.Equal(t, "only text frames are supported", msg["error"])

	require.NoError(t, conn.WriteJSON(map[string]string{"message": ""}))
	msg = readJSON(t, conn)
	assert.Contains(t, msg["error"], "message is required")

	// server side failures keep their details in the log
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "boom"}))
	msg = readJSON(t, conn)
	assert.Equal(t, "Failed to process chat message", msg["error"])
}

func TestChatWebSocket_RejectsForeignOrigin(t *testing.T) {
	a, _ := setupTestAPI(t, nil)

	_, resp, err := dialChat(t, a, "", http.Header{"Origin": []string{"https://evil.example"}})

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestChatWebSocket_RequiresToken(t *testing.T) {
	cfg := testConfig()
	enableAuth(t, cfg)
	a, deps := setupTestAPI(t, cfg)
	deps.chat.On("Chat", mock.Anything, mock.Anything).
		Return(&chatbot.ChatResponse{Success: true, Response: "ok", SessionID: "s"}, nil)

	_, resp, err := dialChat(t, a, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := generateJWT(testUsername, cfg, time.Now())
	require.NoError(t, err)

	conn, _, err := dialChat(t, a, "?token="+token, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hi"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "ok", msg["response"])
}

func TestChatWebSocket_ClosedOnStop(t *testing.T) {
	cfg := testConfig()
	a, _ := setupTestAPI(t, cfg)

	conn, _, err := dialChat(t, a, "", nil)
	require.NoError(t, err)

	require.NoError(t, a.Stop(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
