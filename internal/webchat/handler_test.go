package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// fakeProcessor echoes messages and records what it saw.
type fakeProcessor struct {
	mu   sync.Mutex
	seen []triage.Message
}

func (f *fakeProcessor) ProcessMessage(_ context.Context, msg triage.Message) *triage.ChatResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, msg)
	return &triage.ChatResponse{
		Response:  "echo: " + msg.Text,
		Intent:    triage.IntentGeneralHealth,
		RiskLevel: triage.RiskLow,
		RequestID: "req_1_1",
	}
}

func (f *fakeProcessor) messages() []triage.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]triage.Message(nil), f.seen...)
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32) // 16 bytes = 32 hex chars
}

func TestNewHandlerPanicsWithoutProcessor(t *testing.T) {
	assert.Panics(t, func() { NewHandler(nil, nil, nil, nil) })
}

func postMessage(t *testing.T, h *Handler, body string) (string, *triage.ChatResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleMessage(w, httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		SessionID string               `json:"session_id"`
		Reply     *triage.ChatResponse `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.SessionID, resp.Reply
}

func TestHandleMessage_HTTP(t *testing.T) {
	proc := &fakeProcessor{}
	ts := NewMemoryTranscript(10, time.Hour)
	h := NewHandler(proc, ts, nil, logging.Discard())

	sessionID, reply := postMessage(t, h, `{"text":" Hello ","language":"fr","region":"FR"}`)
	assert.Len(t, sessionID, 32)
	assert.Equal(t, "echo: Hello", reply.Response)

	seen := proc.messages()
	require.Len(t, seen, 1)
	assert.Equal(t, triage.Message{Text: "Hello", UserID: "webchat:" + sessionID, Language: "fr", CulturalBackground: "general", Region: "FR"}, seen[0])

	// an issued session can be continued
	again, _ := postMessage(t, h, `{"session_id":"`+sessionID+`","text":"And now?"}`)
	assert.Equal(t, sessionID, again)

	msgs, err := ts.List(context.Background(), sessionID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "And now?", msgs[2].Text)
}

func TestHandleMessage_IgnoresClientChosenIdentity(t *testing.T) {
	proc := &fakeProcessor{}
	ts := NewMemoryTranscript(10, time.Hour)
	h := NewHandler(proc, ts, nil, logging.Discard())

	victim, _ := postMessage(t, h, `{"text":"I have a rash"}`)

	unknown := generateSessionID()
	for _, claimed := range []string{"sess1", unknown} {
		got, _ := postMessage(t, h, `{"session_id":"`+claimed+`","user_id":"webchat:`+victim+`","text":"hi"}`)
		assert.NotEqual(t, claimed, got, "unissued session ids are replaced")
		assert.NotEqual(t, victim, got)
		assert.Len(t, got, 32)
	}

	seen := proc.messages()
	require.Len(t, seen, 3)
	for _, msg := range seen[1:] {
		assert.NotEqual(t, "webchat:"+victim, msg.UserID, "user_id in the body is ignored")
	}
	for _, id := range []string{"sess1", unknown} {
		msgs, err := ts.List(context.Background(), id, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	}
}

func TestHandleMessage_Validation(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, nil, logging.Discard())

	for _, tc := range []struct {
		body   string
		status int
	}{
		{`{`, http.StatusBadRequest},
		{`{"text":"   "}`, http.StatusBadRequest},
		{`{"text":"hi","language":"de"}`, http.StatusUnprocessableEntity},
	} {
		w := httptest.NewRecorder()
		h.HandleMessage(w, httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(tc.body)))
		assert.Equal(t, tc.status, w.Code, tc.body)
	}
}

func TestHandleMessage_GeneratesSessionAndUser(t *testing.T) {
	proc := &fakeProcessor{}
	h := NewHandler(proc, nil, nil, logging.Discard())

	w := httptest.NewRecorder()
	h.HandleMessage(w, httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"Hi"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	sessionID, _ := resp["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, "webchat:"+sessionID, proc.messages()[0].UserID)
}

func TestHandleHistory(t *testing.T) {
	ts := NewMemoryTranscript(10, time.Hour)
	ctx := context.Background()
	sessionID := generateSessionID()
	require.NoError(t, ts.Append(ctx, sessionID, TranscriptMessage{Role: "user", Text: "Hello"}))
	require.NoError(t, ts.Append(ctx, sessionID, TranscriptMessage{Role: "assistant", Text: "Hi there!"}))
	h := NewHandler(&fakeProcessor{}, ts, nil, logging.Discard())

	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/chat/history?session="+sessionID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Hello", resp.Messages[0].Text)
	assert.Equal(t, "assistant", resp.Messages[1].Role)
}

func TestHandleHistory_MissingSession(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, nil, logging.Discard())
	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory_RejectsMalformedSession(t *testing.T) {
	ts := NewMemoryTranscript(10, time.Hour)
	require.NoError(t, ts.Append(context.Background(), "sess1", TranscriptMessage{Role: "user", Text: "private"}))
	h := NewHandler(&fakeProcessor{}, ts, nil, logging.Discard())

	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/chat/history?session=sess1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "private")
}

func TestHandleHistory_NoTranscriptStore(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, nil, logging.Discard())
	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/chat/history?session="+generateSessionID(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
}

func TestHandleWidgetJS(t *testing.T) {
	h := NewHandler(&fakeProcessor{}, nil, nil, logging.Discard())
	w := httptest.NewRecorder()
	h.HandleWidgetJS(w, httptest.NewRequest(http.MethodGet, "/chat/widget.js", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/ws/chat")

	custom := NewHandler(&fakeProcessor{}, nil, []byte("// custom"), logging.Discard())
	w = httptest.NewRecorder()
	custom.HandleWidgetJS(w, httptest.NewRequest(http.MethodGet, "/chat/widget.js", nil))
	assert.Equal(t, "// custom", w.Body.String())
}

func dialChat(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestWebSocketConversation(t *testing.T) {
	proc := &fakeProcessor{}
	ts := NewMemoryTranscript(10, time.Hour)
	h := NewHandler(proc, ts, nil, logging.Discard())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialChat(t, srv, "?session=abc&user=u9&lang=ar&culture=islamic&region=SA")

	hello := receive(t, conn)
	assert.Equal(t, "session", hello.Type)
	assert.NotEqual(t, "abc", hello.SessionID, "client-chosen ids are not honored")
	assert.Len(t, hello.SessionID, 32)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "I have a cough"}))
	assert.Equal(t, "typing", receive(t, conn).Type)
	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "echo: I have a cough", reply.Text)
	require.NotNil(t, reply.Reply)
	assert.Equal(t, "req_1_1", reply.Reply.RequestID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: ""}))
	assert.Equal(t, "typing", receive(t, conn).Type)
	invalid := receive(t, conn)
	assert.Equal(t, "error", invalid.Type)
	assert.Contains(t, invalid.Text, "message")

	seen := proc.messages()
	require.Len(t, seen, 1)
	assert.Equal(t, triage.Message{Text: "I have a cough", UserID: "webchat:" + hello.SessionID, Language: "ar", CulturalBackground: "islamic", Region: "SA"}, seen[0])

	// A reconnect with the issued session replays history.
	_ = conn.Close()
	again := dialChat(t, srv, "?session="+hello.SessionID)
	resumed := receive(t, again)
	assert.Equal(t, "session", resumed.Type)
	assert.Equal(t, hello.SessionID, resumed.SessionID)
	history := receive(t, again)
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "I have a cough", history.Messages[0].Text)
}

func TestMemoryTranscriptBoundsAndExpiry(t *testing.T) {
	ts := NewMemoryTranscript(3, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "d"} {
		require.NoError(t, ts.Append(ctx, "s1", TranscriptMessage{Role: "user", Text: text}))
	}
	msgs, err := ts.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "b", msgs[0].Text)

	msgs, _ = ts.List(ctx, "s1", 2)
	assert.Equal(t, []string{"c", "d"}, []string{msgs[0].Text, msgs[1].Text})

	now = now.Add(2 * time.Minute)
	require.NoError(t, ts.Append(ctx, "s2", TranscriptMessage{Role: "user", Text: "x"}))
	msgs, _ = ts.List(ctx, "s1", 0)
	assert.Empty(t, msgs)
}
