package webchat

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/afiyalink/afiyalink-assistant/internal/triage"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

//go:embed widget.js
var defaultWidgetJS []byte

const (
	historyOnConnect = 50
	historyPageSize  = 100
	maxFrameBytes    = 16 << 10
	sessionIDBytes   = 16
)

// Processor answers one chat message. *triage.Pipeline satisfies it.
type Processor interface {
	ProcessMessage(ctx context.Context, msg triage.Message) *triage.ChatResponse
}

// Handler serves the chat widget over WebSocket with an HTTP fallback.
type Handler struct {
	processor  Processor
	transcript TranscriptStore
	logger     *logging.Logger
	widgetJS   []byte
	active     atomic.Int64
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type               string `json:"type"` // "message", "ping"
	Text               string `json:"text"`
	Language           string `json:"language,omitempty"`
	CulturalBackground string `json:"cultural_background,omitempty"`
	Region             string `json:"region,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string               `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text      string               `json:"text,omitempty"`
	Role      string               `json:"role,omitempty"`
	SessionID string               `json:"session_id,omitempty"`
	Timestamp string               `json:"timestamp,omitempty"`
	Messages  []HistoryMessage     `json:"messages,omitempty"`
	Reply     *triage.ChatResponse `json:"reply,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler. A nil widget uses the bundled one.
func NewHandler(processor Processor, transcript TranscriptStore, widgetJS []byte, logger *logging.Logger) *Handler {
	if processor == nil {
		panic("webchat: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if len(widgetJS) == 0 {
		widgetJS = defaultWidgetJS
	}
	return &Handler{
		processor:  processor,
		transcript: transcript,
		logger:     logger,
		widgetJS:   widgetJS,
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		u := uuid.New()
		return hex.EncodeToString(u[:])
	}
	return hex.EncodeToString(b)
}

func wellFormedSessionID(id string) bool {
	if len(id) != 2*sessionIDBytes {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// resolveSession returns id only when it names a session this server issued
// and still holds a transcript for. Anything else gets a fresh id.
func (h *Handler) resolveSession(ctx context.Context, id string) string {
	if h.transcript != nil && wellFormedSessionID(id) {
		msgs, err := h.transcript.List(ctx, id, 1)
		if err != nil {
			h.logger.Warn("webchat: failed to look up session", "error", err)
		} else if len(msgs) > 0 {
			return id
		}
	}
	return generateSessionID()
}

func newSession(id string) session {
	return session{id: id, userID: "webchat:" + id}
}

// session is the per-connection chat context. The user id is always derived
// from the server-issued session id.
type session struct {
	id                 string
	userID             string
	language           string
	culturalBackground string
	region             string
}

func (h *Handler) sessionFromQuery(r *http.Request) session {
	q := r.URL.Query()
	s := newSession(h.resolveSession(r.Context(), q.Get("session")))
	s.language = q.Get("lang")
	s.culturalBackground = q.Get("culture")
	s.region = q.Get("region")
	return s
}

// HandleWebSocket upgrades to WebSocket and answers messages in order.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		conn.MaxPayloadBytes = maxFrameBytes
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	s := h.sessionFromQuery(r)
	ctx := r.Context()

	active := h.active.Add(1)
	defer func() {
		h.logger.Debug("webchat: connection released", "session_id", s.id, "active_connections", h.active.Add(-1))
	}()

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: s.id})

	if h.transcript != nil {
		if msgs, err := h.transcript.List(ctx, s.id, historyOnConnect); err == nil && len(msgs) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: toHistory(msgs)})
		}
	}

	h.logger.Info("webchat: connection opened", "session_id", s.id, "active_connections", active)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", s.id, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		case "message":
		default:
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		out := h.answer(ctx, s, msg)
		if err := websocket.JSON.Send(conn, out); err != nil {
			h.logger.Warn("webchat: failed to deliver reply", "session_id", s.id, "error", err)
			return
		}
	}
}

// answer validates msg against the same rules as the REST endpoint and runs
// it through the processor.
func (h *Handler) answer(ctx context.Context, s session, msg InboundMessage) OutboundMessage {
	req := triage.ChatRequest{
		Message:            msg.Text,
		UserID:             s.userID,
		Language:           firstNonEmpty(msg.Language, s.language),
		CulturalBackground: firstNonEmpty(msg.CulturalBackground, s.culturalBackground),
		Region:             firstNonEmpty(msg.Region, s.region),
	}
	if errs := req.Validate(); len(errs) > 0 {
		return OutboundMessage{Type: "error", Text: errs[0].Field + ": " + errs[0].Msg}
	}

	h.record(ctx, s.id, "user", req.Message)
	resp := h.processor.ProcessMessage(ctx, req.ToMessage())
	h.record(ctx, s.id, "assistant", resp.Response)

	return OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      resp.Response,
		SessionID: s.id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Reply:     resp,
	}
}

func (h *Handler) record(ctx context.Context, sessionID, role, text string) {
	if h.transcript == nil {
		return
	}
	err := h.transcript.Append(ctx, sessionID, TranscriptMessage{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("webchat: failed to store transcript", "session_id", sessionID, "error", err)
	}
}

// HandleMessage is the HTTP fallback for sending messages. A session_id
// continues a conversation only if this server issued it.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		InboundMessage
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "text is required"})
		return
	}
	s := newSession(h.resolveSession(r.Context(), req.SessionID))

	out := h.answer(r.Context(), s, req.InboundMessage)
	if out.Type == "error" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": out.Text})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.id,
		"reply":      out.Reply,
	})
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "session parameter required"})
		return
	}
	if !wellFormedSessionID(sessionID) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid session"})
		return
	}

	if h.transcript == nil {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []HistoryMessage{}})
		return
	}

	msgs, err := h.transcript.List(r.Context(), sessionID, historyPageSize)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to load history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": toHistory(msgs)})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

func toHistory(msgs []TranscriptMessage) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Text,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	return history
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
