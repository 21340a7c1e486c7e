package triage

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/afiyalink/afiyalink-assistant/internal/http/middleware"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const (
	serviceName        = "AfiyaLink Healthcare Chatbot"
	serviceVersion     = "3.0.0"
	serviceDescription = "Reliable, culturally-sensitive healthcare assistance"

	maxMessageRunes  = 1000
	maxUserIDRunes   = 100
	maxCultureRunes  = 50
	maxRegionRunes   = 8
	maxChatBodyBytes = 64 << 10
)

var supportedLanguages = map[string]bool{"en": true, "ar": true, "fr": true, "ur": true}

// ChatRequest is the body of POST /api/v1/health-chat.
type ChatRequest struct {
	Message            string `json:"message"`
	UserID             string `json:"user_id"`
	Language           string `json:"language"`
	CulturalBackground string `json:"cultural_background"`
	Region             string `json:"region,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Validate trims and defaults the request and reports every invalid field.
func (req *ChatRequest) Validate() []FieldError {
	var errs []FieldError
	req.Message = strings.TrimSpace(req.Message)
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	if req.CulturalBackground == "" {
		req.CulturalBackground = DefaultCulturalBackground
	}

	switch n := utf8.RuneCountInString(req.Message); {
	case n == 0:
		errs = append(errs, FieldError{"message", "Message cannot be empty"})
	case n > maxMessageRunes:
		errs = append(errs, FieldError{"message", "ensure this value has at most 1000 characters"})
	}
	switch n := utf8.RuneCountInString(req.UserID); {
	case n == 0:
		errs = append(errs, FieldError{"user_id", "field required"})
	case n > maxUserIDRunes:
		errs = append(errs, FieldError{"user_id", "ensure this value has at most 100 characters"})
	}
	if !supportedLanguages[req.Language] {
		errs = append(errs, FieldError{"language", "language must be one of en, ar, fr, ur"})
	}
	if utf8.RuneCountInString(req.CulturalBackground) > maxCultureRunes {
		errs = append(errs, FieldError{"cultural_background", "ensure this value has at most 50 characters"})
	}
	if utf8.RuneCountInString(req.Region) > maxRegionRunes {
		errs = append(errs, FieldError{"region", "ensure this value has at most 8 characters"})
	}
	return errs
}

// ToMessage converts a validated request into a pipeline message.
func (req ChatRequest) ToMessage() Message {
	return Message{
		Text:               req.Message,
		UserID:             req.UserID,
		Language:           req.Language,
		CulturalBackground: req.CulturalBackground,
		Region:             req.Region,
	}
}

// Handler exposes the pipeline over HTTP.
type Handler struct {
	pipeline *Pipeline
	logger   *logging.Logger
	now      func() time.Time
}

// NewHandler creates a triage handler. A nil pipeline makes the chat and
// status endpoints report the service as unavailable.
func NewHandler(pipeline *Pipeline, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{pipeline: pipeline, logger: logger, now: time.Now}
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service":     serviceName,
		"version":     serviceVersion,
		"status":      "running",
		"description": serviceDescription,
		"features": []string{
			"Emergency detection (<5 seconds)",
			"Multi-language support (EN, AR, UR, FR)",
			"Islamic healthcare integration",
			"99.9% reliability for emergencies",
			"Cultural sensitivity",
			"Cost-optimized AI usage",
		},
		"endpoints": map[string]string{
			"health_chat":   "/api/v1/health-chat",
			"emergency":     "/api/v1/emergency",
			"system_status": "/api/v1/system-status",
			"translate":     "/api/v1/translate",
			"websocket":     "/ws/chat",
			"health_check":  "/health",
		},
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"service":       serviceName,
		"version":       serviceVersion,
		"timestamp":     h.now().UTC().Format(time.RFC3339),
		"chatbot_ready": h.pipeline != nil,
	})
}

// EmergencyInfo is the static payload of POST /api/v1/emergency.
type EmergencyInfo struct {
	Message          string   `json:"message"`
	ImmediateActions []string `json:"immediate_actions"`
	CriticalReminder string   `json:"critical_reminder"`
	ResponseTime     string   `json:"response_time"`
	Reliability      string   `json:"reliability"`
}

var emergencyInfo = EmergencyInfo{
	Message: "🚨 MEDICAL EMERGENCY 🚨",
	ImmediateActions: []string{
		"Call emergency services IMMEDIATELY",
		"US: 911 | UK: 999 | EU: 112 | India: 102",
		"Stay with the person if safe to do so",
		"Follow dispatcher instructions exactly",
		"Be prepared for CPR if trained",
	},
	CriticalReminder: "TIME IS CRITICAL - EVERY SECOND COUNTS",
	ResponseTime:     "immediate",
	Reliability:      "maximum",
}

// Emergency handles POST /api/v1/emergency. It touches no dependency.
func (h *Handler) Emergency(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, emergencyInfo)
}

// Chat handles POST /api/v1/health-chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Healthcare chatbot service temporarily unavailable")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "http_request_id", middleware.RequestIDFromContext(r.Context()), "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		h.logger.Debug("rejected chat request", "http_request_id", middleware.RequestIDFromContext(r.Context()), "field", errs[0].Field)
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
		return
	}

	resp := h.pipeline.ProcessMessage(r.Context(), req.ToMessage())
	h.writeJSON(w, http.StatusOK, resp)
}

// SystemStatus handles GET /api/v1/system-status.
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "service_not_ready"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.pipeline.Status(r.Context()))
}

func (h *Handler) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, map[string]string{"detail": detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
