package translation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const maxTranslateChars = 5000

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// Handler serves POST /translate.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("translation: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	switch {
	case req.Text == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "text is required"})
		return
	case len(req.Text) > maxTranslateChars:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "text is too long"})
		return
	case strings.TrimSpace(req.TargetLanguage) == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "target_language is required"})
		return
	}

	res, err := h.svc.RefineAndTranslate(r.Context(), req.Text, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		h.logger.Error("translate request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "translation is temporarily unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
