package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/afiyalink/afiyalink-assistant/internal/knowledge"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// ProtocolStore finds first-aid protocols by condition.
type ProtocolStore interface {
	GetProtocol(ctx context.Context, condition string) (*knowledge.Protocol, error)
}

// ProtocolHandler serves GET /api/v1/emergency/protocols/{condition}.
type ProtocolHandler struct {
	store  ProtocolStore
	logger *logging.Logger
}

func NewProtocolHandler(store ProtocolStore, logger *logging.Logger) *ProtocolHandler {
	if store == nil {
		panic("handlers: protocol store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ProtocolHandler{store: store, logger: logger}
}

func (h *ProtocolHandler) GetProtocol(w http.ResponseWriter, r *http.Request) {
	condition := chi.URLParam(r, "condition")
	p, err := h.store.GetProtocol(r.Context(), condition)
	if errors.Is(err, knowledge.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no protocol for condition; call emergency services if in doubt")
		return
	}
	if err != nil {
		h.logger.Error("failed to load emergency protocol", "condition", condition, "error", err)
		writeError(w, http.StatusInternalServerError, "protocol lookup failed; call emergency services if in doubt")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
