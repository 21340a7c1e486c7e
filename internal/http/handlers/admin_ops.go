package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/afiyalink/afiyalink-assistant/internal/compliance"
	"github.com/afiyalink/afiyalink-assistant/internal/cost"
	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

const (
	defaultAdminLimit = 50
	maxAdminLimit     = 500
	defaultWindow     = 24 * time.Hour
)

// AuditQuerier reads the compliance trail.
type AuditQuerier interface {
	QueryEvents(ctx context.Context, filter compliance.AuditFilter) ([]compliance.AuditEvent, error)
}

// CostReporter reports AI spend for the current period.
type CostReporter interface {
	Status(ctx context.Context) (cost.Status, error)
}

// AdminOpsHandler serves the operator read endpoints. Any collaborator may
// be nil; its endpoint then answers 503.
type AdminOpsHandler struct {
	interactions interactionlog.Reader
	audit        AuditQuerier
	costs        CostReporter
	logger       *logging.Logger
	now          func() time.Time
}

// NewAdminOpsHandler creates the operator handler.
func NewAdminOpsHandler(interactions interactionlog.Reader, audit AuditQuerier, costs CostReporter, logger *logging.Logger) *AdminOpsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminOpsHandler{
		interactions: interactions,
		audit:        audit,
		costs:        costs,
		logger:       logger,
		now:          time.Now,
	}
}

// ListInteractions handles GET /admin/interactions. With user_id it returns
// that user's latest records; otherwise records between since and until
// (RFC 3339, default the last 24 hours).
func (h *AdminOpsHandler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	if h.interactions == nil {
		writeError(w, http.StatusServiceUnavailable, "interaction log not configured")
		return
	}
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var records []interactionlog.Record
	if userID := strings.TrimSpace(q.Get("user_id")); userID != "" {
		records, err = h.interactions.ListByUser(r.Context(), userID, limit)
	} else {
		var from, to time.Time
		from, to, err = h.parseWindow(q.Get("since"), q.Get("until"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, err = h.interactions.ListBetween(r.Context(), from, to)
		if len(records) > limit {
			records = records[:limit]
		}
	}
	if errors.Is(err, interactionlog.ErrNotConfigured) {
		writeError(w, http.StatusNotImplemented, "interaction log backend does not support reads")
		return
	}
	if err != nil {
		h.logger.Error("failed to list interactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list interactions")
		return
	}
	if records == nil {
		records = []interactionlog.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interactions": records,
		"count":        len(records),
	})
}

// ListAuditEvents handles GET /admin/audit.
func (h *AdminOpsHandler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit trail not configured")
		return
	}
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	filter := compliance.AuditFilter{
		UserID:    q.Get("user_id"),
		RequestID: q.Get("request_id"),
		EventType: compliance.AuditEventType(q.Get("event_type")),
		Limit:     limit,
		Offset:    offset,
	}
	if s := q.Get("since"); s != "" {
		if filter.StartTime, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
	}
	if s := q.Get("until"); s != "" {
		if filter.EndTime, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to query audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query audit events")
		return
	}
	if events == nil {
		events = []compliance.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// CostStatus handles GET /admin/cost.
func (h *AdminOpsHandler) CostStatus(w http.ResponseWriter, r *http.Request) {
	if h.costs == nil {
		writeError(w, http.StatusServiceUnavailable, "cost governor not configured")
		return
	}
	st, err := h.costs.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to read AI spend", "error", err)
		writeError(w, http.StatusServiceUnavailable, "cost ledger unavailable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *AdminOpsHandler) parseWindow(since, until string) (time.Time, time.Time, error) {
	to := h.now().UTC()
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("until must be RFC 3339")
		}
		to = t
	}
	from := to.Add(-defaultWindow)
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("since must be RFC 3339")
		}
		from = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, errors.New("since must be before until")
	}
	return from, to, nil
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultAdminLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxAdminLimit {
		n = maxAdminLimit
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
