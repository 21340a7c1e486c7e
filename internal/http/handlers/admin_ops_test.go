package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiyalink/afiyalink-assistant/internal/compliance"
	"github.com/afiyalink/afiyalink-assistant/internal/cost"
	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/internal/knowledge"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

type fakeReader struct {
	records  []interactionlog.Record
	err      error
	gotUser  string
	gotLimit int
	from, to time.Time
}

func (f *fakeReader) ListByUser(_ context.Context, userID string, limit int) ([]interactionlog.Record, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.records, f.err
}

func (f *fakeReader) ListBetween(_ context.Context, from, to time.Time) ([]interactionlog.Record, error) {
	f.from, f.to = from, to
	return f.records, f.err
}

type fakeAudit struct {
	filter compliance.AuditFilter
	events []compliance.AuditEvent
	err    error
}

func (f *fakeAudit) QueryEvents(_ context.Context, filter compliance.AuditFilter) ([]compliance.AuditEvent, error) {
	f.filter = filter
	return f.events, f.err
}

type fakeCosts struct {
	st  cost.Status
	err error
}

func (f fakeCosts) Status(context.Context) (cost.Status, error) { return f.st, f.err }

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListInteractionsByUser(t *testing.T) {
	reader := &fakeReader{records: []interactionlog.Record{{RequestID: "req_1_1", UserID: "u1", RiskLevel: "low"}}}
	h := NewAdminOpsHandler(reader, nil, nil, logging.Discard())

	rec := get(h.ListInteractions, "/admin/interactions?user_id=u1&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", reader.gotUser)
	assert.Equal(t, 5, reader.gotLimit)

	var body struct {
		Interactions []interactionlog.Record `json:"interactions"`
		Count        int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "req_1_1", body.Interactions[0].RequestID)
}

func TestListInteractionsDefaultWindow(t *testing.T) {
	reader := &fakeReader{}
	h := NewAdminOpsHandler(reader, nil, nil, logging.Discard())
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	rec := get(h.ListInteractions, "/admin/interactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, now, reader.to)
	assert.Equal(t, now.Add(-24*time.Hour), reader.from)
	assert.JSONEq(t, `{"interactions":[],"count":0}`, rec.Body.String())
}

func TestListInteractionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		reader interactionlog.Reader
		target string
		status int
	}{
		{"not configured", nil, "/admin/interactions", http.StatusServiceUnavailable},
		{"bad limit", &fakeReader{}, "/admin/interactions?limit=abc", http.StatusBadRequest},
		{"bad since", &fakeReader{}, "/admin/interactions?since=yesterday", http.StatusBadRequest},
		{"inverted window", &fakeReader{}, "/admin/interactions?since=2026-01-02T00:00:00Z&until=2026-01-01T00:00:00Z", http.StatusBadRequest},
		{"write-only backend", interactionlog.Nop{}, "/admin/interactions?user_id=u", http.StatusNotImplemented},
		{"store failure", &fakeReader{err: errors.New("boom")}, "/admin/interactions?user_id=u", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAdminOpsHandler(tt.reader, nil, nil, logging.Discard())
			rec := get(h.ListInteractions, tt.target)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestListAuditEvents(t *testing.T) {
	audit := &fakeAudit{events: []compliance.AuditEvent{{ID: "evt-1", EventType: compliance.EventEmergencyDetected}}}
	h := NewAdminOpsHandler(nil, audit, nil, logging.Discard())

	rec := get(h.ListAuditEvents, "/admin/audit?event_type=safety.emergency_detected&limit=900&offset=10&since=2026-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, compliance.EventEmergencyDetected, audit.filter.EventType)
	assert.Equal(t, maxAdminLimit, audit.filter.Limit)
	assert.Equal(t, 10, audit.filter.Offset)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), audit.filter.StartTime)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = get(NewAdminOpsHandler(nil, &fakeAudit{err: errors.New("db down")}, nil, logging.Discard()).ListAuditEvents, "/admin/audit")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestCostStatus(t *testing.T) {
	h := NewAdminOpsHandler(nil, nil, fakeCosts{st: cost.Status{Spent: 2.5, Ceiling: 10, Action: cost.ActionContinue}}, logging.Discard())
	rec := get(h.CostStatus, "/admin/cost")
	require.Equal(t, http.StatusOK, rec.Code)

	var st cost.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2.5, st.Spent)
	assert.Equal(t, cost.ActionContinue, st.Action)

	h = NewAdminOpsHandler(nil, nil, fakeCosts{err: errors.New("redis down")}, logging.Discard())
	assert.Equal(t, http.StatusServiceUnavailable, get(h.CostStatus, "/admin/cost").Code)
}

type fakeProtocols struct{ err error }

func (f fakeProtocols) GetProtocol(_ context.Context, condition string) (*knowledge.Protocol, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &knowledge.Protocol{Condition: condition, ImmediateActions: "Call 911"}, nil
}

func TestProtocolHandler(t *testing.T) {
	serve := func(store ProtocolStore, path string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Get("/api/v1/emergency/protocols/{condition}", NewProtocolHandler(store, logging.Discard()).GetProtocol)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve(fakeProtocols{}, "/api/v1/emergency/protocols/choking")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"condition":"choking"`)

	rec = serve(fakeProtocols{err: knowledge.ErrNotFound}, "/api/v1/emergency/protocols/sunburn")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(fakeProtocols{err: errors.New("disk")}, "/api/v1/emergency/protocols/stroke")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "emergency services")
}
