package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
	getErr   error
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket: *input.Bucket,
		key:    *input.Key,
		body:   body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "NoSuchKey: key not found" }

type fakeReader struct {
	records  []interactionlog.Record
	err      error
	from, to time.Time
}

func (f *fakeReader) ListByUser(context.Context, string, int) ([]interactionlog.Record, error) {
	return nil, interactionlog.ErrNotConfigured
}

func (f *fakeReader) ListBetween(_ context.Context, from, to time.Time) ([]interactionlog.Record, error) {
	f.from, f.to = from, to
	return f.records, f.err
}

func TestStore_ExportDay(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", logging.Discard())
	store.now = func() time.Time { return time.Date(2026, 2, 13, 1, 0, 0, 0, time.UTC) }

	day := time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)
	reader := &fakeReader{records: []interactionlog.Record{
		{RequestID: "req_1_1", UserID: "user-1", Query: "email me at a@b.com", Response: "Please consult a doctor.", Intent: "general_health", RiskLevel: "low", CreatedAt: day},
		{RequestID: "req_1_2", UserID: "user-2", Query: "chest pain", Response: "Call 911", Intent: "emergency", RiskLevel: "critical", EmergencyAlert: true, CreatedAt: day.Add(time.Minute)},
	}}

	result, err := store.ExportDay(context.Background(), reader, day)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC), reader.from)
	assert.Equal(t, time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), reader.to)
	assert.Equal(t, "2026-02-12", result.Date)
	assert.Equal(t, 2, result.RecordCount)
	assert.Equal(t, 1, result.EmergencyCount)

	// day file + manifest
	require.Len(t, mock.putCalls, 2)
	assert.Equal(t, "interactions/v1/by-date/2026/02/12/interactions.jsonl", mock.putCalls[0].key)
	assert.Equal(t, "test-bucket", mock.putCalls[0].bucket)

	lines := bytes.Split(bytes.TrimSpace(mock.putCalls[0].body), []byte("\n"))
	require.Len(t, lines, 2)

	var first InteractionRecord
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "req_1_1", first.RequestID)
	assert.Equal(t, HashUserID("user-1"), first.UserHash)
	assert.Equal(t, "email me at [EMAIL]", first.Query)
	assert.True(t, first.Labels.PIIRedacted)
	assert.Equal(t, "rule", first.Labels.Category)

	var second InteractionRecord
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.True(t, second.EmergencyAlert)
	assert.Equal(t, "emergency", second.Labels.Category)

	assert.Equal(t, "interactions/v1/manifests/2026-02.jsonl", mock.putCalls[1].key)
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(mock.putCalls[1].body), &entry))
	assert.Equal(t, "2026-02-12", entry.Date)
	assert.Equal(t, 2, entry.RecordCount)
	assert.Equal(t, "2026-02-13T01:00:00Z", entry.ExportedAt)
}

func TestStore_ExportDayEmpty(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", logging.Discard())

	result, err := store.ExportDay(context.Background(), &fakeReader{}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, result.RecordCount)
	assert.Empty(t, mock.putCalls)
}

func TestStore_ExportDayReaderError(t *testing.T) {
	store := NewStore(newMockS3(), "test-bucket", logging.Discard())

	_, err := store.ExportDay(context.Background(), &fakeReader{err: errors.New("db down")}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	_, err := store.ExportDay(context.Background(), nil, time.Now())
	assert.NoError(t, err) // no-op, no error
}

func TestStore_ManifestAppend(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", logging.Discard())
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendManifest(context.Background(), day, ManifestEntry{Date: "2026-03-01"}))
	require.NoError(t, store.AppendManifest(context.Background(), day, ManifestEntry{Date: "2026-03-02"}))

	// The second append should contain both entries
	lastPut := mock.putCalls[len(mock.putCalls)-1]
	lines := bytes.Split(bytes.TrimSpace(lastPut.body), []byte("\n"))
	assert.Len(t, lines, 2)
}

func TestStore_ManifestReadFailure(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("access denied")
	store := NewStore(mock, "test-bucket", logging.Discard())

	err := store.AppendManifest(context.Background(), time.Now(), ManifestEntry{Date: "2026-03-01"})
	require.Error(t, err)
	assert.Empty(t, mock.putCalls, "must not overwrite a manifest it could not read")
}

func TestToArchiveRecordCategories(t *testing.T) {
	tests := []struct {
		rec  interactionlog.Record
		want string
	}{
		{interactionlog.Record{Intent: "health_query"}, "ai_answer"},
		{interactionlog.Record{Intent: "system_fallback"}, "fallback"},
		{interactionlog.Record{Intent: "error"}, "error"},
		{interactionlog.Record{Intent: "symptom_check", RiskLevel: "medium"}, "knowledge"},
		{interactionlog.Record{Intent: "appointment"}, "rule"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ToArchiveRecord(tt.rec).Labels.Category)
		})
	}
}
