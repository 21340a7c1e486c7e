package interactionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiyalink/afiyalink-assistant/internal/store"
)

func newSQLiteLog(t *testing.T) *SQLiteLog {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteLog(db)
}

func TestSQLiteLogRoundTrip(t *testing.T) {
	log := newSQLiteLog(t)
	ctx := context.Background()

	rec := Record{
		RequestID:      "req_1_1",
		UserID:         "user-42",
		Query:          "severe chest pain",
		Response:       "call emergency services",
		RiskLevel:      "critical",
		EmergencyAlert: true,
		Intent:         "emergency",
		CreatedAt:      time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, log.Append(ctx, rec))

	got, err := log.ListByUser(ctx, "user-42", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestSQLiteLogOrderingAndRange(t *testing.T) {
	log := newSQLiteLog(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, Record{
			UserID:    "u",
			Query:     "q",
			Response:  "r",
			RiskLevel: "low",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, log.Append(ctx, Record{UserID: "other", Query: "q", Response: "r", RiskLevel: "low", CreatedAt: base.Add(48 * time.Hour)}))

	latest, err := log.ListByUser(ctx, "u", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, base.Add(2*time.Hour), latest[0].CreatedAt)

	day, err := log.ListBetween(ctx, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, day, 3)
	assert.Equal(t, base, day[0].CreatedAt)
}

func TestSQLiteLogStampsAndValidates(t *testing.T) {
	log := newSQLiteLog(t)
	ctx := context.Background()

	assert.Error(t, log.Append(ctx, Record{Query: "no user"}))

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, log.Append(ctx, Record{UserID: "u", Query: "q", Response: "r", RiskLevel: "low"}))
	got, err := log.ListByUser(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].CreatedAt.After(before))
}

func TestNopLog(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Nop{}.Append(ctx, Record{}))
	_, err := Nop{}.ListByUser(ctx, "u", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = Nop{}.ListBetween(ctx, time.Time{}, time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, maxListLimit, clampLimit(10_000))
}
