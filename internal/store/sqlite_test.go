package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/billboard-signals/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func countRows(t *testing.T, st *SQLiteStore, locationKey string) int {
	t.Helper()
	var n int
	require.NoError(t, st.db.QueryRow(
		`SELECT COUNT(*) FROM location_signals WHERE location_key = ?`, locationKey,
	).Scan(&n))
	return n
}

func TestSQLite_SignalStoreContract(t *testing.T) {
	testSignalStoreContract(t, newTestSQLiteStore(t))
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_UpsertNeverAccumulatesRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-9", model.SignalKindTraffic, i, at.Add(time.Duration(i)*time.Hour))))
	}
	assert.Equal(t, 1, countRows(t, st, "listing-9"))

	got, err := st.GetSignal(ctx, "listing-9", model.SignalKindTraffic)
	require.NoError(t, err)
	est, err := model.DecodePayload[model.TrafficEstimate](got)
	require.NoError(t, err)
	assert.Equal(t, 4, est.EstimatedDailyTraffic)
}

func TestSQLite_PreservesSubsecondComputedAt(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 3, 4, 5, 6, 789123456, time.UTC)

	require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-ns", model.SignalKindTraffic, 1, at)))
	got, err := st.GetSignal(ctx, "listing-ns", model.SignalKindTraffic)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.ComputedAt))
}

func TestSQLite_GetSignal_ClosedDB(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	_, err := st.GetSignal(context.Background(), "listing-1", model.SignalKindTraffic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: get signal")
}

func TestWithBusyTimeout(t *testing.T) {
	assert.Equal(t, "signals.db?_pragma=busy_timeout(5000)", withBusyTimeout("signals.db"))
	assert.Equal(t, "file:x.db?mode=rwc&_pragma=busy_timeout(5000)", withBusyTimeout("file:x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=busy_timeout(100)", withBusyTimeout("x.db?_pragma=busy_timeout(100)"))
}
