package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/billboard-signals/internal/model"
)

// testSignal builds a cached signal with a small JSON payload.
func testSignal(t *testing.T, key string, kind model.SignalKind, daily int, at time.Time) *model.CachedSignal {
	t.Helper()
	loc := model.Location{Key: key, Latitude: 20.6736, Longitude: -103.344}
	sig, err := model.NewCachedSignal(loc, kind, model.TrafficEstimate{EstimatedDailyTraffic: daily}, at)
	require.NoError(t, err)
	return sig
}

// testSignalStoreContract exercises the behaviour every SignalStore shares.
func testSignalStoreContract(t *testing.T, st SignalStore) {
	ctx := context.Background()
	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(8 * 24 * time.Hour)

	t.Run("missing returns nil", func(t *testing.T) {
		sig, err := st.GetSignal(ctx, "nope", model.SignalKindTraffic)
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("upsert then get", func(t *testing.T) {
		require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-1", model.SignalKindTraffic, 1000, first)))

		got, err := st.GetSignal(ctx, "listing-1", model.SignalKindTraffic)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "listing-1", got.LocationKey)
		assert.Equal(t, model.SignalKindTraffic, got.Kind)
		assert.Equal(t, model.TrafficVersion, got.Version)
		assert.InDelta(t, 20.6736, got.Latitude, 1e-9)
		assert.InDelta(t, -103.344, got.Longitude, 1e-9)
		assert.True(t, first.Equal(got.ComputedAt), "computed_at %v", got.ComputedAt)

		est, err := model.DecodePayload[model.TrafficEstimate](got)
		require.NoError(t, err)
		assert.Equal(t, 1000, est.EstimatedDailyTraffic)
	})

	t.Run("upsert overwrites in place", func(t *testing.T) {
		require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-1", model.SignalKindTraffic, 2000, second)))
		require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-1", model.SignalKindTraffic, 2000, second)))

		got, err := st.GetSignal(ctx, "listing-1", model.SignalKindTraffic)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, second.Equal(got.ComputedAt))

		est, err := model.DecodePayload[model.TrafficEstimate](got)
		require.NoError(t, err)
		assert.Equal(t, 2000, est.EstimatedDailyTraffic)
	})

	t.Run("kinds are independent", func(t *testing.T) {
		require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-1", model.SignalKindDemographic, 7, first)))

		traffic, err := st.GetSignal(ctx, "listing-1", model.SignalKindTraffic)
		require.NoError(t, err)
		demo, err := st.GetSignal(ctx, "listing-1", model.SignalKindDemographic)
		require.NoError(t, err)
		require.NotNil(t, traffic)
		require.NotNil(t, demo)
		assert.Equal(t, model.DemographicVersion, demo.Version)
		assert.True(t, second.Equal(traffic.ComputedAt))
		assert.True(t, first.Equal(demo.ComputedAt))
	})

	t.Run("delete removes every kind for the location only", func(t *testing.T) {
		require.NoError(t, st.UpsertSignal(ctx, testSignal(t, "listing-2", model.SignalKindTraffic, 5, first)))

		n, err := st.DeleteSignals(ctx, "listing-1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		gone, err := st.GetSignal(ctx, "listing-1", model.SignalKindTraffic)
		require.NoError(t, err)
		assert.Nil(t, gone)

		kept, err := st.GetSignal(ctx, "listing-2", model.SignalKindTraffic)
		require.NoError(t, err)
		assert.NotNil(t, kept)

		n, err = st.DeleteSignals(ctx, "listing-1")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("nil signal rejected", func(t *testing.T) {
		assert.Error(t, st.UpsertSignal(ctx, nil))
	})
}
