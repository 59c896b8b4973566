package main

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/internal/signal"
)

// readOnlyStore serves no rows and rejects every write.
type readOnlyStore struct{}

func (readOnlyStore) GetSignal(context.Context, string, model.SignalKind) (*model.CachedSignal, error) {
	return nil, nil
}

func (readOnlyStore) UpsertSignal(context.Context, *model.CachedSignal) error {
	return eris.New("disk full")
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds("all")
	require.NoError(t, err)
	assert.Equal(t, []model.SignalKind{model.SignalKindTraffic, model.SignalKindDemographic}, kinds)

	kinds, err = parseKinds("")
	require.NoError(t, err)
	assert.Len(t, kinds, 2)

	kinds, err = parseKinds("traffic")
	require.NoError(t, err)
	assert.Equal(t, []model.SignalKind{model.SignalKindTraffic}, kinds)

	_, err = parseKinds("weather")
	require.Error(t, err)
}

func TestGetSignal_FreshThenCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loc := model.Location{Key: "listing-1", Latitude: 19.4326, Longitude: -99.1332}

	first, err := getSignal(ctx, env.gateway, loc, model.SignalKindTraffic, false)
	require.NoError(t, err)
	assert.Equal(t, "listing-1", first.LocationKey)
	assert.Equal(t, model.SourceFresh, first.Source)
	require.NotNil(t, first.Traffic)
	assert.Equal(t, 75665, first.Traffic.EstimatedDailyTraffic)
	assert.Empty(t, first.CacheWrite)

	second, err := getSignal(ctx, env.gateway, loc, model.SignalKindTraffic, false)
	require.NoError(t, err)
	assert.Equal(t, model.SourceCache, second.Source)
	assert.Equal(t, int32(1), env.traffic.calls.Load())
}

func TestGetSignal_PersistenceFailureStillReturnsResult(t *testing.T) {
	env := newTestEnv(t)
	gw := signal.NewGateway(readOnlyStore{}, env.traffic, env.businesses)

	resp, err := getSignal(context.Background(), gw,
		model.Location{Key: "listing-1", Latitude: 19.4, Longitude: -99.1}, model.SignalKindDemographic, false)
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.CacheWrite)
	require.NotNil(t, resp.Demographic)
	assert.Equal(t, 2, resp.Demographic.NearbyBusinessCount)
}

func TestGetSignal_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	env.traffic.sample, env.traffic.err = nil, errUpstreamDown

	_, err := getSignal(context.Background(), env.gateway,
		model.Location{Key: "listing-1", Latitude: 19.4, Longitude: -99.1}, model.SignalKindTraffic, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, signal.ErrSignalUnavailable)
}
