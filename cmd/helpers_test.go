package main

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/internal/signal"
	"github.com/sells-group/billboard-signals/internal/store"
)

type stubTraffic struct {
	sample *model.TrafficSample
	err    error
	calls  atomic.Int32
}

func (s *stubTraffic) FlowSample(_ context.Context, _, _ float64) (*model.TrafficSample, error) {
	s.calls.Add(1)
	return s.sample, s.err
}

type stubBusinesses struct {
	records []model.BusinessRecord
	err     error
	calls   atomic.Int32
}

func (s *stubBusinesses) Nearby(_ context.Context, _, _ float64, _ int) ([]model.BusinessRecord, error) {
	s.calls.Add(1)
	return s.records, s.err
}

type testEnv struct {
	store      *store.SQLiteStore
	gateway    *signal.Gateway
	traffic    *stubTraffic
	businesses *stubBusinesses
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "signals.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	tp := &stubTraffic{sample: &model.TrafficSample{CurrentSpeedKmh: 12, FreeFlowSpeedKmh: 110, Confidence: 0.85}}
	bp := &stubBusinesses{records: []model.BusinessRecord{
		{Name: "BANCO DEL CENTRO", SectorCode: "522110", EmployeeRangeLabel: "101 a 250 personas"},
		{Name: "OXXO REFORMA", SectorCode: "462112", EmployeeRangeLabel: "0 a 5 personas"},
	}}
	return &testEnv{
		store:      st,
		gateway:    signal.NewGateway(st, tp, bp),
		traffic:    tp,
		businesses: bp,
	}
}

var errUpstreamDown = eris.New("upstream down")
