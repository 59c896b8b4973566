// Package signal serves derived location signals through a get-or-compute
// cache: a stored estimate younger than the staleness window is returned as
// is, otherwise the raw signal is fetched, estimated, stored and returned.
package signal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/billboard-signals/internal/demographic"
	"github.com/sells-group/billboard-signals/internal/model"
	"github.com/sells-group/billboard-signals/internal/traffic"
)

// DefaultStaleAfter is how long a stored signal is served before recompute.
const DefaultStaleAfter = 7 * 24 * time.Hour

// Store is the persistence the gateway needs. store.SignalStore satisfies it.
type Store interface {
	GetSignal(ctx context.Context, locationKey string, kind model.SignalKind) (*model.CachedSignal, error)
	UpsertSignal(ctx context.Context, sig *model.CachedSignal) error
}

// Result is a derived signal and where it came from. Exactly one of Traffic
// and Demographic is set, matching Kind.
type Result struct {
	Kind        model.SignalKind          `json:"kind"`
	Source      model.Source              `json:"source"`
	ComputedAt  time.Time                 `json:"computed_at"`
	Traffic     *model.TrafficEstimate    `json:"traffic,omitempty"`
	Demographic *model.DemographicProfile `json:"demographic,omitempty"`
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithStaleAfter sets the staleness window. Non-positive values are ignored.
func WithStaleAfter(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.staleAfter = d
		}
	}
}

// Gateway is the get-or-compute front for both signal kinds. It holds no
// mutable state; concurrent misses for one key may both compute, and the
// last upsert wins.
type Gateway struct {
	store      Store
	traffic    TrafficProvider
	businesses BusinessProvider
	validate   *validator.Validate
	now        func() time.Time
	staleAfter time.Duration
}

// NewGateway wires a gateway. A nil provider makes its kind unavailable.
func NewGateway(st Store, tp TrafficProvider, bp BusinessProvider, opts ...Option) *Gateway {
	g := &Gateway{
		store:      st,
		traffic:    tp,
		businesses: bp,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// StaleAfter returns the configured staleness window.
func (g *Gateway) StaleAfter() time.Duration {
	return g.staleAfter
}

// GetOrCompute returns the kind signal for loc. Unless forceRefresh is set,
// a stored signal with the current version computed less than StaleAfter
// ago is returned with Source "cache".
//
// Errors: ErrInvalidInput before any I/O; *UnavailableError when the
// provider fails (nothing stored); *PersistenceError together with a
// non-nil fresh Result when only the store write failed.
func (g *Gateway) GetOrCompute(ctx context.Context, loc model.Location, kind model.SignalKind, forceRefresh bool) (*Result, error) {
	if err := g.ValidateLocation(loc); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, eris.Wrapf(ErrInvalidInput, "unknown signal kind %q", kind)
	}

	log := zap.L().With(zap.String("location_key", loc.Key), zap.String("kind", string(kind)))

	if !forceRefresh {
		if res := g.fromCache(ctx, loc.Key, kind, log); res != nil {
			log.Debug("signal: cache hit", zap.Time("computed_at", res.ComputedAt))
			return res, nil
		}
	}

	// Postgres keeps microseconds; truncate so fresh and cached results match.
	now := g.now().UTC().Truncate(time.Microsecond)
	res, payload, err := g.compute(ctx, loc, kind, now)
	if err != nil {
		log.Warn("signal: provider unavailable", zap.Error(err))
		return nil, &UnavailableError{LocationKey: loc.Key, Kind: kind, Err: err}
	}

	sig, err := model.NewCachedSignal(loc, kind, payload, now)
	if err == nil {
		err = g.store.UpsertSignal(ctx, sig)
	}
	if err != nil {
		log.Error("signal: cache write failed", zap.Error(err))
		return res, &PersistenceError{LocationKey: loc.Key, Kind: kind, Err: err}
	}

	log.Info("signal: computed", zap.String("source", string(res.Source)))
	return res, nil
}

// Traffic is GetOrCompute for the traffic kind.
func (g *Gateway) Traffic(ctx context.Context, loc model.Location, forceRefresh bool) (*model.TrafficEstimate, model.Source, error) {
	res, err := g.GetOrCompute(ctx, loc, model.SignalKindTraffic, forceRefresh)
	if res == nil {
		return nil, "", err
	}
	return res.Traffic, res.Source, err
}

// Demographics is GetOrCompute for the demographic kind.
func (g *Gateway) Demographics(ctx context.Context, loc model.Location, forceRefresh bool) (*model.DemographicProfile, model.Source, error) {
	res, err := g.GetOrCompute(ctx, loc, model.SignalKindDemographic, forceRefresh)
	if res == nil {
		return nil, "", err
	}
	return res.Demographic, res.Source, err
}

// ValidateLocation checks loc without touching the store or providers.
func (g *Gateway) ValidateLocation(loc model.Location) error {
	if strings.TrimSpace(loc.Key) == "" {
		return eris.Wrap(ErrInvalidInput, "location key is empty")
	}
	if err := g.validate.Struct(loc); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Field()+" "+fe.Tag()+" "+fe.Param())
			}
			return eris.Wrapf(ErrInvalidInput, "location %q: %s", loc.Key, strings.Join(fields, "; "))
		}
		return eris.Wrapf(ErrInvalidInput, "location %q: %v", loc.Key, err)
	}
	return nil
}

// fromCache returns a usable stored result or nil. Read and decode failures
// are logged and count as a miss.
func (g *Gateway) fromCache(ctx context.Context, key string, kind model.SignalKind, log *zap.Logger) *Result {
	sig, err := g.store.GetSignal(ctx, key, kind)
	if err != nil {
		log.Warn("signal: cache read failed, recomputing", zap.Error(err))
		return nil
	}
	if sig == nil {
		return nil
	}
	if sig.Version != model.VersionFor(kind) {
		log.Debug("signal: cached version outdated", zap.String("version", sig.Version))
		return nil
	}
	if g.now().Sub(sig.ComputedAt) >= g.staleAfter {
		log.Debug("signal: cached signal stale", zap.Time("computed_at", sig.ComputedAt))
		return nil
	}

	res := &Result{Kind: kind, Source: model.SourceCache, ComputedAt: sig.ComputedAt}
	switch kind {
	case model.SignalKindTraffic:
		est, err := model.DecodePayload[model.TrafficEstimate](sig)
		if err != nil {
			log.Warn("signal: undecodable cached payload", zap.Error(err))
			return nil
		}
		est.ComputedAt = sig.ComputedAt
		res.Traffic = est
	case model.SignalKindDemographic:
		prof, err := model.DecodePayload[model.DemographicProfile](sig)
		if err != nil {
			log.Warn("signal: undecodable cached payload", zap.Error(err))
			return nil
		}
		prof.ComputedAt = sig.ComputedAt
		res.Demographic = prof
	}
	return res
}

// compute fetches the raw signal and runs the estimator for kind.
func (g *Gateway) compute(ctx context.Context, loc model.Location, kind model.SignalKind, now time.Time) (*Result, any, error) {
	res := &Result{Kind: kind, Source: model.SourceFresh, ComputedAt: now}

	switch kind {
	case model.SignalKindTraffic:
		if g.traffic == nil {
			return nil, nil, eris.New("signal: no traffic provider configured")
		}
		sample, err := g.traffic.FlowSample(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return nil, nil, err
		}
		if sample == nil {
			return nil, nil, eris.New("signal: provider returned no traffic sample")
		}
		est := traffic.FromSample(*sample)
		est.ComputedAt = now
		res.Traffic = &est
		return res, est, nil

	case model.SignalKindDemographic:
		if g.businesses == nil {
			return nil, nil, eris.New("signal: no business provider configured")
		}
		records, err := g.businesses.Nearby(ctx, loc.Latitude, loc.Longitude, RegistryRadiusMeters)
		if err != nil {
			return nil, nil, err
		}
		prof := demographic.Classify(records)
		prof.ComputedAt = now
		res.Demographic = &prof
		return res, prof, nil
	}
	return nil, nil, eris.Errorf("signal: unknown kind %q", kind)
}
