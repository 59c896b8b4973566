package main

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/billboard-signals/internal/fetcher"
	"github.com/sells-group/billboard-signals/internal/signal"
	"github.com/sells-group/billboard-signals/internal/store"
	"github.com/sells-group/billboard-signals/pkg/denue"
	"github.com/sells-group/billboard-signals/pkg/tomtom"
)

// signalEnv holds the collaborators shared by commands that read or
// compute signals.
type signalEnv struct {
	Store   store.SignalStore
	Gateway *signal.Gateway
}

func (e *signalEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv validates config for mode and wires store, providers and gateway.
func initEnv(ctx context.Context, mode string) (*signalEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	traffic, businesses := initProviders()
	gw := signal.NewGateway(st, traffic, businesses,
		signal.WithStaleAfter(cfg.Signals.StaleAfter()),
	)
	return &signalEnv{Store: st, Gateway: gw}, nil
}

func initStore(ctx context.Context) (store.SignalStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		// Local files are created on first use.
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	case "redis":
		st, err := store.NewRedis(ctx, cfg.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initProviders() (signal.TrafficProvider, signal.BusinessProvider) {
	if cfg.TomTom.Key == "" {
		zap.L().Warn("tomtom key not set (SIGNALS_TOMTOM_KEY); traffic signals will be unavailable")
	}
	if cfg.DENUE.Token == "" {
		zap.L().Warn("denue token not set (SIGNALS_DENUE_TOKEN); demographic signals will be unavailable")
	}

	limits := fetcher.DefaultRateLimits()
	if h := hostOf(cfg.TomTom.BaseURL); h != "" {
		limits[h] = cfg.TomTom.RateLimit
	}
	if h := hostOf(cfg.DENUE.BaseURL); h != "" {
		limits[h] = cfg.DENUE.RateLimit
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetcher.UserAgent,
		Timeout:      time.Duration(cfg.Fetcher.TimeoutSecs) * time.Second,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		Retry:        cfg.Resilience.RetryConfig(),
		RateLimits:   limits,
	})

	tt := tomtom.NewClient(cfg.TomTom.Key,
		tomtom.WithBaseURL(cfg.TomTom.BaseURL),
		tomtom.WithZoom(cfg.TomTom.Zoom),
		tomtom.WithFetcher(f),
		tomtom.WithBreaker(cfg.Resilience.Breaker("tomtom")),
	)
	dn := denue.NewClient(cfg.DENUE.Token,
		denue.WithBaseURL(cfg.DENUE.BaseURL),
		denue.WithFetcher(f),
		denue.WithBreaker(cfg.Resilience.Breaker("denue")),
	)
	return &signal.TomTomTraffic{Client: tt}, &signal.DENUEBusinesses{Client: dn}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
