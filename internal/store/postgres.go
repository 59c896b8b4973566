package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/billboard-signals/internal/db"
	"github.com/sells-group/billboard-signals/internal/model"
)

// PostgresStore implements SignalStore using pgxpool and PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS location_signals (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	location_key TEXT NOT NULL,
	kind         TEXT NOT NULL,
	version      TEXT NOT NULL,
	location     geometry(Point, 4326),
	payload      JSONB NOT NULL,
	computed_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (location_key, kind)
);

CREATE INDEX IF NOT EXISTS idx_location_signals_location ON location_signals USING GIST (location);
CREATE INDEX IF NOT EXISTS idx_location_signals_computed_at ON location_signals(computed_at);
`

// signalUpsert overwrites everything but the row id on conflict.
var signalUpsert = db.UpsertConfig{
	Table:        "location_signals",
	Columns:      []string{"id", "location_key", "kind", "version", "location", "payload", "computed_at"},
	ConflictKeys: []string{"location_key", "kind"},
	UpdateCols:   []string{"version", "location", "payload", "computed_at"},
	ValueExprs:   map[string]string{"location": "ST_GeomFromEWKB(%s)"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetSignal(ctx context.Context, locationKey string, kind model.SignalKind) (*model.CachedSignal, error) {
	var sig model.CachedSignal
	var kindStr string
	var payload []byte

	err := s.pool.QueryRow(ctx,
		`SELECT location_key, kind, version,
		        COALESCE(ST_Y(location), 0), COALESCE(ST_X(location), 0),
		        payload, computed_at
		 FROM location_signals
		 WHERE location_key = $1 AND kind = $2`,
		locationKey, string(kind),
	).Scan(&sig.LocationKey, &kindStr, &sig.Version, &sig.Latitude, &sig.Longitude, &payload, &sig.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get signal %s/%s", locationKey, kind)
	}
	sig.Kind = model.SignalKind(kindStr)
	sig.Payload = payload
	sig.ComputedAt = sig.ComputedAt.UTC()
	return &sig, nil
}

func (s *PostgresStore) UpsertSignal(ctx context.Context, sig *model.CachedSignal) error {
	if sig == nil {
		return eris.New("postgres: upsert nil signal")
	}
	point, err := pointEWKB(sig.Latitude, sig.Longitude)
	if err != nil {
		return err
	}
	query, err := db.BuildUpsert(signalUpsert)
	if err != nil {
		return eris.Wrap(err, "postgres: build signal upsert")
	}

	_, err = s.pool.Exec(ctx, query,
		uuid.New().String(), sig.LocationKey, string(sig.Kind), sig.Version,
		point, []byte(sig.Payload), sig.ComputedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert signal %s/%s", sig.LocationKey, sig.Kind)
}

func (s *PostgresStore) DeleteSignals(ctx context.Context, locationKey string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM location_signals WHERE location_key = $1`,
		locationKey,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete signals %s", locationKey)
	}
	return int(tag.RowsAffected()), nil
}
