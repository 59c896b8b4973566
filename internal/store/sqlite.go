package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/billboard-signals/internal/model"
)

// SQLiteStore implements SignalStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withBusyTimeout(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// withBusyTimeout adds busy_timeout as a DSN pragma so every pooled
// connection waits on a locked database instead of failing.
func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// computed_at is stored as unix nanoseconds so staleness checks never depend
// on driver time parsing.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS location_signals (
	id           TEXT PRIMARY KEY,
	location_key TEXT NOT NULL,
	kind         TEXT NOT NULL,
	version      TEXT NOT NULL,
	latitude     REAL NOT NULL DEFAULT 0,
	longitude    REAL NOT NULL DEFAULT 0,
	payload      TEXT NOT NULL,
	computed_at  INTEGER NOT NULL,
	UNIQUE (location_key, kind)
);

CREATE INDEX IF NOT EXISTS idx_location_signals_computed_at ON location_signals(computed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSignal(ctx context.Context, locationKey string, kind model.SignalKind) (*model.CachedSignal, error) {
	var sig model.CachedSignal
	var kindStr, payload string
	var computedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT location_key, kind, version, latitude, longitude, payload, computed_at
		 FROM location_signals WHERE location_key = ? AND kind = ?`,
		locationKey, string(kind),
	).Scan(&sig.LocationKey, &kindStr, &sig.Version, &sig.Latitude, &sig.Longitude, &payload, &computedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get signal %s/%s", locationKey, kind)
	}
	sig.Kind = model.SignalKind(kindStr)
	sig.Payload = []byte(payload)
	sig.ComputedAt = time.Unix(0, computedAt).UTC()
	return &sig, nil
}

func (s *SQLiteStore) UpsertSignal(ctx context.Context, sig *model.CachedSignal) error {
	if sig == nil {
		return eris.New("sqlite: upsert nil signal")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO location_signals (id, location_key, kind, version, latitude, longitude, payload, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (location_key, kind) DO UPDATE SET
			version = excluded.version,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			payload = excluded.payload,
			computed_at = excluded.computed_at`,
		uuid.New().String(), sig.LocationKey, string(sig.Kind), sig.Version,
		sig.Latitude, sig.Longitude, string(sig.Payload), sig.ComputedAt.UnixNano(),
	)
	return eris.Wrapf(err, "sqlite: upsert signal %s/%s", sig.LocationKey, sig.Kind)
}

func (s *SQLiteStore) DeleteSignals(ctx context.Context, locationKey string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM location_signals WHERE location_key = ?`,
		locationKey,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete signals %s", locationKey)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}
