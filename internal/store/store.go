// Package store persists computed location signals.
package store

import (
	"context"

	"github.com/sells-group/billboard-signals/internal/model"
)

// SignalStore is the cache store behind the signal gateway. Implementations
// keep at most one row per (location key, kind): UpsertSignal overwrites in
// place and never accumulates history.
type SignalStore interface {
	// GetSignal returns the stored signal, or nil and no error when absent.
	GetSignal(ctx context.Context, locationKey string, kind model.SignalKind) (*model.CachedSignal, error)

	// UpsertSignal inserts or overwrites the row for (sig.LocationKey, sig.Kind).
	UpsertSignal(ctx context.Context, sig *model.CachedSignal) error

	// DeleteSignals removes every signal for a location and returns how many
	// rows were removed. The gateway never calls it; listing owners do.
	DeleteSignals(ctx context.Context, locationKey string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
