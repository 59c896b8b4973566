package signal

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/billboard-signals/internal/model"
)

var (
	// ErrInvalidInput is returned before any I/O for a malformed location or
	// unknown signal kind.
	ErrInvalidInput = eris.New("signal: invalid input")
	// ErrSignalUnavailable means the upstream provider could not supply a
	// raw signal. Nothing is written to the store.
	ErrSignalUnavailable = eris.New("signal: unavailable")
	// ErrPersistenceFailure means a fresh result was computed but could not
	// be stored. The result is still returned alongside the error.
	ErrPersistenceFailure = eris.New("signal: persistence failure")
)

// UnavailableError carries the provider failure behind ErrSignalUnavailable.
type UnavailableError struct {
	LocationKey string
	Kind        model.SignalKind
	Err         error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("signal: %s unavailable for %q: %v", e.Kind, e.LocationKey, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrSignalUnavailable, e.Err}
}

// PersistenceError carries the store failure behind ErrPersistenceFailure.
type PersistenceError struct {
	LocationKey string
	Kind        model.SignalKind
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("signal: store %s for %q: %v", e.Kind, e.LocationKey, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}
