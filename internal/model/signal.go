// Package model defines the domain types shared across signal estimation,
// caching and transport.
package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SignalKind identifies which derived metric a cached signal holds.
type SignalKind string

const (
	SignalKindTraffic     SignalKind = "traffic"
	SignalKindDemographic SignalKind = "demographic"
)

// Valid reports whether k is a known signal kind.
func (k SignalKind) Valid() bool {
	return k == SignalKindTraffic || k == SignalKindDemographic
}

// ParseSignalKind converts user input into a SignalKind.
func ParseSignalKind(s string) (SignalKind, error) {
	k := SignalKind(s)
	if !k.Valid() {
		return "", eris.Errorf("model: unknown signal kind %q", s)
	}
	return k, nil
}

// Source tags where a returned signal came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceFresh Source = "fresh"
)

// Payload versions. A cached row whose version differs from the current one
// is recomputed on next read. The demographic version embeds the registry
// search radius because changing the radius changes classifier output.
const (
	TrafficVersion     = "traffic-v1"
	DemographicVersion = "demographic-v1-r500"
)

// VersionFor returns the current payload version for kind.
func VersionFor(kind SignalKind) string {
	switch kind {
	case SignalKindTraffic:
		return TrafficVersion
	case SignalKindDemographic:
		return DemographicVersion
	default:
		return ""
	}
}

// Location is the stable identity of a billboard site plus the coordinates
// used to query upstream signal providers.
type Location struct {
	Key       string  `json:"key" yaml:"key" validate:"required,max=128"`
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
}

// CachedSignal is one persisted estimate. Stores keep at most one row per
// (LocationKey, Kind); writes overwrite in place.
type CachedSignal struct {
	LocationKey string          `json:"location_key"`
	Kind        SignalKind      `json:"kind"`
	Version     string          `json:"version"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	Payload     json.RawMessage `json:"payload"`
	ComputedAt  time.Time       `json:"computed_at"`
}

// NewCachedSignal encodes payload into a CachedSignal for loc.
func NewCachedSignal(loc Location, kind SignalKind, payload any, computedAt time.Time) (*CachedSignal, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "model: encode %s payload", kind)
	}
	return &CachedSignal{
		LocationKey: loc.Key,
		Kind:        kind,
		Version:     VersionFor(kind),
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Payload:     data,
		ComputedAt:  computedAt,
	}, nil
}

// DecodePayload decodes the payload of sig into a T.
func DecodePayload[T any](sig *CachedSignal) (*T, error) {
	if sig == nil || len(sig.Payload) == 0 {
		return nil, eris.New("model: empty payload")
	}
	var out T
	if err := json.Unmarshal(sig.Payload, &out); err != nil {
		return nil, eris.Wrapf(err, "model: decode %s payload", sig.Kind)
	}
	return &out, nil
}
