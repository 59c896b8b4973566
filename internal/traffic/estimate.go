// Package traffic estimates daily billboard impressions from a road
// traffic-flow sample.
package traffic

import (
	"math"

	"github.com/sells-group/billboard-signals/internal/model"
)

// Free-flow speed thresholds (km/h) for road classification.
const (
	highwayThresholdKmh = 80.0 // > 80
	avenueThresholdKmh  = 50.0 // 50 - 80
	urbanThresholdKmh   = 30.0 // 30 - 50
)

// Base hourly vehicle volume by road class.
var baseHourlyVolume = map[model.RoadClass]float64{
	model.RoadClassHighway: 2000,
	model.RoadClassAvenue:  1500,
	model.RoadClassUrban:   1000,
	model.RoadClassLocal:   1000,
}

const (
	// ConfidenceFloor is the minimum effective provider confidence.
	ConfidenceFloor = 0.4

	// effectiveHours is the number of daylight hours a billboard is seen.
	effectiveHours = 16.0

	// maxDwellBoost is how far the multiplier rises above 1 at a standstill.
	maxDwellBoost = 2.0
)

// ClassifyRoad returns the road class for a free-flow speed.
// Rules:
//   - highway: > 80 km/h
//   - avenue:  50 - 80 km/h
//   - urban:   30 - 50 km/h (exclusive of 50)
//   - local:   < 30 km/h
func ClassifyRoad(freeFlowSpeedKmh float64) model.RoadClass {
	switch {
	case freeFlowSpeedKmh > highwayThresholdKmh:
		return model.RoadClassHighway
	case freeFlowSpeedKmh >= avenueThresholdKmh:
		return model.RoadClassAvenue
	case freeFlowSpeedKmh >= urbanThresholdKmh:
		return model.RoadClassUrban
	default:
		return model.RoadClassLocal
	}
}

// CongestionRatio returns current speed over free-flow speed, clamped to
// [0, 1]. Free-flow speeds below 1 km/h are treated as 1.
func CongestionRatio(currentSpeedKmh, freeFlowSpeedKmh float64) float64 {
	cur := nonNegative(currentSpeedKmh)
	ff := math.Max(nonNegative(freeFlowSpeedKmh), 1)
	return clamp(cur/ff, 0, 1)
}

// Multiplier converts a congestion ratio into a dwell-time multiplier in
// [1, 3]. It is linear and strictly decreasing so small speed noise never
// produces a jump in the estimate.
func Multiplier(ratio float64) float64 {
	return 1 + maxDwellBoost*(1-clamp(ratio, 0, 1))
}

// EffectiveConfidence floors provider confidence at ConfidenceFloor and caps
// it at 1. NaN is treated as the floor.
func EffectiveConfidence(confidence float64) float64 {
	if math.IsNaN(confidence) {
		return ConfidenceFloor
	}
	return clamp(confidence, ConfidenceFloor, 1)
}

// Estimate converts a traffic-flow reading into estimated daily impressions.
// It is total: any speed (including zero, negative, NaN) and any confidence
// yields a finite, non-negative result.
//
// For a fixed free-flow speed the result never increases as current speed
// rises. The only discontinuities are at road-class thresholds, where the
// base hourly volume steps between 2000, 1500 and 1000.
//
// ComputedAt is left zero; callers stamp it.
func Estimate(currentSpeedKmh, freeFlowSpeedKmh, confidence float64) model.TrafficEstimate {
	conf := EffectiveConfidence(confidence)
	class := ClassifyRoad(nonNegative(freeFlowSpeedKmh))
	ratio := CongestionRatio(currentSpeedKmh, freeFlowSpeedKmh)
	mult := Multiplier(ratio)

	daily := math.Round(baseHourlyVolume[class] * effectiveHours * mult * conf)
	if daily < 0 || math.IsNaN(daily) {
		daily = 0
	}

	return model.TrafficEstimate{
		EstimatedDailyTraffic: int(daily),
		RoadClass:             class,
		CongestionRatio:       ratio,
		ConfidenceLevel:       conf,
		Multiplier:            mult,
	}
}

// FromSample is Estimate applied to a provider sample.
func FromSample(s model.TrafficSample) model.TrafficEstimate {
	return Estimate(s.CurrentSpeedKmh, s.FreeFlowSpeedKmh, s.Confidence)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// clamp bounds v to [lo, hi]; NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
