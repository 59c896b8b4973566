package model

import "time"

// RoadClass buckets a road segment by its free-flow speed.
type RoadClass string

const (
	RoadClassHighway RoadClass = "highway"
	RoadClassAvenue  RoadClass = "avenue"
	RoadClassUrban   RoadClass = "urban"
	RoadClassLocal   RoadClass = "local"
)

// TrafficSample is one reading from a traffic-flow provider.
type TrafficSample struct {
	CurrentSpeedKmh  float64 `json:"current_speed_kmh"`
	FreeFlowSpeedKmh float64 `json:"free_flow_speed_kmh"`
	Confidence       float64 `json:"confidence"`

	FunctionalRoadClass string `json:"functional_road_class,omitempty"` // provider FRC code, informational
	RoadClosure         bool   `json:"road_closure,omitempty"`
}

// TrafficEstimate is the derived daily-impressions metric for a location.
type TrafficEstimate struct {
	EstimatedDailyTraffic int       `json:"estimated_daily_traffic"`
	RoadClass             RoadClass `json:"road_class"`
	CongestionRatio       float64   `json:"congestion_ratio"` // 0 = standstill, 1 = free flow
	ConfidenceLevel       float64   `json:"confidence_level"` // floored at 0.4
	Multiplier            float64   `json:"multiplier"`       // dwell multiplier in [1, 3]
	ComputedAt            time.Time `json:"computed_at"`
}
