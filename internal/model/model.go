package model

import (
	"time"

	"github.com/curbz/routeplay/pkg/geometry"
)

// Position is a WGS84 coordinate in degrees.
type Position struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"lng"`
}

// Point converts p for the distance and heading helpers.
func (p Position) Point() geometry.Point {
	return geometry.Point{Lat: p.Lat, Long: p.Long}
}

// RoutePoint is one recorded fix of the vehicle. Never mutated after load.
type RoutePoint struct {
	Position  Position
	Timestamp time.Time
}

// Telemetry is the readout derived from the current and next route points.
type Telemetry struct {
	Index           int       `json:"index"`
	NextIndex       int       `json:"nextIndex"`
	Position        Position  `json:"position"`
	Next            Position  `json:"next"`
	Timestamp       time.Time `json:"timestamp"`
	Heading         float64   `json:"heading"`
	CompassRotation float64   `json:"compassRotation"`
	DistanceM       float64   `json:"distanceM"`
	ElapsedSecs     float64   `json:"elapsedSecs"`
	SpeedKmh        float64   `json:"speedKmh"`
}
