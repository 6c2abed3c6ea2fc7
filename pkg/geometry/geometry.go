package geometry

import (
	"math"
	"time"
)

// EarthRadiusM is the mean Earth radius used for haversine distances.
const EarthRadiusM = 6371000.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat  float64
	Long float64
}

// --- Geometry Helpers ---

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// haversine returns the central angle between two points in radians.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	φ1, φ2 := toRadians(lat1), toRadians(lat2)

	Δφ := toRadians(lat2 - lat1)
	Δλ := toRadians(lon2 - lon1)

	// --- handle dateline crossing ---
	for Δλ > math.Pi {
		Δλ -= 2 * math.Pi
	}
	for Δλ < -math.Pi {
		Δλ += 2 * math.Pi
	}

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)

	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceMeters is the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	return EarthRadiusM * haversine(a.Lat, a.Long, b.Lat, b.Long)
}

// DistNM is the great-circle distance in nautical miles.
func DistNM(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 3440.06
	return R * haversine(lat1, lon1, lat2, lon2)
}

// Heading is the compass-needle angle in degrees from a towards b. It is a
// flat atan2 of the coordinate deltas (0 = north, 90 = east) with no
// latitude correction, so it is only suitable for display.
func Heading(a, b Point) float64 {
	dLat := b.Lat - a.Lat
	dLong := b.Long - a.Long
	if dLat == 0 && dLong == 0 {
		return 0
	}
	return toDegrees(math.Atan2(dLong, dLat))
}

// SpeedKmh converts a distance covered over dt into km/h. A zero dt yields 0.
func SpeedKmh(distanceM float64, dt time.Duration) float64 {
	secs := math.Abs(dt.Seconds())
	if secs == 0 {
		return 0
	}
	return distanceM / 1000 / (secs / 3600)
}
