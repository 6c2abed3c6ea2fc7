package route

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"github.com/curbz/routeplay/internal/model"
	"github.com/curbz/routeplay/pkg/geometry"
	"github.com/curbz/routeplay/pkg/util"
)

// ErrUnsorted is returned when fixture timestamps go backwards.
var ErrUnsorted = errors.New("route points are not sorted by timestamp")

// fixturePoint is one element of the bundled JSON route fixture.
type fixturePoint struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Timestamp string   `json:"timestamp" validate:"required"`
}

// Route is the immutable, time ordered sequence of recorded points.
type Route struct {
	points []model.RoutePoint
}

// New builds a route from already parsed points. The slice is copied.
func New(points []model.RoutePoint) (*Route, error) {
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			return nil, fmt.Errorf("point %d at %s precedes point %d at %s: %w",
				i, points[i].Timestamp.Format(time.RFC3339), i-1, points[i-1].Timestamp.Format(time.RFC3339), ErrUnsorted)
		}
	}
	cp := make([]model.RoutePoint, len(points))
	copy(cp, points)
	return &Route{points: cp}, nil
}

// Load reads a route fixture from disk.
func Load(path string) (*Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open route fixture: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("route fixture %s: %w", path, err)
	}
	log.Printf("route loaded from %s (%d points, %.2f km / %.2f nm)",
		path, r.Len(), r.TotalDistanceMeters()/1000, r.TotalDistanceNM())
	return r, nil
}

// Parse decodes a JSON array of {latitude, longitude, timestamp} objects.
func Parse(rd io.Reader) (*Route, error) {
	var raw []fixturePoint
	if err := json.NewDecoder(rd).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding route JSON: %w", err)
	}

	points := make([]model.RoutePoint, 0, len(raw))
	for i, fp := range raw {
		if err := util.Validate(&fp); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		ts, err := parseTimestamp(fp.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points = append(points, model.RoutePoint{
			Position:  model.Position{Lat: *fp.Latitude, Long: *fp.Longitude},
			Timestamp: ts,
		})
	}

	return New(points)
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q: %w", s, err)
	}
	return ts, nil
}

func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.points)
}

// Playable reports whether there is anything to animate.
func (r *Route) Playable() bool {
	return r.Len() >= 2
}

// Clamp forces i into [0, Len()-1]. An empty route clamps to 0.
func (r *Route) Clamp(i int) int {
	if i >= r.Len() {
		i = r.Len() - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// At returns the point at i, clamped to a valid index. ok is false for an empty route.
func (r *Route) At(i int) (model.RoutePoint, bool) {
	if r.Len() == 0 {
		return model.RoutePoint{}, false
	}
	return r.points[r.Clamp(i)], true
}

// Positions returns all coordinates in order.
func (r *Route) Positions() []model.Position {
	return r.Prefix(r.Len() - 1)
}

// Prefix returns the coordinates from the start through i inclusive.
func (r *Route) Prefix(i int) []model.Position {
	if r.Len() == 0 {
		return []model.Position{}
	}
	i = r.Clamp(i)
	out := make([]model.Position, 0, i+1)
	for _, p := range r.points[:i+1] {
		out = append(out, p.Position)
	}
	return out
}

func (r *Route) TotalDistanceMeters() float64 {
	var d float64
	for i := 1; i < r.Len(); i++ {
		d += geometry.DistanceMeters(r.points[i-1].Position.Point(), r.points[i].Position.Point())
	}
	return d
}

func (r *Route) TotalDistanceNM() float64 {
	var d float64
	for i := 1; i < r.Len(); i++ {
		a, b := r.points[i-1].Position, r.points[i].Position
		d += geometry.DistNM(a.Lat, a.Long, b.Lat, b.Long)
	}
	return d
}

// Duration is the time between the first and last fix.
func (r *Route) Duration() time.Duration {
	if r.Len() < 2 {
		return 0
	}
	return r.points[r.Len()-1].Timestamp.Sub(r.points[0].Timestamp)
}

// --- GeoJSON ---

func lineString(ps []model.Position) orb.LineString {
	ls := make(orb.LineString, 0, len(ps))
	for _, p := range ps {
		// GeoJSON is lon/lat
		ls = append(ls, orb.Point{p.Long, p.Lat})
	}
	return ls
}

// PathLine wraps already sliced coordinates as a GeoJSON LineString feature.
func PathLine(ps []model.Position) *geojson.Feature {
	f := geojson.NewFeature(lineString(ps))
	f.Properties["kind"] = "path"
	f.Properties["points"] = len(ps)
	return f
}

// PathFeature is the visited path through index i.
func (r *Route) PathFeature(i int) *geojson.Feature {
	return PathLine(r.Prefix(i))
}

// FeatureCollection is the whole route plus one point feature per fix carrying its timestamp.
func (r *Route) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := geojson.NewFeature(lineString(r.Positions()))
	line.Properties["kind"] = "route"
	line.Properties["points"] = r.Len()
	line.Properties["distanceM"] = r.TotalDistanceMeters()
	line.Properties["durationSecs"] = r.Duration().Seconds()
	fc.Append(line)

	for i, p := range r.points {
		pf := geojson.NewFeature(orb.Point{p.Position.Long, p.Position.Lat})
		pf.Properties["kind"] = "fix"
		pf.Properties["index"] = i
		pf.Properties["timestamp"] = p.Timestamp.Format(time.RFC3339)
		fc.Append(pf)
	}
	return fc
}
