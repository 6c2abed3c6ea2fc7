package playback

import (
	"github.com/curbz/routeplay/internal/model"
	"github.com/curbz/routeplay/internal/route"
	"github.com/curbz/routeplay/pkg/geometry"
)

// Derive computes the readout for s. Nothing here is stored; it is
// recomputed on every render.
func Derive(r *route.Route, s State) model.Telemetry {
	cur, ok := r.At(s.Index)
	if !ok {
		return model.Telemetry{}
	}
	nextIdx := NextIndex(s, r.Len())
	next, _ := r.At(nextIdx)
	first, _ := r.At(0)

	heading := geometry.Heading(cur.Position.Point(), next.Position.Point())
	dist := geometry.DistanceMeters(cur.Position.Point(), next.Position.Point())

	return model.Telemetry{
		Index:           r.Clamp(s.Index),
		NextIndex:       nextIdx,
		Position:        cur.Position,
		Next:            next.Position,
		Timestamp:       cur.Timestamp,
		Heading:         heading,
		CompassRotation: heading + 90,
		DistanceM:       dist,
		ElapsedSecs:     cur.Timestamp.Sub(first.Timestamp).Seconds(),
		SpeedKmh:        geometry.SpeedKmh(dist, next.Timestamp.Sub(cur.Timestamp)),
	}
}

// Frame is everything a renderer needs to draw one state of the view.
// Marker and FlyTo are always coords[Index]; Path is coords[0..Index].
type Frame struct {
	Seq       uint64           `json:"seq"`
	State     State            `json:"state"`
	Length    int              `json:"length"`
	Playable  bool             `json:"playable"`
	Telemetry model.Telemetry  `json:"telemetry"`
	Path      []model.Position `json:"path"`
	Marker    *model.Position  `json:"marker,omitempty"`
	FlyTo     *model.Position  `json:"flyTo,omitempty"`
}

// BuildFrame derives the frame for s over r.
func BuildFrame(r *route.Route, s State) Frame {
	f := Frame{
		State:     s,
		Length:    r.Len(),
		Playable:  r.Playable(),
		Telemetry: Derive(r, s),
		Path:      r.Prefix(s.Index),
	}
	if cur, ok := r.At(s.Index); ok {
		marker := cur.Position
		flyTo := cur.Position
		f.Marker = &marker
		f.FlyTo = &flyTo
	}
	return f
}
