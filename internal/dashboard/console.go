package dashboard

import (
	log "github.com/sirupsen/logrus"

	"github.com/curbz/routeplay/internal/playback"
)

// Console is a headless renderer that writes one log entry per frame.
type Console struct {
	formatter *Formatter
	logger    *log.Logger
	level     log.Level
}

// NewConsole logs frames at level on the standard logger.
func NewConsole(f *Formatter, level log.Level) *Console {
	return &Console{formatter: f, logger: log.StandardLogger(), level: level}
}

func controls(s playback.State) string {
	play := "⏸"
	if s.Playing {
		play = "▶"
	}
	dir := "fwd"
	if s.Reverse {
		dir = "rev"
	}
	loop := "once"
	if s.Loop {
		loop = "loop"
	}
	return play + " " + dir + " " + loop
}

func (c *Console) Render(fr playback.Frame) {
	if !c.logger.IsLevelEnabled(c.level) {
		return
	}
	if !fr.Playable {
		c.logger.WithField("points", fr.Length).Warn("route has fewer than two points, playback disabled")
	}
	rd := c.formatter.Format(fr)
	entry := c.logger.WithFields(log.Fields{
		"seq":      fr.Seq,
		"controls": controls(fr.State),
		"point":    rd.Progress,
		"lat":      rd.Lat,
		"lng":      rd.Lng,
		"time":     rd.Time,
		"speed":    rd.Speed + " km/h",
		"heading":  rd.Heading,
	})
	entry.Log(c.level, "frame")
}
