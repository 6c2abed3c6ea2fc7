package playback

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/curbz/routeplay/internal/route"
	"github.com/curbz/routeplay/pkg/util"
)

var (
	// ErrNotPlayable is returned by controls when the route has fewer than two points.
	ErrNotPlayable = errors.New("route has fewer than two points")
	// ErrStopped is returned when the player loop is no longer running.
	ErrStopped = errors.New("player stopped")
)

// DefaultTickInterval is the fixed animation period.
const DefaultTickInterval = time.Second

// Renderer draws frames. Render is called from the player goroutine and must not block.
type Renderer interface {
	Render(f Frame)
}

// Options control the player beyond the fixed initial state.
type Options struct {
	TickInterval time.Duration
	// PauseAtBoundary stops playing when a non-looping tick cannot move.
	// When false the ticker keeps firing with the index pinned.
	PauseAtBoundary bool
	Autoplay        bool
	Clock           Clock
}

type config struct {
	Playback struct {
		TickIntervalMS  int  `yaml:"tick_interval_ms" validate:"gte=0"`
		PauseAtBoundary bool `yaml:"pause_at_boundary"`
		Autoplay        bool `yaml:"autoplay"`
	} `yaml:"playback"`
}

// LoadOptions reads the playback section of the configuration file.
func LoadOptions(cfgPath string) (Options, error) {
	cfg, err := util.LoadConfig[config](cfgPath)
	if err != nil {
		return Options{}, err
	}
	return Options{
		TickInterval:    time.Duration(cfg.Playback.TickIntervalMS) * time.Millisecond,
		PauseAtBoundary: cfg.Playback.PauseAtBoundary,
		Autoplay:        cfg.Playback.Autoplay,
	}, nil
}

type command struct {
	name  string
	apply func(State) (State, error)
	reply chan result
}

type result struct {
	frame Frame
	err   error
}

// Player owns the playback State. All mutation happens on the goroutine
// running Run; controls are serialised through a command channel.
type Player struct {
	route     *route.Route
	opts      Options
	renderers []Renderer
	cmds      chan command
	done      chan struct{}
	seq       uint64
}

func New(r *route.Route, opts Options, renderers ...Renderer) *Player {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	return &Player{
		route:     r,
		opts:      opts,
		renderers: renderers,
		cmds:      make(chan command),
		done:      make(chan struct{}),
	}
}

// Route is the route being replayed.
func (p *Player) Route() *route.Route {
	return p.route
}

// Run drives the animation until ctx is cancelled. It renders the initial
// frame before accepting controls.
func (p *Player) Run(ctx context.Context) {
	defer close(p.done)

	state := NewState()
	if p.opts.Autoplay {
		if p.route.Playable() {
			state.Playing = true
		} else {
			log.Warnf("autoplay requested but %v", ErrNotPlayable)
		}
	}

	var ticker Ticker
	var tickC <-chan time.Time
	syncTicker := func() {
		switch {
		case state.Playing && ticker == nil:
			ticker = p.opts.Clock.NewTicker(p.opts.TickInterval)
			tickC = ticker.C()
		case !state.Playing && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	syncTicker()
	frame := p.render(state)
	log.WithFields(log.Fields{"points": p.route.Len(), "playable": p.route.Playable()}).Info("playback started")

	for {
		select {
		case <-ctx.Done():
			log.Println("playback stopped")
			return

		case <-tickC:
			next := Tick(state, p.route.Len())
			if p.opts.PauseAtBoundary && AtBoundary(state, p.route.Len()) {
				next.Playing = false
				log.WithField("index", next.Index).Info("boundary reached, pausing")
			}
			if next != state {
				state = next
				syncTicker()
				frame = p.render(state)
			}

		case cmd := <-p.cmds:
			next, err := cmd.apply(state)
			if err == nil && next != state {
				state = next
				syncTicker()
				frame = p.render(state)
				log.WithFields(log.Fields{
					"control": cmd.name,
					"playing": state.Playing,
					"reverse": state.Reverse,
					"loop":    state.Loop,
				}).Debug("control applied")
			}
			cmd.reply <- result{frame: frame, err: err}
		}
	}
}

func (p *Player) render(s State) Frame {
	p.seq++
	f := BuildFrame(p.route, s)
	f.Seq = p.seq
	for _, r := range p.renderers {
		r.Render(f)
	}
	return f
}

func (p *Player) do(ctx context.Context, name string, apply func(State) (State, error)) (Frame, error) {
	cmd := command{name: name, apply: apply, reply: make(chan result, 1)}
	select {
	case p.cmds <- cmd:
	case <-p.done:
		return Frame{}, ErrStopped
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.frame, res.err
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (p *Player) control(ctx context.Context, name string, toggle func(State) State) (Frame, error) {
	return p.do(ctx, name, func(s State) (State, error) {
		if !p.route.Playable() {
			return s, ErrNotPlayable
		}
		return toggle(s), nil
	})
}

func (p *Player) TogglePlay(ctx context.Context) (Frame, error) {
	return p.control(ctx, "play", State.TogglePlay)
}

func (p *Player) ToggleLoop(ctx context.Context) (Frame, error) {
	return p.control(ctx, "loop", State.ToggleLoop)
}

func (p *Player) ToggleReverse(ctx context.Context) (Frame, error) {
	return p.control(ctx, "reverse", State.ToggleReverse)
}

// Snapshot returns the latest rendered frame without changing anything.
func (p *Player) Snapshot(ctx context.Context) (Frame, error) {
	return p.do(ctx, "snapshot", func(s State) (State, error) { return s, nil })
}

// Done is closed when Run returns.
func (p *Player) Done() <-chan struct{} {
	return p.done
}
