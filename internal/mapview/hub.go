package mapview

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mohae/deepcopy"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"github.com/curbz/routeplay/internal/dashboard"
	"github.com/curbz/routeplay/internal/model"
	"github.com/curbz/routeplay/internal/playback"
	"github.com/curbz/routeplay/internal/route"
	"github.com/curbz/routeplay/pkg/apimodel"
)

const writeWait = 5 * time.Second

// ViewFrame is a playback frame as the map page consumes it.
type ViewFrame struct {
	Seq       uint64            `json:"seq"`
	State     playback.State    `json:"state"`
	Length    int               `json:"length"`
	Playable  bool              `json:"playable"`
	Telemetry model.Telemetry   `json:"telemetry"`
	Readout   dashboard.Readout `json:"readout"`
	Path      *geojson.Feature  `json:"path"`
	Marker    *model.Position   `json:"marker,omitempty"`
	FlyTo     *model.Position   `json:"flyTo,omitempty"`
}

func toView(f playback.Frame, fm *dashboard.Formatter) ViewFrame {
	return ViewFrame{
		Seq:       f.Seq,
		State:     f.State,
		Length:    f.Length,
		Playable:  f.Playable,
		Telemetry: f.Telemetry,
		Readout:   fm.Format(f),
		Path:      route.PathLine(f.Path),
		Marker:    f.Marker,
		FlyTo:     f.FlyTo,
	}
}

func encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(apimodel.Envelope{Type: msgType, Data: data})
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans rendered frames out to every connected map page.
// It implements playback.Renderer.
type Hub struct {
	formatter *dashboard.Formatter
	queueSize int

	mu      sync.RWMutex
	clients map[string]*client
	latest  *playback.Frame

	frames chan playback.Frame
}

func NewHub(fm *dashboard.Formatter, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultClientQueue
	}
	return &Hub{
		formatter: fm,
		queueSize: queueSize,
		clients:   make(map[string]*client),
		frames:    make(chan playback.Frame, queueSize),
	}
}

// Render snapshots the frame and queues it for broadcast. It never blocks.
// When the queue is full the oldest queued frame is discarded, so the newest
// state always reaches the pages. Render has a single caller, the player.
func (h *Hub) Render(f playback.Frame) {
	snap := deepcopy.Copy(f).(playback.Frame)

	h.mu.Lock()
	h.latest = &snap
	h.mu.Unlock()

	for {
		select {
		case h.frames <- snap:
			return
		default:
		}
		select {
		case old := <-h.frames:
			log.WithField("seq", old.Seq).Debug("mapview: frame queue full, superseded frame discarded")
		default:
		}
	}
}

// Latest is the most recently rendered frame.
func (h *Hub) Latest() (playback.Frame, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return playback.Frame{}, false
	}
	return *h.latest, true
}

func (h *Hub) View(f playback.Frame) ViewFrame {
	return toView(f, h.formatter)
}

// Run broadcasts queued frames until ctx is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case f := <-h.frames:
			msg, err := encode(apimodel.TypeFrame, h.View(f))
			if err != nil {
				log.Printf("mapview: error encoding frame %d: %v", f.Seq, err)
				continue
			}
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	var slow []string
	h.mu.RLock()
	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		log.WithField("client", id).Warn("mapview: client too slow, disconnecting")
		h.remove(id)
	}
}

// add registers a connection and starts its writer.
func (h *Hub) add(id string, conn *websocket.Conn) *client {
	c := &client{id: id, conn: conn, send: make(chan []byte, h.queueSize)}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	log.WithFields(log.Fields{"client": c.id, "clients": n}).Info("mapview: client connected")
	go c.writePump()
	return c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.WithFields(log.Fields{"client": id, "clients": n}).Info("mapview: client disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.remove(id)
	}
}

// sendTo queues msg for one client if it is still connected.
func (h *Hub) sendTo(c *client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Clients is the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.WithField("client", c.id).Debugf("mapview: write error: %v", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
