package mapview

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/curbz/routeplay/internal/playback"
	"github.com/curbz/routeplay/internal/route"
	"github.com/curbz/routeplay/pkg/apimodel"
	"github.com/curbz/routeplay/pkg/util"
)

//go:embed static
var staticFiles embed.FS

// ErrUnknownControl is returned for a control other than play, loop or reverse.
var ErrUnknownControl = errors.New("unknown control")

const controlTimeout = 5 * time.Second

// Controller is the subset of the player the view drives.
type Controller interface {
	TogglePlay(ctx context.Context) (playback.Frame, error)
	ToggleLoop(ctx context.Context) (playback.Frame, error)
	ToggleReverse(ctx context.Context) (playback.Frame, error)
	Snapshot(ctx context.Context) (playback.Frame, error)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Server struct {
	opts  Options
	hub   *Hub
	ctrl  Controller
	route *route.Route
}

func NewServer(opts Options, hub *Hub, ctrl Controller, r *route.Route) *Server {
	return &Server{opts: opts.withDefaults(), hub: hub, ctrl: ctrl, route: r}
}

// Handler builds the routed, logged and panic-safe HTTP handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.serveWS)

	accessLog := log.StandardLogger().WriterLevel(log.DebugLevel)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return handlers.LoggingHandler(accessLog, next)
	})
	api.HandleFunc("/route", s.getRoute).Methods(http.MethodGet)
	api.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	api.HandleFunc("/init", s.getInit).Methods(http.MethodGet)
	api.HandleFunc("/playback/{control}", s.postControl).Methods(http.MethodPost)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("FATAL: embedded assets missing: %v", err)
	}
	router.PathPrefix("/").Handler(http.FileServer(http.FS(static)))

	return handlers.RecoveryHandler(handlers.RecoveryLogger(log.StandardLogger()), handlers.PrintRecoveryStack(true))(router)
}

// Start starts the HTTP server and the hub broadcaster. The hub stops with ctx;
// the caller shuts the returned server down.
func (s *Server) Start(ctx context.Context) *http.Server {
	go s.hub.Run(ctx)

	srv := &http.Server{Addr: s.opts.Listen, Handler: s.Handler()}
	go func() {
		log.Printf("mapview: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: mapview ListenAndServe error: %v", err)
		}
	}()
	return srv
}

func (s *Server) mapInit(clientID string) apimodel.MapInit {
	mi := apimodel.MapInit{
		ClientID:        clientID,
		TileURL:         s.opts.TileURL,
		Attribution:     s.opts.Attribution,
		Zoom:            s.opts.Zoom,
		ScrollWheelZoom: s.opts.ScrollWheelZoom,
		FlyToSeconds:    s.opts.FlyToSeconds,
		PathColor:       s.opts.PathColor,
		MarkerIconURL:   s.opts.MarkerIconURL,
		MarkerIconSize:  s.opts.MarkerIconSize,
	}
	if p, ok := s.route.At(0); ok {
		mi.Center = [2]float64{p.Position.Lat, p.Position.Long}
	}
	return mi
}

func (s *Server) toggle(ctx context.Context, control string) (playback.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	switch control {
	case "play":
		return s.ctrl.TogglePlay(ctx)
	case "loop":
		return s.ctrl.ToggleLoop(ctx)
	case "reverse":
		return s.ctrl.ToggleReverse(ctx)
	}
	return playback.Frame{}, fmt.Errorf("%w: %q", ErrUnknownControl, control)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownControl):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrNotPlayable):
		return http.StatusConflict
	case errors.Is(err, playback.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("mapview: error writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeJSON(w, status, apimodel.ErrorPayload{Code: status, Message: err.Error()})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	writeJSON(w, http.StatusOK, health{Status: "Ok", Clients: s.hub.Clients()})
}

func (s *Server) getRoute(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(s.route.FeatureCollection()); err != nil {
		log.Printf("mapview: error writing route: %v", err)
	}
}

func (s *Server) getInit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.mapInit(""))
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), controlTimeout)
	defer cancel()

	f, err := s.ctrl.Snapshot(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.hub.View(f))
}

func (s *Server) postControl(w http.ResponseWriter, r *http.Request) {
	control := mux.Vars(r)["control"]
	f, err := s.toggle(r.Context(), control)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.hub.View(f))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mapview: websocket upgrade error: %v", err)
		return
	}

	// init is written before the client is registered, so it is always the
	// first message and never races the writer goroutine
	id := uuid.NewString()
	data, err := json.Marshal(s.mapInit(id))
	if err != nil {
		log.Printf("mapview: error encoding init: %v", err)
		conn.Close()
		return
	}
	if err := util.SendJSON(conn, apimodel.Envelope{Type: apimodel.TypeInit, Data: data}); err != nil {
		log.WithField("client", id).Printf("mapview: %v", err)
		conn.Close()
		return
	}

	c := s.hub.add(id, conn)
	defer s.hub.remove(c.id)

	if f, ok := s.hub.Latest(); ok {
		if msg, err := encode(apimodel.TypeFrame, s.hub.View(f)); err == nil {
			s.hub.sendTo(c, msg)
		}
	}

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithField("client", c.id).Debugf("mapview: read error: %v", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.handleMessage(r.Context(), c, raw)
	}
}

func (s *Server) handleMessage(ctx context.Context, c *client, raw []byte) {
	var env apimodel.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.WithField("client", c.id).Printf("mapview: invalid JSON: %v", err)
		return
	}

	switch env.Type {
	case apimodel.TypeToggle:
		var req apimodel.ToggleRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			s.reply(c, apimodel.TypeError, apimodel.ErrorPayload{Code: http.StatusBadRequest, Message: err.Error()})
			return
		}
		if _, err := s.toggle(ctx, req.Control); err != nil {
			s.reply(c, apimodel.TypeError, apimodel.ErrorPayload{Code: statusFor(err), Message: err.Error()})
			return
		}
		s.reply(c, apimodel.TypeResult, apimodel.Result{Control: req.Control, Success: true})
	default:
		log.WithField("client", c.id).Printf("mapview: received unknown ws type=%q", env.Type)
	}
}

func (s *Server) reply(c *client, msgType string, payload any) {
	msg, err := encode(msgType, payload)
	if err != nil {
		log.Printf("mapview: error encoding %s: %v", msgType, err)
		return
	}
	s.hub.sendTo(c, msg)
}
