package mapview

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/curbz/routeplay/internal/dashboard"
	"github.com/curbz/routeplay/internal/model"
	"github.com/curbz/routeplay/internal/playback"
	"github.com/curbz/routeplay/internal/route"
	"github.com/curbz/routeplay/pkg/apimodel"
)

// idleClock hands out tickers that never fire, so frames only change on controls.
type idleClock struct{}

func (idleClock) NewTicker(time.Duration) playback.Ticker { return idleTicker{} }

type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func testRoute(t *testing.T, n int) *route.Route {
	t.Helper()
	t0 := time.Date(2025, 5, 14, 8, 30, 0, 0, time.UTC)
	pts := make([]model.RoutePoint, n)
	for i := range pts {
		pts[i] = model.RoutePoint{
			Position:  model.Position{Lat: 25.2 + float64(i)*0.001, Long: 55.27},
			Timestamp: t0.Add(time.Duration(i) * 5 * time.Second),
		}
	}
	r, err := route.New(pts)
	if err != nil {
		t.Fatalf("route.New: %v", err)
	}
	return r
}

type harness struct {
	ts     *httptest.Server
	hub    *Hub
	player *playback.Player
}

func startView(t *testing.T, r *route.Route) *harness {
	t.Helper()
	fm, err := dashboard.NewFormatter(dashboard.Options{TimeZone: "UTC"})
	if err != nil {
		t.Fatalf("NewFormatter: %v", err)
	}
	hub := NewHub(fm, 8)
	p := playback.New(r, playback.Options{Clock: idleClock{}}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	go hub.Run(ctx)

	// the initial frame has been rendered once a snapshot is answered
	if _, err := p.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	ts := httptest.NewServer(NewServer(Options{}, hub, p, r).Handler())
	t.Cleanup(func() {
		cancel()
		<-p.Done()
		ts.Close()
	})
	return &harness{ts: ts, hub: hub, player: p}
}

func (h *harness) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, body
}

func TestHealthz(t *testing.T) {
	h := startView(t, testRoute(t, 3))
	resp, body := h.do(t, http.MethodGet, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "Ok" {
		t.Errorf("status = %q", got.Status)
	}
}

func TestGetRoute(t *testing.T) {
	h := startView(t, testRoute(t, 4))
	resp, body := h.do(t, http.MethodGet, "/api/route")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type = %q", ct)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fc.Features) != 5 {
		t.Fatalf("features = %d; want route line plus 4 fixes", len(fc.Features))
	}
	ls, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok || len(ls) != 4 {
		t.Fatalf("first feature = %#v", fc.Features[0].Geometry)
	}
	// lon/lat order
	if ls[0][0] != 55.27 || ls[0][1] != 25.2 {
		t.Errorf("first coordinate = %v", ls[0])
	}
}

func TestGetInitDefaults(t *testing.T) {
	h := startView(t, testRoute(t, 2))
	_, body := h.do(t, http.MethodGet, "/api/init")
	var mi apimodel.MapInit
	if err := json.Unmarshal(body, &mi); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if mi.Zoom != DefaultZoom || mi.FlyToSeconds != DefaultFlyToSeconds || mi.PathColor != DefaultPathColor {
		t.Errorf("init = %+v", mi)
	}
	if mi.TileURL != DefaultTileURL || mi.Attribution == "" {
		t.Errorf("tile layer = %q / %q", mi.TileURL, mi.Attribution)
	}
	if mi.Center != [2]float64{25.2, 55.27} {
		t.Errorf("center = %v", mi.Center)
	}
}

func TestPostControl(t *testing.T) {
	h := startView(t, testRoute(t, 3))

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/api/playback/play", http.StatusOK},
		{http.MethodPost, "/api/playback/loop", http.StatusOK},
		{http.MethodPost, "/api/playback/reverse", http.StatusOK},
		{http.MethodPost, "/api/playback/jump", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, _ := h.do(t, tt.method, tt.path)
		if resp.StatusCode != tt.status {
			t.Errorf("%s %s = %d; want %d", tt.method, tt.path, resp.StatusCode, tt.status)
		}
	}

	_, body := h.do(t, http.MethodGet, "/api/state")
	var vf struct {
		State    playback.State `json:"state"`
		Playable bool           `json:"playable"`
	}
	if err := json.Unmarshal(body, &vf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := playback.State{Index: 0, Playing: true, Reverse: true, Loop: true}
	if vf.State != want || !vf.Playable {
		t.Errorf("state = %+v playable=%v; want %+v", vf.State, vf.Playable, want)
	}
}

func TestPostControlNotPlayable(t *testing.T) {
	for _, n := range []int{0, 1} {
		h := startView(t, testRoute(t, n))
		for _, c := range []string{"play", "loop", "reverse"} {
			resp, body := h.do(t, http.MethodPost, "/api/playback/"+c)
			if resp.StatusCode != http.StatusConflict {
				t.Errorf("%d points, %s = %d; want 409", n, c, resp.StatusCode)
			}
			var e apimodel.ErrorPayload
			if err := json.Unmarshal(body, &e); err != nil || e.Code != http.StatusConflict {
				t.Errorf("error body = %s", body)
			}
		}
	}
}

func TestStaticPage(t *testing.T) {
	h := startView(t, testRoute(t, 2))
	for _, p := range []string{"/", "/app.js", "/car.svg"} {
		resp, body := h.do(t, http.MethodGet, p)
		if resp.StatusCode != http.StatusOK || len(body) == 0 {
			t.Errorf("GET %s = %d (%d bytes)", p, resp.StatusCode, len(body))
		}
	}
	_, body := h.do(t, http.MethodGet, "/")
	if !bytes.Contains(body, []byte("leaflet")) {
		t.Error("index page does not load leaflet")
	}
}

func dial(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) apimodel.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env apimodel.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebsocketSession(t *testing.T) {
	h := startView(t, testRoute(t, 3))
	conn := dial(t, h)

	env := readEnvelope(t, conn)
	if env.Type != apimodel.TypeInit {
		t.Fatalf("first message = %q; want init", env.Type)
	}
	var mi apimodel.MapInit
	if err := json.Unmarshal(env.Data, &mi); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if mi.ClientID == "" || mi.Zoom != DefaultZoom {
		t.Errorf("init = %+v", mi)
	}

	env = readEnvelope(t, conn)
	if env.Type != apimodel.TypeFrame {
		t.Fatalf("second message = %q; want frame", env.Type)
	}
	var vf ViewFrame
	if err := json.Unmarshal(env.Data, &vf); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if vf.State.Playing || vf.Marker == nil || vf.Readout.Progress != "1/3" {
		t.Errorf("initial frame = %+v", vf)
	}
	if ls, ok := vf.Path.Geometry.(orb.LineString); !ok || len(ls) != 1 {
		t.Errorf("initial path = %#v", vf.Path.Geometry)
	}

	toggle := func(control string) {
		data, _ := json.Marshal(apimodel.ToggleRequest{Control: control})
		if err := conn.WriteJSON(apimodel.Envelope{Type: apimodel.TypeToggle, Data: data}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// the reply and the broadcast frame may arrive in either order
	toggle("play")
	var gotResult, gotPlaying bool
	for !(gotResult && gotPlaying) {
		env := readEnvelope(t, conn)
		switch env.Type {
		case apimodel.TypeResult:
			var res apimodel.Result
			json.Unmarshal(env.Data, &res)
			if res.Control != "play" || !res.Success {
				t.Fatalf("result = %+v", res)
			}
			gotResult = true
		case apimodel.TypeFrame:
			var f ViewFrame
			json.Unmarshal(env.Data, &f)
			if f.State.Playing {
				gotPlaying = true
			}
		default:
			t.Fatalf("unexpected %q", env.Type)
		}
	}

	toggle("jump")
	for {
		env := readEnvelope(t, conn)
		if env.Type == apimodel.TypeFrame {
			continue
		}
		if env.Type != apimodel.TypeError {
			t.Fatalf("reply = %q; want error", env.Type)
		}
		var e apimodel.ErrorPayload
		json.Unmarshal(env.Data, &e)
		if e.Code != http.StatusBadRequest {
			t.Errorf("error = %+v", e)
		}
		break
	}

	if h.hub.Clients() != 1 {
		t.Errorf("clients = %d", h.hub.Clients())
	}
}

func TestHubRenderDoesNotBlock(t *testing.T) {
	fm, _ := dashboard.NewFormatter(dashboard.Options{TimeZone: "UTC"})
	hub := NewHub(fm, 1)
	r := testRoute(t, 3)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			f := playback.BuildFrame(r, playback.State{Index: i})
			f.Seq = uint64(i + 1)
			hub.Render(f)
			// mutating after Render must not leak into the stored copy
			f.Path[0].Lat = 0
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Render blocked with nobody draining the queue")
	}

	f, ok := hub.Latest()
	if !ok || f.Seq != 3 {
		t.Fatalf("latest = %+v, %v", f, ok)
	}
	// a full queue keeps the newest frame, not the first one
	select {
	case q := <-hub.frames:
		if q.Seq != 3 {
			t.Errorf("queued frame seq = %d; want 3", q.Seq)
		}
	default:
		t.Error("no frame queued for broadcast")
	}
	if f.Path[0].Lat != 25.2 {
		t.Errorf("stored frame shares the path slice: %v", f.Path[0])
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	os.WriteFile(good, []byte(`
mapview:
  listen: "127.0.0.1:9090"
  zoom: 14
  path_color: "#FF0000"
  scroll_wheel_zoom: true
`), 0o644)

	opts, err := LoadOptions(good)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.Listen != "127.0.0.1:9090" || opts.Zoom != 14 || opts.PathColor != "#FF0000" || !opts.ScrollWheelZoom {
		t.Errorf("opts = %+v", opts)
	}
	if d := opts.withDefaults(); d.FlyToSeconds != DefaultFlyToSeconds || d.Zoom != 14 {
		t.Errorf("defaults = %+v", d)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("mapview:\n  path_color: green\n"), 0o644)
	if _, err := LoadOptions(bad); err == nil {
		t.Error("expected validation error for path_color")
	}
}
