package apimodel

import "encoding/json"

// Message types exchanged with the map page over the websocket.
const (
	TypeInit   = "init"
	TypeFrame  = "frame"
	TypeToggle = "toggle"
	TypeResult = "result"
	TypeError  = "error"
)

// Envelope is the top level of every websocket message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MapInit configures the tile layer and static decorations of the page.
type MapInit struct {
	ClientID        string     `json:"clientId"`
	TileURL         string     `json:"tileUrl"`
	Attribution     string     `json:"attribution"`
	Zoom            int        `json:"zoom"`
	ScrollWheelZoom bool       `json:"scrollWheelZoom"`
	FlyToSeconds    float64    `json:"flyToSeconds"`
	PathColor       string     `json:"pathColor"`
	MarkerIconURL   string     `json:"markerIconUrl"`
	MarkerIconSize  int        `json:"markerIconSize"`
	Center          [2]float64 `json:"center"`
}

// ToggleRequest is sent by the page when a control is clicked.
type ToggleRequest struct {
	Control string `json:"control"`
}

// Result acknowledges a toggle.
type Result struct {
	Control string `json:"control"`
	Success bool   `json:"success"`
}

// ErrorPayload is used if Type is "error".
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
