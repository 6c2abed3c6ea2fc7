package mapview

import (
	"github.com/curbz/routeplay/pkg/util"
)

const (
	DefaultListen       = ":8080"
	DefaultTileURL      = "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png"
	DefaultAttribution  = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`
	DefaultZoom         = 16
	DefaultFlyToSeconds = 1.2
	DefaultPathColor    = "#00FFAA"
	DefaultMarkerIcon   = "/car.svg"
	DefaultMarkerSize   = 40
	DefaultClientQueue  = 64
)

// Options for the map page and its HTTP server. Zero values take the defaults.
type Options struct {
	Listen          string
	TileURL         string
	Attribution     string
	Zoom            int
	ScrollWheelZoom bool
	FlyToSeconds    float64
	PathColor       string
	MarkerIconURL   string
	MarkerIconSize  int
	ClientQueue     int
}

func (o Options) withDefaults() Options {
	if o.Listen == "" {
		o.Listen = DefaultListen
	}
	if o.TileURL == "" {
		o.TileURL = DefaultTileURL
		if o.Attribution == "" {
			o.Attribution = DefaultAttribution
		}
	}
	if o.Zoom == 0 {
		o.Zoom = DefaultZoom
	}
	if o.FlyToSeconds == 0 {
		o.FlyToSeconds = DefaultFlyToSeconds
	}
	if o.PathColor == "" {
		o.PathColor = DefaultPathColor
	}
	if o.MarkerIconURL == "" {
		o.MarkerIconURL = DefaultMarkerIcon
	}
	if o.MarkerIconSize == 0 {
		o.MarkerIconSize = DefaultMarkerSize
	}
	if o.ClientQueue == 0 {
		o.ClientQueue = DefaultClientQueue
	}
	return o
}

type config struct {
	MapView struct {
		Listen          string  `yaml:"listen" validate:"omitempty,hostname_port"`
		TileURL         string  `yaml:"tile_url"`
		Attribution     string  `yaml:"attribution"`
		Zoom            int     `yaml:"zoom" validate:"gte=0,lte=22"`
		ScrollWheelZoom bool    `yaml:"scroll_wheel_zoom"`
		FlyToSeconds    float64 `yaml:"fly_to_seconds" validate:"gte=0"`
		PathColor       string  `yaml:"path_color" validate:"omitempty,hexcolor"`
		MarkerIconURL   string  `yaml:"marker_icon_url"`
		MarkerIconSize  int     `yaml:"marker_icon_size" validate:"gte=0"`
		ClientQueue     int     `yaml:"client_queue" validate:"gte=0"`
	} `yaml:"mapview"`
}

// LoadOptions reads the mapview section of the configuration file.
func LoadOptions(cfgPath string) (Options, error) {
	cfg, err := util.LoadConfig[config](cfgPath)
	if err != nil {
		return Options{}, err
	}
	mv := cfg.MapView
	return Options{
		Listen:          mv.Listen,
		TileURL:         mv.TileURL,
		Attribution:     mv.Attribution,
		Zoom:            mv.Zoom,
		ScrollWheelZoom: mv.ScrollWheelZoom,
		FlyToSeconds:    mv.FlyToSeconds,
		PathColor:       mv.PathColor,
		MarkerIconURL:   mv.MarkerIconURL,
		MarkerIconSize:  mv.MarkerIconSize,
		ClientQueue:     mv.ClientQueue,
	}, nil
}
