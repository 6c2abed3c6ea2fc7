package dashboard

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/curbz/routeplay/internal/playback"
	"github.com/curbz/routeplay/pkg/util"
)

const (
	DefaultLanguage   = "en"
	DefaultTimeFormat = "15:04:05"
)

// Options for readout formatting. Zero values fall back to the defaults
// and the process' local time zone.
type Options struct {
	Language   string
	TimeZone   string
	TimeFormat string
}

type config struct {
	Display struct {
		Language   string `yaml:"language" validate:"omitempty,bcp47_language_tag"`
		TimeZone   string `yaml:"timezone" validate:"omitempty,timezone|eq=Local"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"display"`
}

func LoadOptions(cfgPath string) (Options, error) {
	cfg, err := util.LoadConfig[config](cfgPath)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Language:   cfg.Display.Language,
		TimeZone:   cfg.Display.TimeZone,
		TimeFormat: cfg.Display.TimeFormat,
	}, nil
}

// Readout is the text shown on the dashboard for one frame.
type Readout struct {
	Lat             string  `json:"lat"`
	Lng             string  `json:"lng"`
	Time            string  `json:"time"`
	Speed           string  `json:"speed"`
	Heading         string  `json:"heading"`
	CompassRotation float64 `json:"compassRotation"`
	Progress        string  `json:"progress"`
}

// Formatter turns frames into readouts.
type Formatter struct {
	printer    *message.Printer
	loc        *time.Location
	timeFormat string
}

func NewFormatter(opts Options) (*Formatter, error) {
	lang := opts.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("invalid display language %q: %w", lang, err)
	}

	loc := time.Local
	if opts.TimeZone != "" && opts.TimeZone != "Local" {
		loc, err = time.LoadLocation(opts.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid display time zone %q: %w", opts.TimeZone, err)
		}
	}

	tf := opts.TimeFormat
	if tf == "" {
		tf = DefaultTimeFormat
	}

	return &Formatter{printer: message.NewPrinter(tag), loc: loc, timeFormat: tf}, nil
}

func (f *Formatter) Format(fr playback.Frame) Readout {
	tel := fr.Telemetry
	rd := Readout{
		Lat:             "-",
		Lng:             "-",
		Time:            "-",
		Speed:           f.printer.Sprintf("%.2f", tel.SpeedKmh),
		Heading:         f.printer.Sprintf("%.0f°", tel.Heading),
		CompassRotation: tel.CompassRotation,
		Progress:        "0/0",
	}
	if fr.Marker == nil {
		return rd
	}
	rd.Lat = f.printer.Sprintf("%.5f", tel.Position.Lat)
	rd.Lng = f.printer.Sprintf("%.5f", tel.Position.Long)
	rd.Time = tel.Timestamp.In(f.loc).Format(f.timeFormat)
	rd.Progress = fmt.Sprintf("%d/%d", tel.Index+1, fr.Length)
	return rd
}
