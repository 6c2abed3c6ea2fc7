package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/peterbourgon/ff"
	log "github.com/sirupsen/logrus"

	"github.com/curbz/routeplay/internal/dashboard"
	"github.com/curbz/routeplay/internal/mapview"
	"github.com/curbz/routeplay/internal/playback"
	"github.com/curbz/routeplay/internal/route"
)

const shutdownTimeout = 5 * time.Second

func main() {
	fs := flag.NewFlagSet("routeplay", flag.ExitOnError)
	var (
		cfgPath   = fs.String("config", "config.yaml", "YAML configuration file")
		routePath = fs.String("route", "", "route fixture, overrides route.fixture")
		listen    = fs.String("listen", "", "map view address, overrides mapview.listen")
		headless  = fs.Bool("headless", false, "log frames to the console only")
		autoplay  = fs.Bool("autoplay", false, "start playing immediately")
		debug     = fs.Bool("debug", false, "debug logging")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("ROUTEPLAY")); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	fixture, err := route.FixturePath(*cfgPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if *routePath != "" {
		fixture = *routePath
	}
	r, err := route.Load(fixture)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	popts, err := playback.LoadOptions(*cfgPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if *autoplay {
		popts.Autoplay = true
	}
	dopts, err := dashboard.LoadOptions(*cfgPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	mvopts, err := mapview.LoadOptions(*cfgPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if *listen != "" {
		mvopts.Listen = *listen
	}

	log.Debugf("configuration from %s:\n%# v\n%# v\n%# v", *cfgPath,
		pretty.Formatter(popts), pretty.Formatter(dopts), pretty.Formatter(mvopts))

	fm, err := dashboard.NewFormatter(dopts)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// with the map open the console only echoes frames at debug level
	consoleLevel := log.DebugLevel
	if *headless {
		consoleLevel = log.InfoLevel
	}
	renderers := []playback.Renderer{dashboard.NewConsole(fm, consoleLevel)}

	var hub *mapview.Hub
	if !*headless {
		hub = mapview.NewHub(fm, mvopts.ClientQueue)
		renderers = append(renderers, hub)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	player := playback.New(r, popts, renderers...)
	go player.Run(ctx)

	var srv *http.Server
	if hub != nil {
		srv = mapview.NewServer(mvopts, hub, player, r).Start(ctx)
	}

	log.Println("Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Println("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Printf("mapview shutdown: %v", err)
		}
	}
	<-player.Done()
}
