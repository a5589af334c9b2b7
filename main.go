package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bustracker/internal/config"
	"bustracker/internal/tracker"
	"bustracker/internal/wallclock"
)

var (
	configPath = flag.String("config", "config.yml", "Path to the YAML config file")
	envPath    = flag.String("env", ".env", "Path to a .env file with BUSTRACKER_* overrides")
	httpPort   = flag.Int("port", 0, "HTTP port (overrides config)")
)

func main() {
	flag.Parse()
	initLogging()

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatalf("env error: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *httpPort != 0 {
		cfg.Server.Port = *httpPort
	}
	log.Printf("config loaded: feed=%s %s refresh=%dms", cfg.Feed.Kind, cfg.Feed.URL, cfg.Feed.RefreshIntervalMS)

	registry := tracker.NewRegistry(sessionOptions(cfg), cfg.Sessions.MaxParked,
		time.Duration(cfg.Sessions.ParkedTTLSeconds)*time.Second)
	publisher := selectPublisher(cfg.Publish)

	var poll *poller
	hub := newHub(registry, cfg.Display.CountdownSeconds, func() refreshResult { return poll.lastResult() })
	poll = newPoller(selectFeed(cfg.Feed),
		config.Millis(cfg.Feed.RefreshIntervalMS),
		config.Millis(cfg.Feed.TimeoutMS),
		hub, publisher)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(cfg.Server.AllowedOrigins, cfg.Server.StaticDir, hub, poll, registry),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server starting on http://localhost:%d/", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	pctx, pcancel := context.WithCancel(context.Background())
	go poll.run(pctx)
	go runCountdown(pctx, hub, config.Millis(cfg.Display.CountdownTickMS))
	go runClock(pctx, hub,
		wallclock.NewClient(cfg.Clock.URL, config.Millis(cfg.Clock.TimeoutMS)),
		config.Millis(cfg.Clock.PollIntervalMS),
		config.Millis(cfg.Clock.TimeoutMS),
		cfg.Clock.NoServiceMessage)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Printf("shutdown initiated...")

	pcancel()
	hub.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), config.Millis(cfg.Server.ShutdownTimeoutMS))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Printf("HTTP server shut down successfully")
	}
	registry.Close()
	if err := publisher.Close(); err != nil {
		log.Printf("publisher close error: %v", err)
	}
}

func initLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

func sessionOptions(cfg *config.AppConfig) tracker.Options {
	return tracker.Options{
		CountdownSeconds: cfg.Display.CountdownSeconds,
		Highlight:        config.Millis(cfg.Display.HighlightMS),
		View: tracker.View{
			Lat:  tracker.Coord(cfg.Map.CenterLat),
			Lon:  tracker.Coord(cfg.Map.CenterLon),
			Zoom: cfg.Map.Zoom,
		},
		FocusZoom: cfg.Map.FocusZoom,
	}
}

func selectFeed(fc config.FeedConfig) BusFeedSource {
	timeout := config.Millis(fc.TimeoutMS)
	switch fc.Kind {
	case "gtfsrt":
		return NewGtfsRtBusFeedSource(fc.URL, timeout)
	case "siri_json":
		return NewSiriJsonBusFeedSource(fc.URL, timeout)
	case "siri_xml":
		return NewSiriXmlBusFeedSource(fc.URL, timeout)
	default:
		return NewMetrobusFeedSource(fc.URL, fc.UserAgent, timeout)
	}
}

// selectPublisher connects to RabbitMQ when configured. A broker that cannot
// be reached disables publishing rather than stopping the tracker.
func selectPublisher(pc config.PublishConfig) RefreshPublisher {
	if pc.AMQPURL == "" {
		return noopPublisher{}
	}
	p, err := newAMQPPublisher(pc.AMQPURL, pc.Queue, pc.MessageTTLMS)
	if err != nil {
		log.Printf("Warning: refresh publishing disabled: %v", err)
		return noopPublisher{}
	}
	return p
}
