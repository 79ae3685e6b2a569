package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/alifmusthofa354/FamilyTracking/backend"
)

var (
	addr       = flag.String("http", "", "address to serve http on (overrides config)")
	configPath = flag.String("config", "", "path to yaml config file")
	keepalive  = flag.Duration("keepalive", 0, "keepalive ping interval (overrides config)")
	resync     = flag.Duration("resync", 0, "full-roster resync interval, 0 disables (overrides config)")
)

var version string

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	config := backend.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := backend.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		config = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			config.HTTP.Listen = *addr
		case "keepalive":
			config.Keepalive.Interval = *keepalive
		case "resync":
			config.Roster.ResyncInterval = *resync
		}
	})

	if config.Keepalive.Interval > 0 {
		backend.KeepAlive = config.Keepalive.Interval
	}
	if config.Keepalive.MaxMisses > 0 {
		backend.MaxKeepAliveMisses = uint32(config.Keepalive.MaxMisses)
	}

	ctx := context.Background()
	server := backend.NewServer(ctx, config.Roster.ResyncInterval)

	fmt.Printf("serving on %s\n", config.HTTP.Listen)
	return http.ListenAndServe(config.HTTP.Listen, newVersioningHandler(server))
}

type versioningHandler struct {
	version string
	handler http.Handler
}

func newVersioningHandler(handler http.Handler) http.Handler {
	return &versioningHandler{
		version: version,
		handler: handler,
	}
}

func (vh *versioningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if vh.version != "" {
		w.Header().Set("X-Tracker-Version", vh.version)
	}
	vh.handler.ServeHTTP(w, r)
}
