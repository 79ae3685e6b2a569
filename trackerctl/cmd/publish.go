package cmd

import (
	"context"
	"flag"
	"math/rand"
	"sync"
	"time"

	"github.com/alifmusthofa354/FamilyTracking/client"
)

func init() {
	register("publish", &publishCmd{})
}

type publishCmd struct {
	url      string
	id       string
	name     string
	lat      float64
	lng      float64
	interval time.Duration
	cache    string
}

func (publishCmd) desc() string { return "publish synthetic position fixes to a hub" }

func (publishCmd) usage() string {
	return "publish --id=ID [--name=NAME] [--url=ws://host:port/ws] [--lat=F] [--lng=F] [--interval=DURATION] [--cache=PATH]"
}

func (publishCmd) longdesc() string {
	return `
	Connect to a tracker hub and publish fixes on a cadence, starting
	from the given coordinates and drifting randomly. Stands in for a
	real device when exercising a hub. Runs until interrupted.
`[1:]
}

func (cmd *publishCmd) flags() *flag.FlagSet {
	flags := flag.NewFlagSet("publish", flag.ExitOnError)
	flags.StringVar(&cmd.url, "url", "ws://127.0.0.1:8080/ws", "hub websocket url")
	flags.StringVar(&cmd.id, "id", "", "identity to report as (required)")
	flags.StringVar(&cmd.name, "name", "trackerctl", "display name to report")
	flags.Float64Var(&cmd.lat, "lat", -6.2, "starting latitude")
	flags.Float64Var(&cmd.lng, "lng", 106.8, "starting longitude")
	flags.DurationVar(&cmd.interval, "interval", 5*time.Second, "publish interval")
	flags.StringVar(&cmd.cache, "cache", "", "optional path for the last-known-location cache file")
	return flags
}

func (cmd *publishCmd) run(ctx context.Context, args []string) error {
	if cmd.id == "" {
		return flag.ErrHelp
	}

	rec := client.NewReconciler()
	conn := client.Dial(ctx, client.ConnConfig{URL: cmd.url}, rec)
	defer conn.Close()

	var cache client.LocationCache
	if cmd.cache != "" {
		cache = client.NewFileCache(cmd.cache)
	}

	publisher := client.NewPublisher(
		conn,
		&driftingProvider{lat: cmd.lat, lng: cmd.lng},
		staticProfile{id: cmd.id, name: cmd.name},
		cache,
	)
	publisher.WarmStart()
	publisher.Start(cmd.interval)
	defer publisher.Stop()

	<-ctx.Done()
	return nil
}

// driftingProvider fakes a device: each sample nudges the previous one
// by a small random delta.
type driftingProvider struct {
	mu  sync.Mutex
	lat float64
	lng float64
}

func (p *driftingProvider) LastFix() *client.Fix {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lat += (rand.Float64() - 0.5) / 1000
	p.lng += (rand.Float64() - 0.5) / 1000
	return &client.Fix{Lat: p.lat, Lng: p.lng}
}

type staticProfile struct {
	id   string
	name string
}

func (p staticProfile) Profile() client.Profile {
	return client.Profile{ID: p.id, Name: p.name}
}
