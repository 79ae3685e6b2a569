package cmd

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alifmusthofa354/FamilyTracking/backend"
)

func init() {
	register("serve", &serveCmd{})
}

type serveCmd struct {
	addr   string
	resync time.Duration
}

func (serveCmd) desc() string { return "start up a tracker hub server" }

func (serveCmd) usage() string {
	return "serve [--http=<interface:port>] [--resync=DURATION]"
}

func (serveCmd) longdesc() string {
	return `
	Start a tracker hub server. The server will listen for websocket
	connections on /ws at the address given by -http (defaults to port
	8080 on any interface) and export prometheus metrics on /metrics.
	The server runs until interrupted.
`[1:]
}

func (cmd *serveCmd) flags() *flag.FlagSet {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	flags.StringVar(&cmd.addr, "http", ":8080", "address to serve http on")
	flags.DurationVar(&cmd.resync, "resync", 0, "full-roster resync interval, 0 disables")
	return flags
}

func (cmd *serveCmd) run(ctx context.Context, args []string) error {
	listener, err := net.Listen("tcp", cmd.addr)
	if err != nil {
		return err
	}

	server := backend.NewServer(ctx, cmd.resync)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	fmt.Printf("serving on %s\n", cmd.addr)
	if err := http.Serve(listener, server); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
