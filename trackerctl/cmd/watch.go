package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/alifmusthofa354/FamilyTracking/client"
)

func init() {
	register("watch", &watchCmd{})
}

type watchCmd struct {
	url string
}

func (watchCmd) desc() string { return "connect to a hub and print roster changes" }

func (watchCmd) usage() string {
	return "watch [--url=ws://host:port/ws]"
}

func (watchCmd) longdesc() string {
	return `
	Connect to a tracker hub as a passive client and print the roster
	every time it changes. Useful for verifying that a hub is relaying
	position updates. Runs until interrupted.
`[1:]
}

func (cmd *watchCmd) flags() *flag.FlagSet {
	flags := flag.NewFlagSet("watch", flag.ExitOnError)
	flags.StringVar(&cmd.url, "url", "ws://127.0.0.1:8080/ws", "hub websocket url")
	return flags
}

func (cmd *watchCmd) run(ctx context.Context, args []string) error {
	rec := client.NewReconciler()
	conn := client.Dial(ctx, client.ConnConfig{URL: cmd.url}, rec)
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-rec.Changed():
			fmt.Printf("state=%s roster:\n", rec.State())
			for _, entry := range rec.Listing() {
				fmt.Printf("  %-26s %-16s (%.6f, %.6f)\n", entry.ID, entry.Name, entry.Lat, entry.Lng)
			}
		}
	}
}
