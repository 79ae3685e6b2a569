package cmd

import (
	"context"
	"flag"
	"fmt"
)

func init() {
	register("version", &versionCmd{})
}

type versionCmd struct {
}

func (versionCmd) desc() string {
	return "display trackerctl version"
}

func (versionCmd) usage() string {
	return "version"
}

func (versionCmd) longdesc() string {
	return "Display the version stamped into the trackerctl binary."
}

func (versionCmd) flags() *flag.FlagSet {
	return flag.NewFlagSet("version", flag.ExitOnError)
}

func (versionCmd) run(ctx context.Context, args []string) error {
	fmt.Printf("trackerctl version %s\n", Version)
	return nil
}
