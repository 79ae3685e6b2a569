package main

import (
	"flag"

	"github.com/alifmusthofa354/FamilyTracking/trackerctl/cmd"
)

var Version string

func main() {
	if Version != "" {
		cmd.Version = Version
	}
	flag.Parse()
	cmd.Run(flag.Args())
}
