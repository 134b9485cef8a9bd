package main

import (
	"fmt"
	"os"

	"github.com/sitegauge/sitegauge/cmd/sitegauge/commands"
)

var (
	version   = "0.3.0"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	root := commands.NewRootCommand(version)
	root.AddCommand(commands.NewServeCommand())
	root.AddCommand(commands.NewScanCommand())
	root.AddCommand(commands.NewVersionCommand(version, commit, buildDate))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
