// Package main is the entry point for the cryptorpc CLI.
package main

import (
	"os"

	"github.com/mrz1836/cryptorpc/internal/cli"
)

// Set by -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
//
//nolint:gochecknoglobals // link-time build stamps
var (
	version string
	commit  string
	date    string
)

func main() {
	if err := cli.Execute(cli.BuildInfo{Version: version, Commit: commit, Date: date}); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
