// Package main is the entry point for trendctl, the Trend View console CLI.
package main

import (
	"os"

	"github.com/quantlens/trendview/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
