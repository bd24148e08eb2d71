// Package main is the single-binary entrypoint for DriftWatch.
package main

import "github.com/driftwatch/driftwatch/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
