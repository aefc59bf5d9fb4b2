// cartflow is the command-line interface for event-sourced shopping carts.
//
// Usage:
//
//	cartflow <command> [flags]
//
// Commands:
//
//	init           Write a cartflow.yaml configuration file
//	migrate        Create the event store schema
//	cart           Open, change and inspect shopping carts
//	stream         Inspect the event stream behind a cart
//	demo           Run a scripted checkout against the configured store
//	serve-metrics  Expose Prometheus metrics and a health check
//	version        Show version information
//
// Examples:
//
//	# Configure a PostgreSQL-backed project and create the tables
//	cartflow init --driver=postgres
//	cartflow migrate
//
//	# Open a cart and add a product, conditional on the cart's ETag
//	cartflow cart open
//	cartflow cart add CART --product PRODUCT --quantity 2 --if-match 'W/"0"'
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eventdriven/cartflow/cli/commands"
)

// Build information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.BuildDate = buildDate

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
