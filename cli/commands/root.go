// Package commands provides the CLI command implementations for cartflow.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventdriven/cartflow"
	"github.com/eventdriven/cartflow/cli/config"
	"github.com/eventdriven/cartflow/cli/styles"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries global flags and, in tests, a runtime shared across
// invocations.
type app struct {
	configPath string
	noColor    bool
	verbose    bool
	trace      bool

	shared *Runtime
}

// NewRootCommand creates the root command for the cartflow CLI
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cartflow",
		Short: "Event-sourced shopping carts",
		Long: styles.Banner() + `

cartflow stores shopping carts as append-only event streams and
protects every change with optimistic concurrency (ETag / If-Match).

` + styles.Title.Render("Quick Start:") + `

  ` + styles.Code.Render("cartflow init") + `             Write a cartflow.yaml
  ` + styles.Code.Render("cartflow migrate") + `          Create the event tables
  ` + styles.Code.Render("cartflow cart open") + `        Open a cart
  ` + styles.Code.Render("cartflow demo") + `             Run a checkout against the configured store`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.noColor {
				styles.DisableColors()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to cartflow.yaml (default: search upwards from the working directory)")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")
	flags.BoolVar(&a.trace, "trace", false, "Print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(newMigrateCommand(a))
	rootCmd.AddCommand(newCartCommand(a))
	rootCmd.AddCommand(newStreamCommand(a))
	rootCmd.AddCommand(newDemoCommand(a))
	rootCmd.AddCommand(newServeMetricsCommand(a))
	rootCmd.AddCommand(NewVersionCommand(Version, Commit, BuildDate))

	return rootCmd
}

// loadConfig resolves the configuration: --config, then cartflow.yaml found
// upwards from the working directory, then defaults. Defaults use the
// memory driver unless CARTFLOW_DATABASE_URL is set.
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFile(a.configPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	if _, cfg, err := config.FindConfig(cwd); err == nil {
		return cfg, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg := config.DefaultConfig()
	cfg.Database.Driver = config.DriverMemory
	cfg.ApplyEnv(os.LookupEnv)
	if cfg.Database.URL != "" {
		cfg.Database.Driver = config.DriverPostgres
	}
	return cfg, nil
}

// runtime returns a wired Runtime and a cleanup function.
func (a *app) runtime(ctx context.Context) (*Runtime, func(), error) {
	if a.shared != nil {
		return a.shared, func() {}, nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	opts := RuntimeOptions{Verbose: a.verbose || cfg.Observability.Trace}
	if a.verbose {
		opts.LogOutput = os.Stderr
	}
	if a.trace || cfg.Observability.Trace {
		opts.TraceOutput = os.Stderr
	}

	rt, err := NewRuntime(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return rt, func() { _ = rt.Close() }, nil
}

// describe renders err with the HTTP status an API would answer with.
func describe(err error) string {
	return fmt.Sprintf("%s (HTTP %d)", err.Error(), cartflow.StatusCode(err))
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, styles.FormatError(describe(err)))
		return err
	}

	return nil
}
