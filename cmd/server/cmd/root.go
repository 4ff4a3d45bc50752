package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	serve := newServeCommand(opts)
	root := &cobra.Command{
		Use:   "server",
		Short: "UniSphere server - campus events and community backend",
		Long: `UniSphere server is the backend for the UniSphere campus app.

It provides:
- Student accounts with JWT access and refresh tokens
- Campus events with capacity-limited registration
- Announcements for the whole campus
- Personal saved places

Configuration is read from environment variables. Run "server serve" to
start the HTTP API; it is also the default when no subcommand is given.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand(opts))
	root.AddCommand(newEventsCommand(opts))
	root.AddCommand(newTokensCommand(opts))
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the command tree. It is called by main.main.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
