package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jw238ddns",
		Short:   "Dynamic DNS registration daemon",
		Long:    "jw238ddns stores FQDN bindings registered over HTTP and pushes them to an authoritative DNS server with DNS UPDATE.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Running without a subcommand starts the daemon, as the
			// container entrypoint expects.
			return runServe(cmd.Context(), configPathFlag(cmd))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to the YAML config file (env CONFIG_PATH)")

	cmd.AddCommand(newCmdServe())
	cmd.AddCommand(newCmdPush())
	cmd.AddCommand(newCmdList())
	cmd.AddCommand(newCmdVersion())
	cmd.AddCommand(newCmdHealthcheck())
	return cmd
}

func main() {
	setupLogger(slog.LevelInfo, "json")

	root := newRootCmd()
	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
