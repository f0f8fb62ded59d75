package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aether-ai/mcpregd/internal/cmd"
	"github.com/aether-ai/mcpregd/internal/flags"
)

var version = "dev" // Set at build time using -ldflags

// Execute runs the root command.
func Execute() error {
	cmd.SetVersion(version)

	rootCmd := NewRootCmd()
	return rootCmd.Execute()
}

// NewRootCmd creates the root (Cobra) command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	baseCmd := &cmd.BaseCmd{}

	rootCmd := &cobra.Command{
		Use:          "mcpregd <command> [args]",
		Short:        "mcpregd registers, monitors, and routes tool calls to MCP servers.",
		Long:         longDescription(),
		SilenceUsage: true,
		Version:      cmd.Version(),
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewDaemonCmd(baseCmd))
	rootCmd.AddCommand(NewValidateCmd(baseCmd))

	return rootCmd
}

func longDescription() string {
	return `mcpregd is a daemon that maintains a registry of MCP tool servers, supervises
their health with per-server probe schedules, and exposes registration,
health, and tool execution over an HTTP API.`
}
