package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aether-ai/mcpregd/internal/cmd"
	"github.com/aether-ai/mcpregd/internal/config"
	"github.com/aether-ai/mcpregd/internal/daemon"
	"github.com/aether-ai/mcpregd/internal/flags"
)

// devAddr is the bind address forced by --dev mode.
const devAddr = "localhost:8390"

// DaemonCmd should be used to represent the 'daemon' command.
type DaemonCmd struct {
	*cmd.BaseCmd
	Dev  bool
	Addr string
}

// NewDaemonCmd creates a newly configured (Cobra) command.
func NewDaemonCmd(baseCmd *cmd.BaseCmd) *cobra.Command {
	c := &DaemonCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "daemon [--dev] [--addr]",
		Short: "Launches an mcpregd daemon instance",
		Long:  "Launches an mcpregd daemon instance, which supervises registered MCP servers and serves the HTTP API",
		RunE:  c.run,
	}

	cobraCommand.Flags().BoolVar(
		&c.Dev,
		"dev",
		false,
		"Run the daemon in development-focused mode",
	)

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		"",
		"Address for the daemon to bind, overriding the config file (not applicable in --dev mode)",
	)

	cobraCommand.MarkFlagsMutuallyExclusive("dev", "addr")

	return cobraCommand
}

// run is configured (via NewDaemonCmd) to be called by the Cobra framework when the command is executed.
func (c *DaemonCmd) run(_ *cobra.Command, _ []string) error {
	logger := c.Logger()

	// In dev mode a local .env supplies tokens referenced by server descriptors.
	if c.Dev {
		if err := godotenv.Load(); err == nil {
			logger.Info("Loaded environment from .env")
		}
	}

	cfg, err := config.Load(configFilePath())
	if err != nil {
		return err
	}

	if addr := strings.TrimSpace(c.Addr); addr != "" {
		cfg.API.Addr = addr
	}
	if c.Dev {
		logger.Info("Development-focused mode", "addr", cfg.API.Addr, "override", devAddr)
		cfg.API.Addr = devAddr
	}
	if flags.ServersFile != "" {
		cfg.Servers.File = flags.ServersFile
	}

	d, err := daemon.New(logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to create mcpregd daemon instance: %w", err)
	}

	// Create the signal handling context for the application.
	daemonCtx, daemonCtxCancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer daemonCtxCancel()

	runErr := make(chan error, 1)
	go func() {
		if err := d.Run(daemonCtx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- err
		}
		close(runErr)
	}()

	// Print --dev mode banner if required.
	if c.Dev {
		banner := fmt.Sprintf("mcpregd daemon running in 'dev' mode.\n\n"+
			"  Local API:\thttp://%s/api/v1\n"+
			"  OpenAPI UI:\thttp://%s/docs\n"+
			"  Config file:\t%s\n",
			cfg.API.Addr, cfg.API.Addr, flags.ConfigFile)

		if flags.LogPath != "" {
			banner += fmt.Sprintf("  Log file:\t%s => (%s)\n", flags.LogPath, flags.LogLevel)
		}

		banner += "\nPress Ctrl+C to stop.\n\n"
		fmt.Print(banner)
	}

	select {
	case <-daemonCtx.Done():
		logger.Info("Shutting down daemon")
		err := <-runErr // Wait for cleanup and deferred logging.
		return err      // Graceful Ctrl+C / SIGTERM.
	case err := <-runErr:
		return err
	}
}

// configFilePath resolves the config file, tolerating an absent default file.
func configFilePath() string {
	path := flags.ConfigFile
	if path == flags.DefaultConfigFile {
		if _, err := os.Stat(path); err != nil {
			return ""
		}
	}
	return path
}
