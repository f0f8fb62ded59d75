// Package flags holds the global CLI flags and their environment fallbacks.
package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarConfigFile  = "MCPREGD_CONFIG_FILE"
	EnvVarServersFile = "MCPREGD_SERVERS_FILE"
	EnvVarLogPath     = "MCPREGD_LOG_PATH"
	EnvVarLogLevel    = "MCPREGD_LOG_LEVEL"

	// Defaults
	DefaultConfigFile  = ".mcpregd.toml"
	DefaultServersFile = ""
	DefaultLogPath     = ""
	DefaultLogLevel    = "info"

	// Flag names
	FlagNameConfigFile  = "config-file"
	FlagNameServersFile = "servers-file"
	FlagNameLogPath     = "log-path"
	FlagNameLogLevel    = "log-level"
)

var (
	ConfigFile  string
	ServersFile string
	LogPath     string
	LogLevel    string
)

func InitFlags(fs *pflag.FlagSet) {
	initConfigFile(fs)
	initServersFile(fs)
	initLogger(fs)
}

func initConfigFile(fs *pflag.FlagSet) {
	if ConfigFile == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarConfigFile)); env != "" {
			ConfigFile = env
		} else {
			ConfigFile = DefaultConfigFile
		}
	}
	fs.StringVar(&ConfigFile, FlagNameConfigFile, ConfigFile, "path to config file")
}

func initServersFile(fs *pflag.FlagSet) {
	if ServersFile == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarServersFile)); env != "" {
			ServersFile = env
		} else {
			ServersFile = DefaultServersFile
		}
	}
	fs.StringVar(&ServersFile, FlagNameServersFile, ServersFile, "path to server seed file (overrides config)")
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogPath)); env != "" {
			LogPath = env
		} else {
			LogPath = DefaultLogPath
		}
	}
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	if LogLevel == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogLevel)); env != "" {
			LogLevel = strings.ToLower(env)
		} else {
			LogLevel = DefaultLogLevel
		}
	}
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level for mcpregd logs")
}
