package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/lifedata/connector/internal/config"
	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "connector",
	Short: "Connector - sync Fitbit, Tanita, Zaim and Toggl into the warehouse",
	Long: `Connector pulls personal data from provider APIs and upserts it into
the warehouse raw tables, keyed by each record's natural id.

Usage:
  connector [command] [flags]

Available Commands:
  daily              Toggl masters and entries, Fitbit, Tanita, Zaim
  weekly-historical  Toggl detailed report, last 30 days
  full-historical    Toggl detailed report, last 365 days
  sync               Sync one provider or chosen entities
  zaim-money-all     Full Zaim money history
  migrate            Create or update the warehouse schema
  credentials        Import or show stored credentials
  check              Check config, warehouse and credentials
  entities           List registered entity jobs

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --db string       Use a local SQLite warehouse at this path
  --verbose         Enable debug logging
  --json            Output in JSON format

Use "connector [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = config.DefaultPath
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", os.Getenv("CONNECTOR_DB_PATH"), "Use a local SQLite warehouse at this path")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Connector",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := GetVersionInfo()
		if globalFlags.JSON {
			return printJSON(cmd.OutOrStdout(), info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Connector Version:", info.Version)
		fmt.Fprintln(out, "Go Version:", info.GoVersion)
		fmt.Fprintln(out, "OS/Arch:", info.OS+"/"+info.Arch)
		fmt.Fprintln(out, "Build Date:", info.BuildDate)
		return nil
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// Set at build time with -ldflags "-X".
var (
	version   = "0.1.0"
	buildDate = "unknown"
)

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	BuildDate string `json:"build_date"`
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		BuildDate: buildDate,
	}
}
