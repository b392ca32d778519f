// Package commands implements the thumbgate CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/thumbgate/cmd/thumbgate/commands/config"
	"github.com/marmos91/thumbgate/cmd/thumbgate/commands/session"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "thumbgate",
	Short: "thumbgate - OMERO thumbnail microservice",
	Long: `thumbgate serves OMERO.web thumbnail URLs without the web application.

Requests are authenticated with the OMERO.web session cookie, resolved
through the session backend OMERO.web writes to (Redis, PostgreSQL or
SQLite), and answered by joining the user's OMERO session.

Use "thumbgate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/thumbgate/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(session.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
