package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/thumbgate/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with every default filled in.

Examples:
  # Write to $XDG_CONFIG_HOME/thumbgate/config.yaml
  thumbgate config init

  # Write to a custom location, replacing any existing file
  thumbgate config init --config /etc/thumbgate/config.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if err := config.InitConfigToPath(path, initForce); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	return nil
}
