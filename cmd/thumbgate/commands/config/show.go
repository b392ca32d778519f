package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/thumbgate/internal/cli/output"
	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/pkg/config"
)

var (
	showOutput string
	showReveal bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective thumbgate configuration, after defaults and
environment overrides. Passwords are masked unless --reveal is given.

Examples:
  # Show default config as YAML
  thumbgate config show

  # Show as JSON
  thumbgate config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showReveal, "reveal", false, "Print passwords in clear")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showReveal {
		maskPasswords(cfg)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}

func maskPasswords(cfg *config.Config) {
	for _, p := range []*string{
		&cfg.SessionStore.Redis.Password,
		&cfg.SessionStore.Postgres.Password,
	} {
		if *p != "" {
			*p = logger.MaskSecret(*p)
		}
	}
}
