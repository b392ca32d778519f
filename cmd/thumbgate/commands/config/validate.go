package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/thumbgate/pkg/config"
	"github.com/marmos91/thumbgate/pkg/session/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the thumbgate configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  thumbgate config validate

  # Validate specific config file
  thumbgate config validate --config /etc/thumbgate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	cfg, err := config.MustLoad(path)
	if err != nil {
		return err
	}

	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Server.WriteTimeout > 0 && cfg.Server.WriteTimeout <= cfg.Dispatch.Timeout {
		warnings = append(warnings, fmt.Sprintf(
			"server.write_timeout (%s) does not exceed dispatch.timeout (%s): timed out requests cannot be answered with 504",
			cfg.Server.WriteTimeout, cfg.Dispatch.Timeout))
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Insecure {
		warnings = append(warnings, "Telemetry is exported without TLS")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", path)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Session store:   %s (%s codec)\n", storeTarget(&cfg.SessionStore), cfg.SessionStore.Codec)
	_, _ = fmt.Fprintf(out, "  OMERO gateway:   %s:%d\n", cfg.Omero.Host, cfg.Omero.Port)
	_, _ = fmt.Fprintf(out, "  HTTP port:       %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Dispatch:        %s timeout, %d workers\n", cfg.Dispatch.Timeout, cfg.Workers.Size)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

func storeTarget(cfg *store.Config) string {
	switch cfg.Type {
	case store.TypePostgres:
		return fmt.Sprintf("postgres %s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database)
	case store.TypeSQLite:
		return "sqlite " + cfg.SQLite.Path
	default:
		return "redis " + cfg.Redis.URI
	}
}
