// Package session implements session troubleshooting subcommands.
package session

import (
	"github.com/spf13/cobra"
)

// Cmd is the session subcommand.
var Cmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect OMERO.web sessions",
	Long: `Inspect the session records thumbgate authenticates requests with.

Subcommands:
  inspect   Resolve a sessionid cookie through the configured store`,
}

func init() {
	Cmd.AddCommand(inspectCmd)
}
