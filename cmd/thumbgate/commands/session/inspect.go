package session

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/thumbgate/internal/cli/output"
	"github.com/marmos91/thumbgate/internal/logger"
	"github.com/marmos91/thumbgate/pkg/config"
	"github.com/marmos91/thumbgate/pkg/session"
	"github.com/marmos91/thumbgate/pkg/session/store"
)

var (
	inspectOutput string
	inspectReveal bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <cookie>",
	Short: "Resolve a sessionid cookie",
	Long: `Read the record OMERO.web stored for a sessionid cookie and print the
OMERO connector it holds. The session key is masked unless --reveal is given.

Examples:
  thumbgate session inspect 8f2c1e0d9b7a4c3e
  thumbgate session inspect 8f2c1e0d9b7a4c3e --output json --reveal`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "table", "Output format (table|json|yaml)")
	inspectCmd.Flags().BoolVar(&inspectReveal, "reveal", false, "Print the OMERO session key in clear")
}

// view is what inspect prints.
type view struct {
	Backend    string `json:"backend" yaml:"backend"`
	Cookie     string `json:"cookie" yaml:"cookie"`
	SessionKey string `json:"session_key" yaml:"session_key"`
	ServerID   string `json:"server_id" yaml:"server_id"`
	UserID     int64  `json:"user_id" yaml:"user_id"`
	IsSecure   bool   `json:"is_secure" yaml:"is_secure"`
	IsPublic   bool   `json:"is_public" yaml:"is_public"`
}

func (v view) fields() output.Fields {
	return output.Fields{}.
		Add("backend", v.Backend).
		Add("cookie", v.Cookie).
		Add("session_key", v.SessionKey).
		Add("server_id", v.ServerID).
		Add("user_id", strconv.FormatInt(v.UserID, 10)).
		Add("is_secure", strconv.FormatBool(v.IsSecure)).
		Add("is_public", strconv.FormatBool(v.IsPublic))
}

// Headers implements output.TableRenderer.
func (v view) Headers() []string { return v.fields().Headers() }

// Rows implements output.TableRenderer.
func (v view) Rows() [][]string { return v.fields().Rows() }

func runInspect(cmd *cobra.Command, args []string) error {
	cookie := args[0]

	format, err := output.ParseFormat(inspectOutput)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sessions, err := store.New(ctx, &cfg.SessionStore, nil)
	if err != nil {
		return err
	}
	defer func() { _ = sessions.Close() }()

	conn, err := sessions.Connector(ctx, cookie)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("no session record for cookie %s in %s", logger.MaskSecret(cookie), sessions.Backend())
	case errors.Is(err, session.ErrDecode):
		return fmt.Errorf("session record for cookie %s is not usable: %w", logger.MaskSecret(cookie), err)
	case err != nil:
		return fmt.Errorf("session lookup failed: %w", err)
	}

	key := conn.SessionKey
	if !inspectReveal {
		key = logger.MaskSecret(key)
	}

	return output.NewPrinter(cmd.OutOrStdout(), format).Print(view{
		Backend:    sessions.Backend(),
		Cookie:     cookie,
		SessionKey: key,
		ServerID:   conn.ServerID,
		UserID:     conn.UserID,
		IsSecure:   conn.IsSecure,
		IsPublic:   conn.IsPublic,
	})
}
