package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const tokenFileName = ".split-goat-token"

func newTokenCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show the API URL and access token",
		Long: `Show the campaign API URL and the token it expects.

The configured token (server.token or SG_TOKEN) is shown when set.
Otherwise the token generated by the last 'split-goat serve' is read
from the token file next to the database.

Example:
  split-goat token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				token := a.cfg.Server.Token
				if token == "" {
					data, err := os.ReadFile(tokenFilePath(a.cfg.Database.Path))
					if err != nil {
						if os.IsNotExist(err) {
							return fmt.Errorf("no server running. Start with: split-goat serve")
						}
						return fmt.Errorf("failed to read token file: %w", err)
					}
					token = strings.TrimSpace(string(data))
					if token == "" {
						return fmt.Errorf("token file is empty. Restart the server with: split-goat serve")
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "API: http://localhost:%d/api/campaigns\n", a.cfg.Server.Port)
				fmt.Fprintf(out, "Token: %s\n", token)
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Send it as 'Authorization: Bearer <token>' or ?token=<token>.")
				return nil
			})
		},
	}
}

// tokenFilePath keeps the token file alongside the database.
func tokenFilePath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), tokenFileName)
}

func writeTokenFile(dbPath, token string) error {
	if err := os.WriteFile(tokenFilePath(dbPath), []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
