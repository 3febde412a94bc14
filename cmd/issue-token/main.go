// Package main выпускает JWT токен доступа к API синхронизатора по секрету из конфига.
package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/storeplan-sync/internal/config"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/jwt"
)

func main() {
	var user, role string

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue an API access token signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains([]string{jwt.RoleSiteAdmin, jwt.RoleAdmin}, role) {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg := config.MustLoad()
			token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(user, role)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "username to put into the token")
	cmd.Flags().StringVar(&role, "role", jwt.RoleSiteAdmin, "role: site_admin or admin")
	_ = cmd.MarkFlagRequired("user")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
