package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"screening-agent/internal/auth"
	"screening-agent/internal/rbac"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an access token for the recruiter API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if !rbac.Known(role) {
			return fmt.Errorf("unknown role %q", role)
		}
		cfg, _, err := load()
		if err != nil {
			return err
		}
		m, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return err
		}
		tok, err := m.IssueAccess(time.Now(), args[0], role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringP("role", "r", rbac.RoleRecruiter, "role claim: recruiter, admin, viewer or super_admin")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default JWT_ACCESS_TTL)")
}
