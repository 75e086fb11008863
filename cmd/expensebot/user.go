package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilyosbek9531/expense-tracker-bot/core/database"
	"github.com/ilyosbek9531/expense-tracker-bot/core/logger"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store/sqlstore"
)

func newUserCmd(flags *rootFlags) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage registered accounts",
	}

	var role string
	promote := &cobra.Command{
		Use:   "promote <username>",
		Short: "Set a user's role and approve the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			cfg, err := flags.load(false)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(&cfg.Config); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			db, err := database.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			s := sqlstore.New(db)
			defer s.Close()

			u, err := store.Promote(cmd.Context(), s, args[0], r)
			if err != nil {
				return fmt.Errorf("promote %q: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Username, u.Role)
			return nil
		},
	}
	promote.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "ROOT, ADMIN or MEMBER")

	user.AddCommand(promote)
	return user
}

// parseRole is strict, unlike domain.ParseRole, so typos are not silently
// demoted to MEMBER.
func parseRole(s string) (domain.Role, error) {
	switch r := domain.Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case domain.RoleRoot, domain.RoleAdmin, domain.RoleMember:
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q; allowed: ROOT, ADMIN, MEMBER", s)
}
