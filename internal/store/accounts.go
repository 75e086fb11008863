package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
)

// Promote sets the role of an existing user and approves the account.
func Promote(ctx context.Context, users Users, username string, role domain.Role) (*domain.User, error) {
	u, err := users.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := grant(ctx, users, u, role); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureRoot creates the ROOT account described by in, or upgrades the
// user already holding that username. It reports whether a row was created.
func EnsureRoot(ctx context.Context, users Users, in domain.NewUser) (*domain.User, bool, error) {
	u, err := users.FindUserByUsername(ctx, in.Username)
	created := false
	if errors.Is(err, domain.ErrNotFound) {
		u, err = users.CreateUser(ctx, in)
		created = true
	}
	if err != nil {
		return nil, false, err
	}
	if err := grant(ctx, users, u, domain.RoleRoot); err != nil {
		return nil, false, err
	}
	return u, created, nil
}

func grant(ctx context.Context, users Users, u *domain.User, role domain.Role) error {
	if u.Role != role {
		if err := users.SetUserRole(ctx, u.ID, role); err != nil {
			return fmt.Errorf("set role %s: %w", role, err)
		}
		u.Role = role
	}
	if !u.IsAccepted {
		if err := users.ApproveUser(ctx, u.ID); err != nil {
			return fmt.Errorf("approve %s: %w", u.Username, err)
		}
		u.IsAccepted = true
	}
	return nil
}
