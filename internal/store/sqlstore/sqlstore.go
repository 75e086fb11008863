// Package sqlstore implements store.Store on top of sqlx. The same queries
// run against Postgres (lib/pq) and SQLite (modernc.org/sqlite); placeholders
// are rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store"
)

// Migrations holds the schema migrations applied by core/database.
//
//go:embed migrations/*.sql
var Migrations embed.FS

var _ store.Store = (*Store)(nil)

// Store is the SQL entity store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an open connection. The schema must already be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const userColumns = `id, username, password, chat_id, telegram_username, role, is_accepted, created_at`

func (s *Store) getUser(ctx context.Context, what string, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", what, err)
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, id, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, fmt.Sprintf("%q", username), `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *Store) FindUserByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	return s.getUser(ctx, fmt.Sprintf("chat=%d", chatID), `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
}

func (s *Store) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	u := domain.User{
		ID:               uuid.New().String(),
		Username:         in.Username,
		Password:         in.Password,
		ChatID:           in.ChatID,
		TelegramUsername: in.TelegramUsername,
		Role:             domain.RoleMember,
		CreatedAt:        s.now(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, username, password, chat_id, telegram_username, role, is_accepted, created_at)
		VALUES (:id, :username, :password, :chat_id, :telegram_username, :role, :is_accepted, :created_at)`, u)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %q: %w", in.Username, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) BindUserChat(ctx context.Context, id string, chatID int64, telegramUsername string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users
		SET chat_id = ?, telegram_username = CASE WHEN ? = '' THEN telegram_username ELSE ? END
		WHERE id = ?`), chatID, telegramUsername, telegramUsername, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bind chat %d: %w", chatID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("bind user chat: %w", err)
	}
	return expectAffected(res, "user "+id)
}

func (s *Store) ApproveUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET is_accepted = TRUE WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("approve user: %w", err)
	}
	return expectAffected(res, "user "+id)
}

func (s *Store) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET role = ? WHERE id = ?`), string(role), id)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return expectAffected(res, "user "+id)
}

func (s *Store) FindPendingUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE is_accepted = FALSE ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("find pending users: %w", err)
	}
	return users, nil
}

const groupSelect = `
	SELECT g.id, g.name, g.created_at,
	       (SELECT COUNT(*) FROM user_groups ug WHERE ug.group_id = g.id) AS member_count
	FROM expense_groups g`

func (s *Store) getGroup(ctx context.Context, what, query string, args ...any) (*domain.Group, error) {
	var g domain.Group
	err := s.db.GetContext(ctx, &g, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", what, err)
	}
	return &g, nil
}

func (s *Store) FindGroupByName(ctx context.Context, name string) (*domain.Group, error) {
	return s.getGroup(ctx, fmt.Sprintf("%q", name), groupSelect+` WHERE g.name = ?`, name)
}

func (s *Store) FindGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	return s.getGroup(ctx, id, groupSelect+` WHERE g.id = ?`, id)
}

func (s *Store) CreateGroup(ctx context.Context, name string) (*domain.Group, error) {
	g := domain.Group{ID: uuid.New().String(), Name: name, CreatedAt: s.now()}
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO expense_groups (id, name, created_at) VALUES (?, ?, ?)`),
		g.ID, g.Name, g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create group %q: %w", name, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	if err := s.db.SelectContext(ctx, &groups, groupSelect+` ORDER BY g.name`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

const membershipSelect = `
	SELECT ug.id, ug.user_id, ug.group_id, ug.is_accepted, u.username, g.name AS group_name
	FROM user_groups ug
	JOIN users u ON u.id = ug.user_id
	JOIN expense_groups g ON g.id = ug.group_id`

func (s *Store) CreateMembership(ctx context.Context, userID, groupID string) (*domain.Membership, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO user_groups (id, user_id, group_id, is_accepted) VALUES (?, ?, ?, FALSE)`),
		id, userID, groupID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("membership %s/%s: %w", userID, groupID, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return s.FindMembershipByID(ctx, id)
}

func (s *Store) getMembership(ctx context.Context, what, query string, args ...any) (*domain.Membership, error) {
	var m domain.Membership
	err := s.db.GetContext(ctx, &m, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get membership %s: %w", what, err)
	}
	return &m, nil
}

func (s *Store) FindMembership(ctx context.Context, userID, groupID string) (*domain.Membership, error) {
	return s.getMembership(ctx, userID+"/"+groupID,
		membershipSelect+` WHERE ug.user_id = ? AND ug.group_id = ?`, userID, groupID)
}

func (s *Store) FindMembershipByID(ctx context.Context, id string) (*domain.Membership, error) {
	return s.getMembership(ctx, id, membershipSelect+` WHERE ug.id = ?`, id)
}

func (s *Store) ApproveMembership(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE user_groups SET is_accepted = TRUE WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("approve membership: %w", err)
	}
	return expectAffected(res, "membership "+id)
}

func (s *Store) ListMembershipsForUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	var out []domain.Membership
	err := s.db.SelectContext(ctx, &out,
		s.db.Rebind(membershipSelect+` WHERE ug.user_id = ? ORDER BY g.name`), userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

func (s *Store) ListPendingMemberships(ctx context.Context, groupIDs []string, excludingUserID string) ([]domain.Membership, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(membershipSelect+`
		WHERE ug.is_accepted = FALSE AND ug.user_id <> ? AND ug.group_id IN (?)
		ORDER BY g.name, u.username`, excludingUserID, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("build pending memberships query: %w", err)
	}
	var out []domain.Membership
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list pending memberships: %w", err)
	}
	return out, nil
}

func (s *Store) ListUsersInGroup(ctx context.Context, groupID string) ([]domain.User, error) {
	var users []domain.User
	err := s.db.SelectContext(ctx, &users, s.db.Rebind(`
		SELECT u.id, u.username, u.password, u.chat_id, u.telegram_username, u.role, u.is_accepted, u.created_at
		FROM users u
		JOIN user_groups ug ON ug.user_id = u.id
		WHERE ug.group_id = ?
		ORDER BY u.username`), groupID)
	if err != nil {
		return nil, fmt.Errorf("list users in group: %w", err)
	}
	return users, nil
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
