// Package memstore is an in-process store.Store used by tests and the
// --memory development mode.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilyosbek9531/expense-tracker-bot/internal/domain"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps entities in maps guarded by a single mutex.
type Store struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	groups      map[string]domain.Group
	memberships map[string]domain.Membership
	expenses    []domain.Expense
	now         func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		groups:      make(map[string]domain.Group),
		memberships: make(map[string]domain.Membership),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SeedUser inserts a fully specified user, generating an ID when empty.
func (s *Store) SeedUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) FindUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

func (s *Store) FindUserByChatID(_ context.Context, chatID int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ChatID == chatID {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user with chat %d: %w", chatID, domain.ErrNotFound)
}

func (s *Store) CreateUser(_ context.Context, in domain.NewUser) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			return nil, fmt.Errorf("username %q: %w", in.Username, domain.ErrAlreadyExists)
		}
		if u.ChatID == in.ChatID {
			return nil, fmt.Errorf("chat %d: %w", in.ChatID, domain.ErrAlreadyExists)
		}
	}
	u := domain.User{
		ID:               uuid.New().String(),
		Username:         in.Username,
		Password:         in.Password,
		ChatID:           in.ChatID,
		TelegramUsername: in.TelegramUsername,
		Role:             domain.RoleMember,
		CreatedAt:        s.now(),
	}
	s.users[u.ID] = u
	return &u, nil
}

func (s *Store) BindUserChat(_ context.Context, id string, chatID int64, telegramUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	for _, other := range s.users {
		if other.ID != id && other.ChatID == chatID {
			return fmt.Errorf("chat %d: %w", chatID, domain.ErrAlreadyExists)
		}
	}
	u.ChatID = chatID
	if telegramUsername != "" {
		u.TelegramUsername = telegramUsername
	}
	s.users[id] = u
	return nil
}

func (s *Store) ApproveUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	u.IsAccepted = true
	s.users[id] = u
	return nil
}

func (s *Store) SetUserRole(_ context.Context, id string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	u.Role = role
	s.users[id] = u
	return nil
}

func (s *Store) FindPendingUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, u := range s.users {
		if !u.IsAccepted {
			out = append(out, u)
		}
	}
	sortUsers(out)
	return out, nil
}

func (s *Store) FindGroupByName(_ context.Context, name string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.Name == name {
			g.MemberCount = s.memberCountLocked(g.ID)
			return &g, nil
		}
	}
	return nil, fmt.Errorf("group %q: %w", name, domain.ErrNotFound)
}

func (s *Store) FindGroupByID(_ context.Context, id string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, domain.ErrNotFound)
	}
	g.MemberCount = s.memberCountLocked(g.ID)
	return &g, nil
}

func (s *Store) CreateGroup(_ context.Context, name string) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.Name == name {
			return nil, fmt.Errorf("group %q: %w", name, domain.ErrAlreadyExists)
		}
	}
	g := domain.Group{ID: uuid.New().String(), Name: name, CreatedAt: s.now()}
	s.groups[g.ID] = g
	return &g, nil
}

func (s *Store) ListGroups(_ context.Context) ([]domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Group, 0, len(s.groups))
	for _, g := range s.groups {
		g.MemberCount = s.memberCountLocked(g.ID)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) memberCountLocked(groupID string) int {
	n := 0
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			n++
		}
	}
	return n
}

func (s *Store) CreateMembership(_ context.Context, userID, groupID string) (*domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	for _, m := range s.memberships {
		if m.UserID == userID && m.GroupID == groupID {
			return nil, fmt.Errorf("membership %s/%s: %w", userID, groupID, domain.ErrAlreadyExists)
		}
	}
	m := domain.Membership{ID: uuid.New().String(), UserID: userID, GroupID: groupID}
	s.memberships[m.ID] = m
	m.GroupName = g.Name
	m.Username = s.users[userID].Username
	return &m, nil
}

func (s *Store) FindMembership(_ context.Context, userID, groupID string) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.GroupID == groupID {
			return s.decorateLocked(m), nil
		}
	}
	return nil, fmt.Errorf("membership %s/%s: %w", userID, groupID, domain.ErrNotFound)
}

func (s *Store) FindMembershipByID(_ context.Context, id string) (*domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[id]
	if !ok {
		return nil, fmt.Errorf("membership %s: %w", id, domain.ErrNotFound)
	}
	return s.decorateLocked(m), nil
}

func (s *Store) decorateLocked(m domain.Membership) *domain.Membership {
	m.Username = s.users[m.UserID].Username
	m.GroupName = s.groups[m.GroupID].Name
	return &m
}

func (s *Store) ApproveMembership(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[id]
	if !ok {
		return fmt.Errorf("membership %s: %w", id, domain.ErrNotFound)
	}
	m.IsAccepted = true
	s.memberships[id] = m
	return nil
}

func (s *Store) ListMembershipsForUser(_ context.Context, userID string) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, *s.decorateLocked(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupName < out[j].GroupName })
	return out, nil
}

func (s *Store) ListPendingMemberships(_ context.Context, groupIDs []string, excludingUserID string) ([]domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = struct{}{}
	}
	var out []domain.Membership
	for _, m := range s.memberships {
		if m.IsAccepted || m.UserID == excludingUserID {
			continue
		}
		if _, ok := wanted[m.GroupID]; !ok {
			continue
		}
		out = append(out, *s.decorateLocked(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupName != out[j].GroupName {
			return out[i].GroupName < out[j].GroupName
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Store) ListUsersInGroup(_ context.Context, groupID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.User
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			if u, ok := s.users[m.UserID]; ok {
				out = append(out, u)
			}
		}
	}
	sortUsers(out)
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, in domain.NewExpense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(in.VictimIDs) == 0 || !in.Amount.IsPositive() {
		return nil, fmt.Errorf("expense: %w", domain.ErrInvalidInput)
	}
	if _, ok := s.users[in.OwnerID]; !ok {
		return nil, fmt.Errorf("owner %s: %w", in.OwnerID, domain.ErrNotFound)
	}
	if _, ok := s.groups[in.GroupID]; !ok {
		return nil, fmt.Errorf("group %s: %w", in.GroupID, domain.ErrNotFound)
	}
	for _, id := range in.VictimIDs {
		if _, ok := s.users[id]; !ok {
			return nil, fmt.Errorf("victim %s: %w", id, domain.ErrNotFound)
		}
	}
	e := domain.Expense{
		ID:          uuid.New().String(),
		Amount:      in.Amount,
		Description: in.Description,
		OwnerID:     in.OwnerID,
		GroupID:     in.GroupID,
		VictimIDs:   append([]string(nil), in.VictimIDs...),
		CreatedAt:   s.now(),
	}
	s.expenses = append(s.expenses, e)
	return &e, nil
}

func (s *Store) ListUnsettledExpensesForGroup(_ context.Context, groupID string) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Expense
	for _, e := range s.expenses {
		if e.GroupID != groupID || e.IsSettled {
			continue
		}
		e.VictimIDs = append([]string(nil), e.VictimIDs...)
		e.Owner = s.users[e.OwnerID]
		e.Victims = make([]domain.User, 0, len(e.VictimIDs))
		for _, id := range e.VictimIDs {
			e.Victims = append(e.Victims, s.users[id])
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) MarkGroupExpensesSettled(_ context.Context, groupID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.expenses {
		if s.expenses[i].GroupID == groupID && !s.expenses[i].IsSettled {
			s.expenses[i].IsSettled = true
			n++
		}
	}
	return n, nil
}

// ExpenseCount reports how many expenses were stored, settled or not.
func (s *Store) ExpenseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expenses)
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}
