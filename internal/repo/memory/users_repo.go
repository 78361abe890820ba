package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/google/uuid"
)

type storedUser struct {
	user         user.User
	passwordHash string
}

// UsersRepo keeps users in process memory, keyed by normalized email.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]storedUser
	now   func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]storedUser),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	key := user.NormalizeEmail(nu.Email)

	u := user.User{
		ID:       uuid.NewString(),
		Profile:  nu.Profile,
		JoinedAt: r.now(),
	}
	u.Email = key
	if u.Role == "" {
		u.Role = user.RoleStudent
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[key]; exists {
		return user.User{}, user.ErrDuplicateUser
	}
	r.items[key] = storedUser{user: u, passwordHash: nu.PasswordHash}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	u, _, err := r.GetCredentials(ctx, email)
	return u, err
}

func (r *UsersRepo) GetCredentials(ctx context.Context, email string) (user.User, string, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, "", err
	}

	r.mu.RLock()
	s, ok := r.items[user.NormalizeEmail(email)]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, "", user.ErrNotFound
	}
	return s.user, s.passwordHash, nil
}

func (r *UsersRepo) ListByRoles(ctx context.Context, roles []user.Role) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]user.User, 0)
	for _, s := range r.items {
		if slices.Contains(roles, s.user.Role) {
			out = append(out, s.user)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})

	return out, nil
}

// Ping always succeeds; it lets the memory store stand in for readiness checks.
func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}
