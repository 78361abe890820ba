package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/younginnovators/internal/config"
	"github.com/geocoder89/younginnovators/internal/domain/user"
)

type SeedStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
}

type Hasher interface {
	Hash(plain string) (string, error)
}

// EnsureStaffUser creates the configured staff account when it does not exist yet.
// The account goes through the same registration policy as any other user.
func EnsureStaffUser(ctx context.Context, store SeedStore, hasher Hasher, seed config.SeedStaff, log *slog.Logger) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	_, err := store.GetByEmail(ctx, seed.Email)

	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	nu, err := user.Validate(user.RegisterRequest{
		Email:      seed.Email,
		Password:   seed.Password,
		FullName:   seed.FullName,
		Department: seed.Department,
		Role:       user.RoleStaff,
		IsVerified: true,
	})

	if err != nil {
		return fmt.Errorf("seed staff user: %w", err)
	}

	hash, err := hasher.Hash(nu.Password)

	if err != nil {
		return err
	}

	created, err := store.Create(ctx, nu.WithPasswordHash(hash))

	// another instance may have seeded it between the lookup and the insert
	if errors.Is(err, user.ErrDuplicateUser) {
		return nil
	}

	if err != nil {
		return err
	}

	log.InfoContext(ctx, "seeded staff user", "user_id", created.ID, "email", created.Email)

	return nil
}
