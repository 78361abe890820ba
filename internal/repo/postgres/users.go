package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/geocoder89/younginnovators/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Rows are read as to_jsonb(u) so a column missing from an older schema
// decodes as absent and gets its default instead of failing the query.
const (
	rowJSON = `to_jsonb(u) - 'password_hash'`
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (user.User, error) {
	var raw []byte

	err := r.prom.ObserveDB("users.create", func() error {
		return r.pool.QueryRow(ctx, `
		INSERT INTO users AS u (
			email, password_hash, full_name, student_id, department, year_of_study,
			points, role, bio, expertise, availability, is_verified
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+rowJSON,
			user.NormalizeEmail(nu.Email), nu.PasswordHash, nu.FullName, nu.StudentID, nu.Department, nu.YearOfStudy,
			nu.Points, string(nu.Role), nu.Bio, nu.Expertise, nu.Availability, nu.IsVerified,
		).Scan(&raw)
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, user.ErrDuplicateUser
		}
		return user.User{}, storeErr("create user", err)
	}

	return decodeUser(raw)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var raw []byte

	err := r.prom.ObserveDB("users.get_by_email", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+rowJSON+` FROM users u WHERE u.email = $1`,
			user.NormalizeEmail(email),
		).Scan(&raw)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, storeErr("get user by email", err)
	}

	return decodeUser(raw)
}

// GetCredentials returns the user with its stored password hash for login checks.
func (r *UsersRepo) GetCredentials(ctx context.Context, email string) (user.User, string, error) {
	var (
		raw  []byte
		hash string
	)

	err := r.prom.ObserveDB("users.get_credentials", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT `+rowJSON+`, u.password_hash FROM users u WHERE u.email = $1`,
			user.NormalizeEmail(email),
		).Scan(&raw, &hash)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, "", user.ErrNotFound
		}
		return user.User{}, "", storeErr("get credentials", err)
	}

	u, err := decodeUser(raw)
	if err != nil {
		return user.User{}, "", err
	}
	return u, hash, nil
}

func (r *UsersRepo) ListByRoles(ctx context.Context, roles []user.Role) ([]user.User, error) {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}

	var raws [][]byte

	err := r.prom.ObserveDB("users.list_by_roles", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+rowJSON+`
			FROM users u
			WHERE COALESCE(u.role, 'student') = ANY($1)
			ORDER BY u.joined_at, u.id`,
			names,
		)
		if err != nil {
			return err
		}

		raws, err = pgx.CollectRows(rows, pgx.RowTo[[]byte])
		return err
	})

	if err != nil {
		return nil, storeErr("list users by roles", err)
	}

	out := make([]user.User, 0, len(raws))
	for _, raw := range raws {
		u, err := decodeUser(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func decodeUser(raw []byte) (user.User, error) {
	var p user.PartialUser
	if err := json.Unmarshal(raw, &p); err != nil {
		return user.User{}, fmt.Errorf("decode user row: %w", err)
	}
	return p.User(), nil
}

func storeErr(op string, err error) error {
	if observability.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, user.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
