package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdminUsersStore backs the admin customer directory.
type AdminUsersStore struct {
	pool *pgxpool.Pool
}

func NewAdminUsersStore(pool *pgxpool.Pool) *AdminUsersStore {
	return &AdminUsersStore{pool: pool}
}

// ListUsers pages through accounts whose name or email contains keyword,
// newest first.
func (s *AdminUsersStore) ListUsers(ctx context.Context, keyword string, page, perPage int) (domain.UserPage, error) {
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	if page < 1 {
		page = 1
	}
	pattern := likePattern(strings.TrimSpace(keyword))

	var total int
	const countQ = `SELECT count(*) FROM users WHERE name ILIKE $1 OR email ILIKE $1`
	if err := s.pool.QueryRow(ctx, countQ, pattern).Scan(&total); err != nil {
		return domain.UserPage{}, fmt.Errorf("count users: %w", err)
	}

	q := `SELECT ` + userColumns + `
		FROM users
		WHERE name ILIKE $1 OR email ILIKE $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, q, pattern, perPage, perPage*(page-1))
	if err != nil {
		return domain.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := domain.UserPage{Users: []domain.User{}, Page: page, Pages: pageCount(total, perPage)}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return domain.UserPage{}, fmt.Errorf("scan user: %w", err)
		}
		out.Users = append(out.Users, u)
	}
	if err := rows.Err(); err != nil {
		return domain.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *AdminUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return NewUsersStore(s.pool).GetUserByID(ctx, id)
}

// DeleteUser removes an account and its sessions. Accounts that placed
// orders are kept.
func (s *AdminUsersStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Invalid("User has orders and cannot be deleted")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
