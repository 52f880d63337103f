package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store"
)

// UserDirectory implements store.UserDirectory using PostgreSQL.
type UserDirectory struct {
	pool *pgxpool.Pool
}

var _ store.UserDirectory = (*UserDirectory)(nil)

// NewUserDirectory creates a PostgreSQL-backed user directory.
// It shares the connection pool with the account store.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.UserID, &u.CompanyID, &u.Name, &u.Email, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Get retrieves a user by ID.
func (d *UserDirectory) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := scanUser(d.pool.QueryRow(ctx, `
		SELECT user_id, company_id, name, email, active, created_at, updated_at
		FROM users
		WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", mapPostgresError(err))
	}
	return user, nil
}

// ListActiveUsers returns active users of a company ordered by name.
func (d *UserDirectory) ListActiveUsers(ctx context.Context, companyID uuid.UUID, excluding ...uuid.UUID) ([]*models.User, error) {
	if excluding == nil {
		excluding = []uuid.UUID{}
	}

	rows, err := d.pool.Query(ctx, `
		SELECT user_id, company_id, name, email, active, created_at, updated_at
		FROM users
		WHERE company_id = $1 AND active AND NOT (user_id = ANY($2))
		ORDER BY name, user_id`, companyID, excluding)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", mapPostgresError(err))
	}
	return users, nil
}

// Upsert creates or replaces a user.
func (d *UserDirectory) Upsert(ctx context.Context, user *models.User) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO users (user_id, company_id, name, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			active = EXCLUDED.active,
			updated_at = now()`,
		user.UserID, user.CompanyID, user.Name, user.Email, user.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", mapPostgresError(err))
	}

	log.Debug().Str("user_id", user.UserID.String()).Str("company_id", user.CompanyID.String()).Msg("Upserted user")
	return nil
}
