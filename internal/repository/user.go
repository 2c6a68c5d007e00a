package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"promocode-service/internal/model"
)

const userColumns = "id, name, email, password_hash, role, score, created_at, updated_at"

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Score,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user with a zero score.
func (r *UserRepository) Create(ctx context.Context, name, email, passwordHash, role string) (*model.User, error) {
	const query = `
		INSERT INTO users (name, email, password_hash, role, score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, name, email, passwordHash, role))
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// IncrementScore adds delta to a user's running score. It runs on the given
// Querier so the redemption engine can call it inside its transaction.
func (r *UserRepository) IncrementScore(ctx context.Context, q Querier, userID int64, delta int64) error {
	const query = `
		UPDATE users
		SET score = score + $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to increment score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetTopCompetitors retrieves the top N competitors by score. Ties are
// broken by user id so the ordering is deterministic.
func (r *UserRepository) GetTopCompetitors(ctx context.Context, limit int) ([]*model.RankEntry, error) {
	const query = `
		SELECT name, score
		FROM users
		WHERE role = $1
		ORDER BY score DESC, id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, model.RoleCompetitor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top competitors: %w", err)
	}
	defer rows.Close()

	var entries []*model.RankEntry
	for rows.Next() {
		var e model.RankEntry
		if err := rows.Scan(&e.Name, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan rank entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rank entries: %w", err)
	}
	return entries, nil
}

// ListCompetitors retrieves all competitor accounts.
func (r *UserRepository) ListCompetitors(ctx context.Context) ([]*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, model.RoleCompetitor)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.PasswordHash,
			&u.Role,
			&u.Score,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// CountCompetitors returns the number of competitor accounts.
func (r *UserRepository) CountCompetitors(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, model.RoleCompetitor).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count competitors: %w", err)
	}
	return count, nil
}
