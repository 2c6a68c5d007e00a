package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"promocode-service/internal/model"
)

// RedemptionRepository handles the append-only redemption ledger. Entries
// are created by the redemption engine and never updated or deleted; the
// (user_id, code_id) unique constraint is the double-redemption guard.
type RedemptionRepository struct {
	pool *pgxpool.Pool
}

// NewRedemptionRepository creates a new RedemptionRepository instance.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// RedemptionWithCode is a ledger entry joined with its code string, used by
// the history view.
type RedemptionWithCode struct {
	model.Redemption
	Code string `db:"code"`
}

// Create appends a ledger entry. It runs on the given Querier so the
// redemption engine can call it inside its transaction.
// Returns ErrDuplicateRedemption when the user already redeemed the code.
func (r *RedemptionRepository) Create(ctx context.Context, q Querier, userID, codeID, pointsAwarded int64) (*model.Redemption, error) {
	const query = `
		INSERT INTO redemptions (user_id, code_id, points_awarded, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, user_id, code_id, points_awarded, created_at
	`

	var red model.Redemption
	err := q.QueryRow(ctx, query, userID, codeID, pointsAwarded).Scan(
		&red.ID,
		&red.UserID,
		&red.CodeID,
		&red.PointsAwarded,
		&red.CreatedAt,
	)
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, ErrDuplicateRedemption
		}
		return nil, fmt.Errorf("failed to create redemption: %w", err)
	}
	return &red, nil
}

// Exists reports whether the user has already redeemed the code.
func (r *RedemptionRepository) Exists(ctx context.Context, q Querier, userID, codeID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM redemptions WHERE user_id = $1 AND code_id = $2)`

	var exists bool
	if err := q.QueryRow(ctx, query, userID, codeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check redemption existence: %w", err)
	}
	return exists, nil
}

// ListByUser retrieves a user's ledger entries with their code strings,
// newest first.
func (r *RedemptionRepository) ListByUser(ctx context.Context, userID int64) ([]*RedemptionWithCode, error) {
	const query = `
		SELECT r.id, r.user_id, r.code_id, r.points_awarded, r.created_at, c.code
		FROM redemptions r
		JOIN promo_codes c ON r.code_id = c.id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var entries []*RedemptionWithCode
	for rows.Next() {
		var e RedemptionWithCode
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.CodeID,
			&e.PointsAwarded,
			&e.CreatedAt,
			&e.Code,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}
	return entries, nil
}

// SumPointsByUser returns the sum of points awarded to a user across the
// whole ledger. This is the authoritative score; the denormalized counter
// on the user row must always agree with it.
func (r *RedemptionRepository) SumPointsByUser(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(points_awarded), 0) FROM redemptions WHERE user_id = $1`

	var total int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum redemption points: %w", err)
	}
	return total, nil
}

// Count returns the total number of ledger entries.
func (r *RedemptionRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM redemptions`

	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return count, nil
}
