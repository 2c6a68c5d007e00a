package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"promocode-service/internal/model"
)

const codeColumns = "id, code, base_points, mode, remaining_redemptions, remaining_points, decay_step, issuer_id, deleted_at, created_at, updated_at"

// PromoCodeRepository handles promotional code persistence. Codes are soft
// deleted: the row (and its code string) is retained for ledger integrity
// and permanent uniqueness.
type PromoCodeRepository struct {
	pool *pgxpool.Pool
}

// NewPromoCodeRepository creates a new PromoCodeRepository instance.
func NewPromoCodeRepository(pool *pgxpool.Pool) *PromoCodeRepository {
	return &PromoCodeRepository{pool: pool}
}

func scanCode(row pgx.Row) (*model.PromoCode, error) {
	var pc model.PromoCode
	err := row.Scan(
		&pc.ID,
		&pc.Code,
		&pc.BasePoints,
		&pc.Mode,
		&pc.RemainingRedemptions,
		&pc.RemainingPoints,
		&pc.DecayStep,
		&pc.IssuerID,
		&pc.DeletedAt,
		&pc.CreatedAt,
		&pc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// Create inserts a validated promotional code.
// Returns ErrDuplicateCode when the code string is already taken, including
// by a soft-deleted code.
func (r *PromoCodeRepository) Create(ctx context.Context, pc *model.PromoCode) (*model.PromoCode, error) {
	const query = `
		INSERT INTO promo_codes
			(code, base_points, mode, remaining_redemptions, remaining_points, decay_step, issuer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + codeColumns

	created, err := scanCode(r.pool.QueryRow(ctx, query,
		pc.Code,
		pc.BasePoints,
		pc.Mode,
		pc.RemainingRedemptions,
		pc.RemainingPoints,
		pc.DecayStep,
		pc.IssuerID,
	))
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}
	return created, nil
}

// GetByID retrieves a non-deleted code by ID.
// Returns ErrCodeNotFound if absent or soft-deleted.
func (r *PromoCodeRepository) GetByID(ctx context.Context, id int64) (*model.PromoCode, error) {
	const query = `SELECT ` + codeColumns + ` FROM promo_codes WHERE id = $1 AND deleted_at IS NULL`

	pc, err := scanCode(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return pc, nil
}

// GetByCode retrieves a non-deleted code by its code string.
// Returns ErrCodeNotFound if absent or soft-deleted.
func (r *PromoCodeRepository) GetByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	const query = `SELECT ` + codeColumns + ` FROM promo_codes WHERE code = $1 AND deleted_at IS NULL`

	pc, err := scanCode(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	return pc, nil
}

// GetByCodeForUpdate retrieves a non-deleted code by its code string and
// row-locks it for the duration of the transaction. This is the entry point
// of the redemption engine's read-modify-write.
func (r *PromoCodeRepository) GetByCodeForUpdate(ctx context.Context, q Querier, code string) (*model.PromoCode, error) {
	const query = `SELECT ` + codeColumns + ` FROM promo_codes WHERE code = $1 AND deleted_at IS NULL FOR UPDATE`

	pc, err := scanCode(q.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to lock promo code: %w", err)
	}
	return pc, nil
}

// UpdateCapacity writes the remaining capacity fields of a code. Called by
// the redemption engine inside its transaction, after the row lock.
func (r *PromoCodeRepository) UpdateCapacity(ctx context.Context, q Querier, id int64, remainingRedemptions, remainingPoints int64) error {
	const query = `
		UPDATE promo_codes
		SET remaining_redemptions = $2, remaining_points = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	tag, err := q.Exec(ctx, query, id, remainingRedemptions, remainingPoints)
	if err != nil {
		return fmt.Errorf("failed to update code capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}

// Update rewrites the issuance parameters of an existing code.
func (r *PromoCodeRepository) Update(ctx context.Context, pc *model.PromoCode) (*model.PromoCode, error) {
	const query = `
		UPDATE promo_codes
		SET code = $2, base_points = $3, mode = $4, remaining_redemptions = $5,
			remaining_points = $6, decay_step = $7, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + codeColumns

	updated, err := scanCode(r.pool.QueryRow(ctx, query,
		pc.ID,
		pc.Code,
		pc.BasePoints,
		pc.Mode,
		pc.RemainingRedemptions,
		pc.RemainingPoints,
		pc.DecayStep,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		if uniqueViolation(err, "") {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}
	return updated, nil
}

// SoftDelete marks a code deleted. The row is kept so that existing ledger
// entries stay valid and the code string stays reserved.
func (r *PromoCodeRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `
		UPDATE promo_codes
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete promo code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}

// List retrieves all non-deleted codes, oldest first.
func (r *PromoCodeRepository) List(ctx context.Context) ([]*model.PromoCode, error) {
	const query = `SELECT ` + codeColumns + ` FROM promo_codes WHERE deleted_at IS NULL ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	var codes []*model.PromoCode
	for rows.Next() {
		var pc model.PromoCode
		err := rows.Scan(
			&pc.ID,
			&pc.Code,
			&pc.BasePoints,
			&pc.Mode,
			&pc.RemainingRedemptions,
			&pc.RemainingPoints,
			&pc.DecayStep,
			&pc.IssuerID,
			&pc.DeletedAt,
			&pc.CreatedAt,
			&pc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promo code: %w", err)
		}
		codes = append(codes, &pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating promo codes: %w", err)
	}
	return codes, nil
}

// Count returns the number of codes, soft-deleted included.
func (r *PromoCodeRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM promo_codes`

	var count int64
	if err := r.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count promo codes: %w", err)
	}
	return count, nil
}
