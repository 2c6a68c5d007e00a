// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"promocode-service/internal/model"
	"promocode-service/internal/pkg/lock"
	"promocode-service/internal/repository"
)

// Business errors for redemption operations.
var (
	ErrCodeNotFound    = errors.New("promotional code not found")
	ErrAlreadyRedeemed = errors.New("code already redeemed by this user")
	ErrLimitReached    = errors.New("code redemption limit reached")
	ErrPointsExhausted = errors.New("code points exhausted")
	ErrConflict        = errors.New("redemption conflicted with concurrent attempts")
)

// RedemptionEngine decides eligibility, computes the award, mutates the
// code's remaining capacity and commits the ledger entry plus the score
// increment, all in one transaction per attempt. The code row is locked
// for the duration of the transaction, so redemptions against one code are
// serialized; the ledger's (user_id, code_id) unique constraint blocks
// same-user races independently of the lock.
type RedemptionEngine struct {
	pool           *pgxpool.Pool
	codeRepo       *repository.PromoCodeRepository
	redemptionRepo *repository.RedemptionRepository
	userRepo       *repository.UserRepository
	codeLock       *lock.CodeLock
	maxRetries     int
}

// NewRedemptionEngine creates a new RedemptionEngine instance.
func NewRedemptionEngine(
	pool *pgxpool.Pool,
	codeRepo *repository.PromoCodeRepository,
	redemptionRepo *repository.RedemptionRepository,
	userRepo *repository.UserRepository,
	codeLock *lock.CodeLock,
	maxRetries int,
) *RedemptionEngine {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RedemptionEngine{
		pool:           pool,
		codeRepo:       codeRepo,
		redemptionRepo: redemptionRepo,
		userRepo:       userRepo,
		codeLock:       codeLock,
		maxRetries:     maxRetries,
	}
}

// Redeem redeems the code identified by its code string for the given user.
// Transient write conflicts are retried a bounded number of times before
// being surfaced as ErrConflict.
func (e *RedemptionEngine) Redeem(ctx context.Context, code string, userID int64) (*model.Redemption, error) {
	e.codeLock.Lock(code)
	defer e.codeLock.Unlock(code)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		red, err := e.redeemOnce(ctx, code, userID)
		if err == nil {
			return red, nil
		}
		if !repository.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		log.Warn().
			Str("code", code).
			Int64("user_id", userID).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Redemption write conflict, retrying")
	}

	return nil, fmt.Errorf("%w: %w", ErrConflict, lastErr)
}

// redeemOnce runs a single transactional redemption attempt.
func (e *RedemptionEngine) redeemOnce(ctx context.Context, code string, userID int64) (*model.Redemption, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin redemption transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	pc, err := e.codeRepo.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	redeemed, err := e.redemptionRepo.Exists(ctx, tx, userID, pc.ID)
	if err != nil {
		return nil, err
	}
	if redeemed {
		return nil, ErrAlreadyRedeemed
	}

	award, remainingRedemptions, remainingPoints, err := evaluate(pc)
	if err != nil {
		return nil, err
	}

	if pc.Mode != model.ModeSingleUse {
		if err := e.codeRepo.UpdateCapacity(ctx, tx, pc.ID, remainingRedemptions, remainingPoints); err != nil {
			return nil, err
		}
	}

	red, err := e.redemptionRepo.Create(ctx, tx, userID, pc.ID, award)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRedemption) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, err
	}

	if err := e.userRepo.IncrementScore(ctx, tx, userID, award); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	log.Info().
		Str("code", code).
		Int64("user_id", userID).
		Int64("points_awarded", award).
		Str("mode", string(pc.Mode)).
		Msg("Code redeemed")

	return red, nil
}

// evaluate applies the mode predicate to a locked code and, when eligible,
// returns the award plus the code's updated capacity fields.
func evaluate(pc *model.PromoCode) (award, remainingRedemptions, remainingPoints int64, err error) {
	remainingRedemptions = pc.RemainingRedemptions
	remainingPoints = pc.RemainingPoints

	switch pc.Mode {
	case model.ModeLimitedCount:
		if pc.RemainingRedemptions <= 0 {
			return 0, remainingRedemptions, remainingPoints, ErrLimitReached
		}
		award = pc.BasePoints
		remainingRedemptions--

	case model.ModeDecaying:
		if pc.RemainingPoints <= 0 {
			return 0, remainingRedemptions, remainingPoints, ErrPointsExhausted
		}
		// The award is the pre-decay value, not the decay step.
		award = pc.RemainingPoints
		remainingPoints -= pc.DecayStep
		if remainingPoints < 0 {
			remainingPoints = 0
		}

	default:
		// Single-use: no capacity to consume, the per-user ledger check is
		// the only gate.
		award = pc.BasePoints
	}

	return award, remainingRedemptions, remainingPoints, nil
}

// redeemable reports whether anyone could still redeem the code in
// principle. It does not consult the per-user ledger.
func redeemable(pc *model.PromoCode) bool {
	switch pc.Mode {
	case model.ModeLimitedCount:
		return pc.RemainingRedemptions > 0
	case model.ModeDecaying:
		return pc.RemainingPoints > 0
	default:
		return true
	}
}

// IsRedeemable reports whether the code still has capacity for redemption
// by some user. Used by administrative tooling to preview code health.
func (e *RedemptionEngine) IsRedeemable(ctx context.Context, codeID int64) (bool, error) {
	pc, err := e.codeRepo.GetByID(ctx, codeID)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return false, ErrCodeNotFound
		}
		return false, err
	}
	return redeemable(pc), nil
}
