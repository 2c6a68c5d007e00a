package service

import (
	"context"
	"strings"

	"promocode-service/internal/model"
	"promocode-service/internal/repository"
)

// maskChar replaces the hidden part of a code in history views.
const maskChar = "#"

// RankingService handles aggregate score views: the competitor ranking, a
// competitor's total score and their masked redemption history. It only
// reads; all score mutation happens in the redemption engine.
type RankingService struct {
	userRepo       *repository.UserRepository
	redemptionRepo *repository.RedemptionRepository
	limit          int
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(userRepo *repository.UserRepository, redemptionRepo *repository.RedemptionRepository, limit int) *RankingService {
	if limit < 1 {
		limit = 10
	}
	return &RankingService{
		userRepo:       userRepo,
		redemptionRepo: redemptionRepo,
		limit:          limit,
	}
}

// TopCompetitors retrieves the highest-scoring competitors, descending,
// ties broken deterministically by account creation order.
func (s *RankingService) TopCompetitors(ctx context.Context) ([]*model.RankEntry, error) {
	return s.userRepo.GetTopCompetitors(ctx, s.limit)
}

// UserScore returns a competitor's total score as the sum of their ledger
// entries. The ledger, not the denormalized counter, is the source of
// truth here.
func (s *RankingService) UserScore(ctx context.Context, userID int64) (int64, error) {
	return s.redemptionRepo.SumPointsByUser(ctx, userID)
}

// UserHistory retrieves a competitor's redemptions, newest first, with the
// code's display identifier masked.
func (s *RankingService) UserHistory(ctx context.Context, userID int64) ([]*model.HistoryEntry, error) {
	entries, err := s.redemptionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history := make([]*model.HistoryEntry, 0, len(entries))
	for i, e := range entries {
		history = append(history, &model.HistoryEntry{
			Position:   i + 1,
			Code:       MaskCode(e.Code),
			RedeemedAt: e.CreatedAt,
		})
	}
	return history, nil
}

// MaskCode shows the first 3 characters of a code verbatim and replaces
// the rest with the mask character. Codes of length 3 or less are shown
// unmasked.
func MaskCode(code string) string {
	if len(code) <= 3 {
		return code
	}
	return code[:3] + strings.Repeat(maskChar, len(code)-3)
}
