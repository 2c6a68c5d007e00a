package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"promocode-service/internal/model"
	"promocode-service/internal/policy"
	"promocode-service/internal/repository"
)

// Code administration errors.
var (
	ErrCodeInUse        = errors.New("code already in use")
	ErrInvalidBulkCount = errors.New("invalid generation count")
	ErrCodeSpaceBusy    = errors.New("could not generate a unique code")
)

// CodeService handles issuance, update, soft deletion and listing of
// promotional codes. All writes go through the issuance policy validator.
type CodeService struct {
	codeRepo            *repository.PromoCodeRepository
	genLength           int
	maxCollisionRetries int
	maxBulkCount        int
}

// NewCodeService creates a new CodeService instance.
func NewCodeService(codeRepo *repository.PromoCodeRepository, genLength, maxCollisionRetries, maxBulkCount int) *CodeService {
	if genLength <= 0 {
		genLength = policy.DefaultCodeLength
	}
	if maxCollisionRetries < 1 {
		maxCollisionRetries = 5
	}
	if maxBulkCount < 1 {
		maxBulkCount = 1000
	}
	return &CodeService{
		codeRepo:            codeRepo,
		genLength:           genLength,
		maxCollisionRetries: maxCollisionRetries,
		maxBulkCount:        maxBulkCount,
	}
}

// Create validates and stores a code with an explicitly supplied code
// string. The code string must be unique forever, soft-deleted codes
// included.
func (s *CodeService) Create(ctx context.Context, in policy.CreateInput, issuerID int64) (*model.PromoCode, error) {
	if in.Code == "" {
		return nil, &policy.ValidationError{Fields: map[string]string{"code": "required"}}
	}

	pc, err := policy.Build(in, issuerID)
	if err != nil {
		return nil, err
	}

	created, err := s.codeRepo.Create(ctx, pc)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, ErrCodeInUse
		}
		return nil, err
	}

	log.Info().
		Str("code", created.Code).
		Str("mode", string(created.Mode)).
		Int64("issuer_id", issuerID).
		Msg("Promotional code created")

	return created, nil
}

// GenerateBatch creates count codes sharing one policy template, each with
// an independently generated random code string. A collision with an
// existing code triggers regeneration; codes are otherwise independent.
func (s *CodeService) GenerateBatch(ctx context.Context, count int, template policy.CreateInput, issuerID int64) ([]*model.PromoCode, error) {
	if count < 1 || count > s.maxBulkCount {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidBulkCount, s.maxBulkCount)
	}

	// Validate the template once up front so a bad policy fails before any
	// code is stored.
	probe := template
	probe.Code = "probe"
	if _, err := policy.Build(probe, issuerID); err != nil {
		return nil, err
	}

	codes := make([]*model.PromoCode, 0, count)
	for i := 0; i < count; i++ {
		pc, err := s.createGenerated(ctx, template, issuerID)
		if err != nil {
			return codes, err
		}
		codes = append(codes, pc)
	}

	log.Info().
		Int("count", len(codes)).
		Int64("issuer_id", issuerID).
		Msg("Promotional codes generated")

	return codes, nil
}

// createGenerated inserts one code with a fresh random code string,
// regenerating on collision up to the configured bound.
func (s *CodeService) createGenerated(ctx context.Context, template policy.CreateInput, issuerID int64) (*model.PromoCode, error) {
	for attempt := 0; attempt < s.maxCollisionRetries; attempt++ {
		code, err := policy.GenerateCode(s.genLength)
		if err != nil {
			return nil, err
		}

		in := template
		in.Code = code
		pc, err := policy.Build(in, issuerID)
		if err != nil {
			return nil, err
		}

		created, err := s.codeRepo.Create(ctx, pc)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, err
		}
		log.Debug().Str("code", code).Msg("Generated code collided, regenerating")
	}
	return nil, ErrCodeSpaceBusy
}

// Update re-validates and rewrites the issuance parameters of an existing
// code. Capacity fields are re-seeded from the new parameters.
func (s *CodeService) Update(ctx context.Context, id int64, in policy.CreateInput) (*model.PromoCode, error) {
	existing, err := s.codeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	if in.Code == "" {
		in.Code = existing.Code
	}
	pc, err := policy.Build(in, existing.IssuerID)
	if err != nil {
		return nil, err
	}
	pc.ID = existing.ID

	updated, err := s.codeRepo.Update(ctx, pc)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCodeNotFound):
			return nil, ErrCodeNotFound
		case errors.Is(err, repository.ErrDuplicateCode):
			return nil, ErrCodeInUse
		}
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes a code. The row is retained for ledger integrity.
func (s *CodeService) Delete(ctx context.Context, id int64) error {
	if err := s.codeRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return ErrCodeNotFound
		}
		return err
	}
	log.Info().Int64("code_id", id).Msg("Promotional code soft-deleted")
	return nil
}

// List retrieves all active codes.
func (s *CodeService) List(ctx context.Context) ([]*model.PromoCode, error) {
	return s.codeRepo.List(ctx)
}

// Get retrieves one active code by ID.
func (s *CodeService) Get(ctx context.Context, id int64) (*model.PromoCode, error) {
	pc, err := s.codeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return pc, nil
}
