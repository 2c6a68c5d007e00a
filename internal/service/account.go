package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"promocode-service/internal/auth"
	"promocode-service/internal/mailer"
	"promocode-service/internal/model"
	"promocode-service/internal/policy"
	"promocode-service/internal/repository"
)

// Account errors.
var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrUserNotFound       = errors.New("user not found")
)

// temporaryPasswordLength is the length of generated onboarding passwords.
const temporaryPasswordLength = 8

// DashboardStats are the admin dashboard counters.
type DashboardStats struct {
	Competitors int64 `json:"competitors"`
	Redemptions int64 `json:"redemptions"`
	Codes       int64 `json:"codes"`
}

// AccountService handles registration, login checks and admin user
// management. It is a collaborator around the redemption core.
type AccountService struct {
	userRepo       *repository.UserRepository
	redemptionRepo *repository.RedemptionRepository
	codeRepo       *repository.PromoCodeRepository
	mailer         mailer.Mailer
	bcryptCost     int
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	userRepo *repository.UserRepository,
	redemptionRepo *repository.RedemptionRepository,
	codeRepo *repository.PromoCodeRepository,
	m mailer.Mailer,
	bcryptCost int,
) *AccountService {
	return &AccountService{
		userRepo:       userRepo,
		redemptionRepo: redemptionRepo,
		codeRepo:       codeRepo,
		mailer:         m,
		bcryptCost:     bcryptCost,
	}
}

// Register self-registers a new competitor account.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	return s.createUser(ctx, name, email, password, model.RoleCompetitor)
}

// CreateUser creates an account with an explicit role. Admin operation.
func (s *AccountService) CreateUser(ctx context.Context, name, email, password, role string) (*model.User, error) {
	switch role {
	case model.RoleCompetitor, model.RoleSponsor, model.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.createUser(ctx, name, email, password, role)
}

func (s *AccountService) createUser(ctx context.Context, name, email, password, role string) (*model.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.Create(ctx, name, email, hash, role)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	log.Info().
		Int64("user_id", user.ID).
		Str("role", user.Role).
		Msg("User created")

	return user, nil
}

// OnboardCompetitor creates a competitor with a generated temporary
// password and hands the credentials payload to the mailer collaborator.
// Mail delivery failure is non-fatal: the account already exists and the
// password can be reset out of band.
func (s *AccountService) OnboardCompetitor(ctx context.Context, name, email string) (*model.User, error) {
	password, err := policy.GenerateCode(temporaryPasswordLength)
	if err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, name, email, password, model.RoleCompetitor)
	if err != nil {
		return nil, err
	}

	payload := mailer.CredentialsPayload{
		Name:              user.Name,
		Email:             user.Email,
		TemporaryPassword: password,
	}
	if err := s.mailer.SendCredentials(ctx, payload); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to send credentials email")
	}

	return user, nil
}

// Authenticate verifies email/password and returns the account.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves an account by ID.
func (s *AccountService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListCompetitors retrieves all competitor accounts.
func (s *AccountService) ListCompetitors(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListCompetitors(ctx)
}

// Dashboard returns the admin dashboard counters.
func (s *AccountService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	competitors, err := s.userRepo.CountCompetitors(ctx)
	if err != nil {
		return nil, err
	}
	redemptions, err := s.redemptionRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	codes, err := s.codeRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		Competitors: competitors,
		Redemptions: redemptions,
		Codes:       codes,
	}, nil
}
