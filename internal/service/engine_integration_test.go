// Integration tests for the redemption engine against a real PostgreSQL
// instance, using testcontainers-go.
package service

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"promocode-service/internal/model"
	"promocode-service/internal/pkg/lock"
	"promocode-service/internal/repository"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runMigrations applies the database schema
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS promo_codes (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(255) NOT NULL UNIQUE,
			base_points BIGINT NOT NULL,
			mode VARCHAR(50) NOT NULL,
			remaining_redemptions BIGINT NOT NULL DEFAULT 0,
			remaining_points BIGINT NOT NULL DEFAULT 0,
			decay_step BIGINT NOT NULL DEFAULT 0,
			issuer_id BIGINT NOT NULL REFERENCES users(id),
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS redemptions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			code_id BIGINT NOT NULL REFERENCES promo_codes(id),
			points_awarded BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, code_id)
		)
	`)
	return err
}

// engineFixture bundles the engine with its repositories for tests.
type engineFixture struct {
	engine         *RedemptionEngine
	userRepo       *repository.UserRepository
	codeRepo       *repository.PromoCodeRepository
	redemptionRepo *repository.RedemptionRepository
}

func newEngineFixture(pool *pgxpool.Pool) *engineFixture {
	userRepo := repository.NewUserRepository(pool)
	codeRepo := repository.NewPromoCodeRepository(pool)
	redemptionRepo := repository.NewRedemptionRepository(pool)
	return &engineFixture{
		engine:         NewRedemptionEngine(pool, codeRepo, redemptionRepo, userRepo, lock.NewCodeLock(), 3),
		userRepo:       userRepo,
		codeRepo:       codeRepo,
		redemptionRepo: redemptionRepo,
	}
}

func (f *engineFixture) seedUser(t *testing.T, email, role string) *model.User {
	t.Helper()
	user, err := f.userRepo.Create(context.Background(), email, email, "hash", role)
	require.NoError(t, err)
	return user
}

func (f *engineFixture) seedCode(t *testing.T, pc *model.PromoCode) *model.PromoCode {
	t.Helper()
	created, err := f.codeRepo.Create(context.Background(), pc)
	require.NoError(t, err)
	return created
}

func TestRedemptionEngine_SingleUse(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	f := newEngineFixture(pool)
	ctx := context.Background()

	admin := f.seedUser(t, "admin@example.com", model.RoleAdmin)
	alice := f.seedUser(t, "alice@example.com", model.RoleCompetitor)
	bob := f.seedUser(t, "bob@example.com", model.RoleCompetitor)

	pc := f.seedCode(t, &model.PromoCode{
		Code:       "SINGLE",
		BasePoints: 100,
		Mode:       model.ModeSingleUse,
		IssuerID:   admin.ID,
	})

	// Any number of distinct users may redeem once each
	red, err := f.engine.Redeem(ctx, "SINGLE", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), red.PointsAwarded)

	red, err = f.engine.Redeem(ctx, "SINGLE", bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), red.PointsAwarded)

	// The same user is blocked by the ledger
	_, err = f.engine.Redeem(ctx, "SINGLE", alice.ID)
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	// No capacity field was consumed
	after, err := f.codeRepo.GetByID(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, pc.RemainingRedemptions, after.RemainingRedemptions)
	assert.Equal(t, pc.RemainingPoints, after.RemainingPoints)

	user, err := f.userRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), user.Score)
}

func TestRedemptionEngine_LimitedCountExhaustion(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	f := newEngineFixture(pool)
	ctx := context.Background()

	admin := f.seedUser(t, "admin@example.com", model.RoleAdmin)
	pc := f.seedCode(t, &model.PromoCode{
		Code:                 "LIMITED",
		BasePoints:           50,
		Mode:                 model.ModeLimitedCount,
		RemainingRedemptions: 2,
		IssuerID:             admin.ID,
	})

	u1 := f.seedUser(t, "u1@example.com", model.RoleCompetitor)
	u2 := f.seedUser(t, "u2@example.com", model.RoleCompetitor)
	u3 := f.seedUser(t, "u3@example.com", model.RoleCompetitor)

	_, err := f.engine.Redeem(ctx, "LIMITED", u1.ID)
	require.NoError(t, err)
	_, err = f.engine.Redeem(ctx, "LIMITED", u2.ID)
	require.NoError(t, err)

	// Capacity spent: the third distinct user is rejected
	_, err = f.engine.Redeem(ctx, "LIMITED", u3.ID)
	assert.ErrorIs(t, err, ErrLimitReached)

	after, err := f.codeRepo.GetByID(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.RemainingRedemptions)

	ok, err := f.engine.IsRedeemable(ctx, pc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedemptionEngine_DecayingSequence(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	f := newEngineFixture(pool)
	ctx := context.Background()

	admin := f.seedUser(t, "admin@example.com", model.RoleAdmin)
	f.seedCode(t, &model.PromoCode{
		Code:            "DECAY",
		BasePoints:      100,
		Mode:            model.ModeDecaying,
		RemainingPoints: 100,
		DecayStep:       30,
		IssuerID:        admin.ID,
	})

	// Awards follow the remaining pool before each decrement
	expected := []int64{100, 70, 40, 10}
	for i, want := range expected {
		user := f.seedUser(t, fmt.Sprintf("u%d@example.com", i), model.RoleCompetitor)
		red, err := f.engine.Redeem(ctx, "DECAY", user.ID)
		require.NoError(t, err)
		assert.Equal(t, want, red.PointsAwarded)
	}

	last := f.seedUser(t, "late@example.com", model.RoleCompetitor)
	_, err := f.engine.Redeem(ctx, "DECAY", last.ID)
	assert.ErrorIs(t, err, ErrPointsExhausted)
}

func TestRedemptionEngine_UnknownAndDeletedCodes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	f := newEngineFixture(pool)
	ctx := context.Background()

	admin := f.seedUser(t, "admin@example.com", model.RoleAdmin)
	alice := f.seedUser(t, "alice@example.com", model.RoleCompetitor)

	_, err := f.engine.Redeem(ctx, "NOPE", alice.ID)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	pc := f.seedCode(t, &model.PromoCode{
		Code:       "GONE",
		BasePoints: 10,
		Mode:       model.ModeSingleUse,
		IssuerID:   admin.ID,
	})
	require.NoError(t, f.codeRepo.SoftDelete(ctx, pc.ID))

	// Deleted codes behave like they never existed for redeemers
	_, err = f.engine.Redeem(ctx, "GONE", alice.ID)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

// TestRedemptionEngine_ConcurrentLimitedCount hammers one limited-count
// code with more users than it has capacity and verifies that exactly the
// advertised number succeed, without overdraw or double awards.
func TestRedemptionEngine_ConcurrentLimitedCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	f := newEngineFixture(pool)
	ctx := context.Background()

	const capacity = 5
	const contenders = 20

	admin := f.seedUser(t, "admin@example.com", model.RoleAdmin)
	pc := f.seedCode(t, &model.PromoCode{
		Code:                 "HOTCODE",
		BasePoints:           50,
		Mode:                 model.ModeLimitedCount,
		RemainingRedemptions: capacity,
		IssuerID:             admin.ID,
	})

	users := make([]*model.User, contenders)
	for i := range users {
		users[i] = f.seedUser(t, fmt.Sprintf("c%d@example.com", i), model.RoleCompetitor)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i, user := range users {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = f.engine.Redeem(ctx, "HOTCODE", userID)
		}(i, user.ID)
	}
	wg.Wait()

	var successes, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, ErrLimitReached)
			rejected++
		}
	}
	assert.Equal(t, capacity, successes)
	assert.Equal(t, contenders-capacity, rejected)

	after, err := f.codeRepo.GetByID(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.RemainingRedemptions)

	count, err := f.redemptionRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(capacity), count)
}

// TestRedemptionEngine_ScoreMatchesLedger verifies the denormalized score
// counter stays equal to the ledger sum across mixed redemptions.
func TestRedemptionEngine_ScoreMatchesLedger(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	f := newEngineFixture(pool)
	ctx := context.Background()

	admin := f.seedUser(t, "admin@example.com", model.RoleAdmin)
	alice := f.seedUser(t, "alice@example.com", model.RoleCompetitor)

	f.seedCode(t, &model.PromoCode{
		Code: "A1", BasePoints: 100, Mode: model.ModeSingleUse, IssuerID: admin.ID,
	})
	f.seedCode(t, &model.PromoCode{
		Code: "B2", BasePoints: 40, Mode: model.ModeLimitedCount,
		RemainingRedemptions: 5, IssuerID: admin.ID,
	})
	f.seedCode(t, &model.PromoCode{
		Code: "C3", BasePoints: 60, Mode: model.ModeDecaying,
		RemainingPoints: 60, DecayStep: 20, IssuerID: admin.ID,
	})

	for _, code := range []string{"A1", "B2", "C3"} {
		_, err := f.engine.Redeem(ctx, code, alice.ID)
		require.NoError(t, err)
	}

	sum, err := f.redemptionRepo.SumPointsByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), sum) // 100 + 40 + 60

	user, err := f.userRepo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, user.Score)
}
