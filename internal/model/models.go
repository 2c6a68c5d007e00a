// Package model defines the data models for the promotional code service.
package model

import "time"

// User roles. Sponsors can view dashboards but take no part in the core flow.
const (
	RoleCompetitor = "competitor"
	RoleSponsor    = "sponsor"
	RoleAdmin      = "admin"
)

// User represents an account in the system. Score is a denormalized running
// counter kept in sync with the redemption ledger by the redemption engine.
type User struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Score        int64     `db:"score"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// CodeMode is the issuance mode of a promotional code. Exactly one mode is
// active per code.
type CodeMode string

const (
	// ModeSingleUse has no count-based cap; each distinct user may redeem once.
	ModeSingleUse CodeMode = "single_use"
	// ModeLimitedCount allows a bounded number of redemptions at constant value.
	ModeLimitedCount CodeMode = "limited_count"
	// ModeDecaying shrinks the award by a fixed step on every redemption.
	ModeDecaying CodeMode = "decaying"
)

// Valid reports whether m is one of the known modes.
func (m CodeMode) Valid() bool {
	switch m {
	case ModeSingleUse, ModeLimitedCount, ModeDecaying:
		return true
	}
	return false
}

// PromoCode represents a promotional code and its remaining capacity.
// RemainingRedemptions is meaningful only for limited_count codes;
// RemainingPoints and DecayStep only for decaying codes. Both capacity
// fields are monotonically non-increasing over the code's life.
type PromoCode struct {
	ID                   int64      `db:"id" json:"id"`
	Code                 string     `db:"code" json:"code"`
	BasePoints           int64      `db:"base_points" json:"base_points"`
	Mode                 CodeMode   `db:"mode" json:"mode"`
	RemainingRedemptions int64      `db:"remaining_redemptions" json:"remaining_redemptions"`
	RemainingPoints      int64      `db:"remaining_points" json:"remaining_points"`
	DecayStep            int64      `db:"decay_step" json:"decay_step"`
	IssuerID             int64      `db:"issuer_id" json:"issuer_id"`
	DeletedAt            *time.Time `db:"deleted_at" json:"-"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Redemption is one ledger entry: a user claiming a code's value exactly
// once. Never updated or deleted after creation.
type Redemption struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	CodeID        int64     `db:"code_id" json:"code_id"`
	PointsAwarded int64     `db:"points_awarded" json:"points_awarded"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// RankEntry is one row of the competitor ranking.
type RankEntry struct {
	Name  string `db:"name" json:"name"`
	Score int64  `db:"score" json:"score"`
}

// HistoryEntry is one row of a competitor's redemption history. Code holds
// the masked display form of the redeemed code.
type HistoryEntry struct {
	Position   int       `json:"id"`
	Code       string    `json:"code"`
	RedeemedAt time.Time `json:"redeemed_at"`
}
