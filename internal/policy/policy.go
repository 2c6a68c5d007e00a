// Package policy validates code-issuance parameters and produces ready-to-store
// promotional codes. The issuance flags are mutually exclusive: a code is
// single-use, limited-count or decaying, never a combination.
package policy

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"promocode-service/internal/model"
)

// codeAlphabet is the character set for generated codes.
const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultCodeLength is the length of generated codes when none is configured.
const DefaultCodeLength = 6

// CreateInput carries the raw creation parameters for one promotional code.
// Optional fields are pointers so "absent" and "zero" stay distinguishable.
type CreateInput struct {
	Code         string `json:"code"`
	BasePoints   int64  `json:"base_points"`
	SingleUse    bool   `json:"single_use"`
	LimitedCount *int64 `json:"limited_count,omitempty"`
	Decaying     bool   `json:"decaying"`
	DecayStep    *int64 `json:"decay_step,omitempty"`
}

// ValidationError reports field-level validation failures. It is never
// retried; the caller must correct the input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Build validates in and produces a PromoCode ready for insertion. The code
// string itself is taken as-is; uniqueness is enforced at the store.
func Build(in CreateInput, issuerID int64) (*model.PromoCode, error) {
	fields := map[string]string{}

	if in.BasePoints <= 0 {
		fields["base_points"] = "must be a positive integer"
	}

	pc := &model.PromoCode{
		Code:       in.Code,
		BasePoints: in.BasePoints,
		IssuerID:   issuerID,
	}

	switch {
	case in.SingleUse:
		// Single-use clears the other flags; they are not applicable.
		pc.Mode = model.ModeSingleUse

	case in.Decaying:
		if in.LimitedCount != nil {
			fields["limited_count"] = "cannot be combined with decaying"
		}
		if in.DecayStep == nil || *in.DecayStep < 1 {
			fields["decay_step"] = "required and must be at least 1 for decaying codes"
		} else {
			pc.DecayStep = *in.DecayStep
		}
		pc.Mode = model.ModeDecaying
		pc.RemainingPoints = in.BasePoints

	default:
		if in.LimitedCount == nil || *in.LimitedCount < 1 {
			fields["limited_count"] = "required and must be at least 1"
		} else {
			pc.RemainingRedemptions = *in.LimitedCount
		}
		pc.Mode = model.ModeLimitedCount
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return pc, nil
}

// GenerateCode produces a random alphanumeric code of the given length.
// A non-positive length falls back to DefaultCodeLength.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
