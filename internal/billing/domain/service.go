package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrExemptionNotFound = errors.New("exemption_not_found")
	ErrInvalidScope      = errors.New("invalid_exemption_scope")
)

// GrantExemptionRequest creates a billing exemption.
type GrantExemptionRequest struct {
	OrgID      snowflake.ID
	Scope      string     `json:"scope" binding:"required"`
	FeatureKey string     `json:"feature_key"`
	Reason     string     `json:"reason"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// Service resolves billing state and manages exemptions.
type Service interface {
	// Summarize computes the full billing picture for an organization:
	// seat costs, whether billing is required, grace-period state and
	// exemption state.
	Summarize(ctx context.Context, orgID snowflake.ID) (*Summary, error)

	// HasFullExemption reports whether an org-wide exemption is in
	// effect right now.
	HasFullExemption(ctx context.Context, orgID snowflake.ID) (bool, error)
	// FeatureExemption reports whether the org holds an effective
	// exemption covering the given feature, either feature-scoped or
	// org-wide.
	FeatureExemption(ctx context.Context, orgID snowflake.ID, featureKey string) (bool, error)

	GrantExemption(ctx context.Context, req GrantExemptionRequest) (*BillingExemption, error)
	RevokeExemption(ctx context.Context, id snowflake.ID) error
	ListExemptions(ctx context.Context, orgID snowflake.ID) ([]BillingExemption, error)
}
