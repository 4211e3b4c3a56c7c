// Package domain contains billing exemption models and the resolved
// billing summary types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ScopeFull    = "full"
	ScopeFeature = "feature"
)

// BillingExemption waives billing for an organization, either entirely
// or for a single feature. An expired exemption is inert regardless of
// IsActive.
type BillingExemption struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"org_id"`
	Scope      string       `gorm:"type:text;not null" json:"scope"`
	FeatureKey string       `gorm:"type:text" json:"feature_key,omitempty"`
	IsActive   bool         `gorm:"not null;default:true" json:"is_active"`
	Reason     string       `gorm:"type:text" json:"reason"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BillingExemption) TableName() string { return "billing_exemptions" }

// EffectiveAt reports whether the exemption applies at the given time.
// Expiry wins over the active flag.
func (e *BillingExemption) EffectiveAt(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// GracePeriodInfo describes the post-signup billing grace window.
type GracePeriodInfo struct {
	Active        bool       `json:"active"`
	EndsAt        *time.Time `json:"ends_at,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
}

// MemberCost is the per-member line item in the billing summary.
type MemberCost struct {
	UserID       snowflake.ID `json:"user_id"`
	Status       string       `json:"status"`
	MonthlyCents int64        `json:"monthly_cents"`
}

// Summary is the resolved billing state for an organization.
type Summary struct {
	OrgID               snowflake.ID    `json:"org_id"`
	BillingRequired     bool            `json:"billing_required"`
	HasEquipment        bool            `json:"has_equipment"`
	ActiveMemberCount   int             `json:"active_member_count"`
	BillableMemberCount int             `json:"billable_member_count"`
	MonthlyTotalCents   int64           `json:"monthly_total_cents"`
	MemberCosts         []MemberCost    `json:"member_costs"`
	SubscriptionStatus  string          `json:"subscription_status,omitempty"`
	SubscribedSeats     int             `json:"subscribed_seats"`
	FullyExempt         bool            `json:"fully_exempt"`
	GracePeriod         GracePeriodInfo `json:"grace_period"`
}
