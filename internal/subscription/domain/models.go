// Package domain contains subscription models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusActive     = "active"
	StatusTrialing   = "trialing"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusIncomplete = "incomplete"
)

// Subscription mirrors the billing provider's subscription state for an
// organization. Quantity is the number of paid seats.
type Subscription struct {
	ID                     snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID                  snowflake.ID `gorm:"not null;index" json:"org_id"`
	Provider               string       `gorm:"type:text;not null;default:'stripe'" json:"provider"`
	ProviderCustomerID     string       `gorm:"type:text;not null;index" json:"provider_customer_id"`
	ProviderSubscriptionID string       `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_provider_sub" json:"provider_subscription_id"`
	PriceID                string       `gorm:"type:text" json:"price_id"`
	Status                 string       `gorm:"type:text;not null" json:"status"`
	Quantity               int          `gorm:"not null;default:1" json:"quantity"`
	CurrentPeriodStart     time.Time    `json:"current_period_start"`
	CurrentPeriodEnd       time.Time    `json:"current_period_end"`
	CancelAtPeriodEnd      bool         `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// IsActive reports whether the subscription grants access. Trialing
// counts as active; past_due does not.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}
