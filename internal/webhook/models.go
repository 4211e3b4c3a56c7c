package webhook

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// Event is the idempotency ledger for incoming webhooks. The unique
// index on EventID is what makes redelivery a no-op.
type Event struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	EventID     string         `gorm:"type:text;not null;uniqueIndex:ux_webhook_events_event_id" json:"event_id"`
	EventType   string         `gorm:"type:text;not null;index" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Outcome     string         `gorm:"type:text;not null" json:"outcome"`
	ProcessedAt time.Time      `gorm:"not null" json:"processed_at"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "webhook_events" }

// envelope is the provider's outer event shape.
type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// checkoutSession is the subset of checkout.session.completed we read.
type checkoutSession struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// providerSubscription is the subset of the provider subscription
// object we mirror locally.
type providerSubscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	Quantity           int               `json:"quantity"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			Quantity int `json:"quantity"`
			Price    struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s *providerSubscription) seatCount() int {
	if s.Quantity > 0 {
		return s.Quantity
	}
	for _, item := range s.Items.Data {
		if item.Quantity > 0 {
			return item.Quantity
		}
	}
	return 1
}

func (s *providerSubscription) priceID() string {
	for _, item := range s.Items.Data {
		if item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}

// invoice is the subset of invoice.* events we read.
type invoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
}
