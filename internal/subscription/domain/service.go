package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrSubscriptionNotFound = errors.New("subscription_not_found")

// Service exposes subscription state to the billing and feature-access
// resolvers and to the webhook processor.
type Service interface {
	FindActiveByOrg(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	HasActiveSubscription(ctx context.Context, orgID snowflake.ID) (bool, error)
	FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*Subscription, error)

	// Upsert inserts or refreshes the row keyed by the provider
	// subscription id.
	Upsert(ctx context.Context, sub *Subscription) (*Subscription, error)
	UpdateStatus(ctx context.Context, providerSubID, status string) (*Subscription, error)
	UpdateQuantity(ctx context.Context, providerSubID string, quantity int) (*Subscription, error)
}
