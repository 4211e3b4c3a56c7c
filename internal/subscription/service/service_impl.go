// Package service implements subscription state management.
package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/subscription/domain"
)

type service struct {
	db   *gorm.DB
	node *snowflake.Node
	log  *zap.Logger
}

// New returns the subscription service.
func New(db *gorm.DB, node *snowflake.Node, log *zap.Logger) domain.Service {
	return &service{db: db, node: node, log: log}
}

func (s *service) FindActiveByOrg(ctx context.Context, orgID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND status IN ?", orgID, []string{domain.StatusActive, domain.StatusTrialing}).
		Order("updated_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *service) HasActiveSubscription(ctx context.Context, orgID snowflake.ID) (bool, error) {
	_, err := s.FindActiveByOrg(ctx, orgID)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.db.WithContext(ctx).
		First(&sub, "provider_subscription_id = ?", providerSubID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *service) Upsert(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	existing, err := s.FindByProviderSubscriptionID(ctx, sub.ProviderSubscriptionID)
	if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}

	if existing == nil {
		sub.ID = s.node.Generate()
		if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
			return nil, err
		}
		s.log.Info("subscription created",
			zap.String("org_id", sub.OrgID.String()),
			zap.String("provider_subscription_id", sub.ProviderSubscriptionID))
		return sub, nil
	}

	existing.ProviderCustomerID = sub.ProviderCustomerID
	existing.PriceID = sub.PriceID
	existing.Status = sub.Status
	existing.Quantity = sub.Quantity
	existing.CurrentPeriodStart = sub.CurrentPeriodStart
	existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
	existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *service) UpdateStatus(ctx context.Context, providerSubID, status string) (*domain.Subscription, error) {
	sub, err := s.FindByProviderSubscriptionID(ctx, providerSubID)
	if err != nil {
		return nil, err
	}
	sub.Status = status
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, err
	}
	s.log.Info("subscription status updated",
		zap.String("provider_subscription_id", providerSubID),
		zap.String("status", status))
	return sub, nil
}

func (s *service) UpdateQuantity(ctx context.Context, providerSubID string, quantity int) (*domain.Subscription, error) {
	sub, err := s.FindByProviderSubscriptionID(ctx, providerSubID)
	if err != nil {
		return nil, err
	}
	sub.Quantity = quantity
	if err := s.db.WithContext(ctx).Save(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}
