// Package service implements billing resolution: seat costs, the
// grace-period window and exemptions.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/billing/domain"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/config"
	eqdomain "github.com/equipqr/equipqr/internal/equipment/domain"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/rbac"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
)

type service struct {
	db        *gorm.DB
	orgs      orgdomain.Service
	equipment eqdomain.Service
	subs      subdomain.Service
	billing   *config.BillingConfigHolder
	node      *snowflake.Node
	clock     clock.Clock
	log       *zap.Logger
}

// New returns the billing service.
func New(
	db *gorm.DB,
	orgs orgdomain.Service,
	equipment eqdomain.Service,
	subs subdomain.Service,
	billing *config.BillingConfigHolder,
	node *snowflake.Node,
	clk clock.Clock,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:        db,
		orgs:      orgs,
		equipment: equipment,
		subs:      subs,
		billing:   billing,
		node:      node,
		clock:     clk,
		log:       log,
	}
}

func (s *service) Summarize(ctx context.Context, orgID snowflake.ID) (*domain.Summary, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	members, err := s.orgs.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	hasEquipment, err := s.equipment.HasEquipment(ctx, orgID)
	if err != nil {
		return nil, err
	}

	fullyExempt, err := s.HasFullExemption(ctx, orgID)
	if err != nil {
		return nil, err
	}

	cfg := s.billing.Get()
	summary := &domain.Summary{
		OrgID:        orgID,
		HasEquipment: hasEquipment,
		FullyExempt:  fullyExempt,
	}

	// Seat pricing: one active seat is free, pending and inactive
	// members cost nothing. The free seat goes to an active owner; an
	// org whose ownership moved keeps charging the previous owner, not
	// the new one. Without an active owner it falls to the earliest
	// active member.
	var freeUserID snowflake.ID
	for _, m := range members {
		if m.Status != orgdomain.MemberStatusActive {
			continue
		}
		if rbac.ParseRole(m.Role) == rbac.RoleOwner {
			freeUserID = m.UserID
			break
		}
		if freeUserID == 0 {
			freeUserID = m.UserID
		}
	}

	for _, m := range members {
		cost := domain.MemberCost{UserID: m.UserID, Status: m.Status}
		if m.Status == orgdomain.MemberStatusActive {
			summary.ActiveMemberCount++
			if m.UserID != freeUserID {
				cost.MonthlyCents = cfg.PerSeatRateCents
				summary.BillableMemberCount++
				summary.MonthlyTotalCents += cfg.PerSeatRateCents
			}
		}
		summary.MemberCosts = append(summary.MemberCosts, cost)
	}

	summary.BillingRequired = hasEquipment && summary.BillableMemberCount > 0

	hasActiveSub := false
	sub, err := s.subs.FindActiveByOrg(ctx, orgID)
	switch {
	case err == nil:
		hasActiveSub = true
		summary.SubscriptionStatus = sub.Status
		summary.SubscribedSeats = sub.Quantity
	case errors.Is(err, subdomain.ErrSubscriptionNotFound):
	default:
		return nil, err
	}

	summary.GracePeriod = s.gracePeriod(org.CreatedAt, cfg.GracePeriodDays,
		hasActiveSub, fullyExempt, summary.BillingRequired)
	return summary, nil
}

// gracePeriod computes the post-signup window. The window only reports
// itself active while it actually matters: an active subscription, a
// full exemption or the absence of any billing obligation suppress it.
func (s *service) gracePeriod(orgCreatedAt time.Time, days int, hasActiveSub, fullyExempt, billingRequired bool) domain.GracePeriodInfo {
	endsAt := orgCreatedAt.Add(time.Duration(days) * 24 * time.Hour)
	now := s.clock.Now()

	info := domain.GracePeriodInfo{EndsAt: &endsAt}
	if !now.Before(endsAt) {
		return info
	}
	if hasActiveSub || fullyExempt || !billingRequired {
		return info
	}

	info.Active = true
	info.DaysRemaining = int(endsAt.Sub(now).Hours() / 24)
	return info
}

func (s *service) effectiveExemptions(ctx context.Context, orgID snowflake.ID) ([]domain.BillingExemption, error) {
	var rows []domain.BillingExemption
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	effective := rows[:0]
	for _, e := range rows {
		if e.EffectiveAt(now) {
			effective = append(effective, e)
		}
	}
	return effective, nil
}

func (s *service) HasFullExemption(ctx context.Context, orgID snowflake.ID) (bool, error) {
	exemptions, err := s.effectiveExemptions(ctx, orgID)
	if err != nil {
		return false, err
	}
	for _, e := range exemptions {
		if e.Scope == domain.ScopeFull {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) FeatureExemption(ctx context.Context, orgID snowflake.ID, featureKey string) (bool, error) {
	exemptions, err := s.effectiveExemptions(ctx, orgID)
	if err != nil {
		return false, err
	}
	for _, e := range exemptions {
		if e.Scope == domain.ScopeFull {
			return true, nil
		}
		if e.Scope == domain.ScopeFeature && e.FeatureKey == featureKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) GrantExemption(ctx context.Context, req domain.GrantExemptionRequest) (*domain.BillingExemption, error) {
	switch req.Scope {
	case domain.ScopeFull:
	case domain.ScopeFeature:
		if req.FeatureKey == "" {
			return nil, domain.ErrInvalidScope
		}
	default:
		return nil, domain.ErrInvalidScope
	}

	exemption := &domain.BillingExemption{
		ID:         s.node.Generate(),
		OrgID:      req.OrgID,
		Scope:      req.Scope,
		FeatureKey: req.FeatureKey,
		IsActive:   true,
		Reason:     req.Reason,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(exemption).Error; err != nil {
		return nil, err
	}

	s.log.Info("billing exemption granted",
		zap.String("org_id", req.OrgID.String()),
		zap.String("scope", req.Scope),
		zap.String("feature_key", req.FeatureKey))
	return exemption, nil
}

func (s *service) RevokeExemption(ctx context.Context, id snowflake.ID) error {
	res := s.db.WithContext(ctx).
		Model(&domain.BillingExemption{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrExemptionNotFound
	}
	return nil
}

func (s *service) ListExemptions(ctx context.Context, orgID snowflake.ID) ([]domain.BillingExemption, error) {
	var rows []domain.BillingExemption
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
