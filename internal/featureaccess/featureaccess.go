// Package featureaccess resolves whether an organization can use a
// feature, combining the feature catalog, billing exemptions,
// subscription state and the grace period.
package featureaccess

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	"github.com/equipqr/equipqr/internal/config"
	"github.com/equipqr/equipqr/internal/metrics"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
)

var ErrInvalidFeatureKey = errors.New("invalid_feature_key")

// Reason explains a feature-access decision.
type Reason string

const (
	ReasonFeatureDisabled        Reason = "feature_disabled"
	ReasonExemptionGranted       Reason = "exemption_granted"
	ReasonAccessGranted          Reason = "access_granted"
	ReasonSubscriptionActive     Reason = "subscription_active"
	ReasonGracePeriodActive      Reason = "grace_period_active"
	ReasonNoSubscription         Reason = "no_subscription"
	ReasonPremiumSubscriptionReq Reason = "premium_subscription_required"
)

// Decision is the outcome of a feature-access check. GracePeriod is
// display metadata; it never gates a decision that an exemption or
// subscription already settled.
type Decision struct {
	FeatureKey           string                         `json:"feature_key"`
	Category             string                         `json:"category"`
	RequiresSubscription bool                           `json:"requires_subscription"`
	HasAccess            bool                           `json:"has_access"`
	Reason               Reason                         `json:"reason"`
	GracePeriod          *billingdomain.GracePeriodInfo `json:"grace_period,omitempty"`
}

// Service resolves feature access.
type Service interface {
	Resolve(ctx context.Context, orgID snowflake.ID, featureKey string) (*Decision, error)
	ResolveAll(ctx context.Context, orgID snowflake.ID) ([]Decision, error)
}

type service struct {
	billing bilResolver
	subs    subdomain.Service
	catalog *config.BillingConfigHolder
	log     *zap.Logger
}

// bilResolver is the slice of the billing service the resolver needs.
type bilResolver interface {
	Summarize(ctx context.Context, orgID snowflake.ID) (*billingdomain.Summary, error)
	FeatureExemption(ctx context.Context, orgID snowflake.ID, featureKey string) (bool, error)
}

// New returns the feature-access service.
func New(billing billingdomain.Service, subs subdomain.Service, catalog *config.BillingConfigHolder, log *zap.Logger) Service {
	return &service{billing: billing, subs: subs, catalog: catalog, log: log}
}

func (s *service) Resolve(ctx context.Context, orgID snowflake.ID, featureKey string) (*Decision, error) {
	feature, ok := s.lookup(featureKey)
	if !ok {
		return nil, ErrInvalidFeatureKey
	}
	return s.resolve(ctx, orgID, feature)
}

func (s *service) ResolveAll(ctx context.Context, orgID snowflake.ID) ([]Decision, error) {
	summary := &lazySummary{billing: s.billing, orgID: orgID}
	features := s.catalog.Get().Features
	decisions := make([]Decision, 0, len(features))
	for _, feature := range features {
		d, err := s.resolveWith(ctx, orgID, feature, summary)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, *d)
	}
	return decisions, nil
}

// lazySummary computes the billing summary at most once per request,
// shared across the decisions of a ResolveAll batch.
type lazySummary struct {
	billing bilResolver
	orgID   snowflake.ID
	summary *billingdomain.Summary
}

func (l *lazySummary) get(ctx context.Context) (*billingdomain.Summary, error) {
	if l.summary != nil {
		return l.summary, nil
	}
	summary, err := l.billing.Summarize(ctx, l.orgID)
	if err != nil {
		return nil, err
	}
	l.summary = summary
	return summary, nil
}

func (s *service) lookup(key string) (config.FeatureConfig, bool) {
	for _, feature := range s.catalog.Get().Features {
		if feature.Key == key {
			return feature, true
		}
	}
	return config.FeatureConfig{}, false
}

func (s *service) resolve(ctx context.Context, orgID snowflake.ID, feature config.FeatureConfig) (*Decision, error) {
	return s.resolveWith(ctx, orgID, feature, &lazySummary{billing: s.billing, orgID: orgID})
}

// resolveWith walks the decision chain in a fixed order. The first
// clause that fires determines both the outcome and the reported
// reason; the grace-period info is then attached as display metadata.
func (s *service) resolveWith(ctx context.Context, orgID snowflake.ID, feature config.FeatureConfig, summary *lazySummary) (*Decision, error) {
	decision := &Decision{
		FeatureKey:           feature.Key,
		Category:             feature.Category,
		RequiresSubscription: feature.RequiresSubscription,
	}

	if feature.Disabled {
		decision.Reason = ReasonFeatureDisabled
		return s.annotate(ctx, decision, summary)
	}

	exempt, err := s.billing.FeatureExemption(ctx, orgID, feature.Key)
	if err != nil {
		return nil, err
	}
	if exempt {
		decision.HasAccess = true
		decision.Reason = ReasonExemptionGranted
		return s.annotate(ctx, decision, summary)
	}

	if !feature.RequiresSubscription {
		decision.HasAccess = true
		decision.Reason = ReasonAccessGranted
		return s.annotate(ctx, decision, summary)
	}

	active, err := s.subs.HasActiveSubscription(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if active {
		decision.HasAccess = true
		decision.Reason = ReasonSubscriptionActive
		return s.annotate(ctx, decision, summary)
	}

	// The grace period only unlocks base features.
	if feature.Category == config.FeatureCategoryBase {
		sum, err := summary.get(ctx)
		if err != nil {
			return nil, err
		}
		if sum.GracePeriod.Active {
			decision.HasAccess = true
			decision.Reason = ReasonGracePeriodActive
			return s.annotate(ctx, decision, summary)
		}
	}

	if feature.Category == config.FeatureCategoryPremium {
		decision.Reason = ReasonPremiumSubscriptionReq
	} else {
		decision.Reason = ReasonNoSubscription
	}
	return s.annotate(ctx, decision, summary)
}

func (s *service) annotate(ctx context.Context, decision *Decision, summary *lazySummary) (*Decision, error) {
	sum, err := summary.get(ctx)
	if err != nil {
		return nil, err
	}
	grace := sum.GracePeriod
	decision.GracePeriod = &grace
	metrics.FeatureAccessDecisionsTotal.WithLabelValues(decision.FeatureKey, string(decision.Reason)).Inc()
	return decision, nil
}
