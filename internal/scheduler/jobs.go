package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/audit"
	billingdomain "github.com/equipqr/equipqr/internal/billing/domain"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/config"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/webhook"
)

const (
	// webhookEventRetention keeps the idempotency ledger well past the
	// provider's 72h retry window.
	webhookEventRetention = 30 * 24 * time.Hour
	auditLogRetention     = 365 * 24 * time.Hour
)

// Jobs builds the standard maintenance job set.
func Jobs(
	processor *webhook.Processor,
	auditSvc audit.Service,
	orgs orgdomain.Service,
	billing billingdomain.Service,
	holder *config.BillingConfigHolder,
	clk clock.Clock,
	log *zap.Logger,
) []Job {
	return []Job{
		{
			Name:     "webhook_event_cleanup",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context) error {
				removed, err := processor.DeleteEventsOlderThan(ctx, clk.Now().Add(-webhookEventRetention))
				if err != nil {
					return err
				}
				if removed > 0 {
					log.Info("expired webhook events removed", zap.Int64("count", removed))
				}
				return nil
			},
		},
		{
			Name:     "grace_expiry_audit",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context) error {
				grace := time.Duration(holder.Get().GracePeriodDays) * 24 * time.Hour
				now := clk.Now()
				// Organizations whose grace window closed since the
				// previous sweep.
				expired, err := orgs.ListCreatedBetween(ctx, now.Add(-grace-24*time.Hour), now.Add(-grace))
				if err != nil {
					return err
				}
				for _, org := range expired {
					summary, err := billing.Summarize(ctx, org.ID)
					if err != nil {
						log.Warn("grace sweep summarize failed",
							zap.Int64("org_id", int64(org.ID)),
							zap.Error(err))
						continue
					}
					if !summary.BillingRequired || summary.FullyExempt || summary.SubscriptionStatus != "" {
						continue
					}
					_ = auditSvc.Record(ctx, org.ID, "grace_period_expired", audit.ActorSystem, map[string]any{
						"billable_member_count": summary.BillableMemberCount,
						"monthly_total_cents":   summary.MonthlyTotalCents,
					})
				}
				return nil
			},
		},
		{
			Name:     "audit_log_cleanup",
			Interval: 24 * time.Hour,
			Run: func(ctx context.Context) error {
				removed, err := auditSvc.DeleteOlderThan(ctx, clk.Now().Add(-auditLogRetention))
				if err != nil {
					return err
				}
				if removed > 0 {
					log.Info("expired audit entries removed", zap.Int64("count", removed))
				}
				return nil
			},
		},
	}
}
