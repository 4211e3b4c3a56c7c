package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/audit"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/metrics"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	subdomain "github.com/equipqr/equipqr/internal/subscription/domain"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

var ErrMalformedEvent = errors.New("malformed_webhook_event")

// Result reports what happened to a delivered event.
type Result struct {
	EventID   string
	EventType string
	Outcome   string
}

// Processor verifies, deduplicates and applies billing webhook events.
type Processor struct {
	db     *gorm.DB
	subs   subdomain.Service
	orgs   orgdomain.Service
	audit  audit.Service
	node   *snowflake.Node
	clock  clock.Clock
	secret string
	log    *zap.Logger
}

// NewProcessor returns the webhook processor.
func NewProcessor(
	db *gorm.DB,
	subs subdomain.Service,
	orgs orgdomain.Service,
	auditSvc audit.Service,
	node *snowflake.Node,
	clk clock.Clock,
	secret string,
	log *zap.Logger,
) *Processor {
	return &Processor{
		db:     db,
		subs:   subs,
		orgs:   orgs,
		audit:  auditSvc,
		node:   node,
		clock:  clk,
		secret: secret,
		log:    log,
	}
}

// Process handles one delivery. The signature is checked first, then
// the event id is claimed in the idempotency ledger; a duplicate claim
// short-circuits before any state is touched.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) (*Result, error) {
	if err := VerifySignature(payload, sigHeader, p.secret, p.clock.Now()); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrMalformedEvent
	}
	if env.ID == "" || env.Type == "" {
		return nil, ErrMalformedEvent
	}

	outcome := OutcomeProcessed
	if !handles(env.Type) {
		p.log.Debug("unhandled webhook event type", zap.String("event_type", env.Type))
		outcome = OutcomeIgnored
	}

	// Ledger rows are insert-only: the claim either lands with its final
	// outcome or is rejected as a duplicate.
	record := Event{
		ID:          p.node.Generate(),
		EventID:     env.ID,
		EventType:   env.Type,
		Payload:     payload,
		Outcome:     outcome,
		ProcessedAt: p.clock.Now(),
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			p.log.Info("duplicate webhook delivery ignored",
				zap.String("event_id", env.ID),
				zap.String("event_type", env.Type))
			metrics.WebhookEventsTotal.WithLabelValues(env.Type, OutcomeDuplicate).Inc()
			return &Result{EventID: env.ID, EventType: env.Type, Outcome: OutcomeDuplicate}, nil
		}
		return nil, err
	}

	if outcome == OutcomeProcessed {
		if err := p.apply(ctx, &env); err != nil {
			// Release the claim so the provider's retry of this event
			// id is not rejected as a duplicate. The failure itself
			// goes to the audit trail, not the ledger.
			p.db.WithContext(ctx).Delete(&Event{}, "id = ?", record.ID)
			p.audit.Record(ctx, 0, "webhook_failed", audit.ActorWebhook, map[string]any{
				"event_id":   env.ID,
				"event_type": env.Type,
				"error":      err.Error(),
			})
			metrics.WebhookEventsTotal.WithLabelValues(env.Type, OutcomeFailed).Inc()
			return nil, err
		}
	}

	metrics.WebhookEventsTotal.WithLabelValues(env.Type, outcome).Inc()
	return &Result{EventID: env.ID, EventType: env.Type, Outcome: outcome}, nil
}

func handles(eventType string) bool {
	switch eventType {
	case "checkout.session.completed",
		"customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"invoice.payment_succeeded",
		"invoice.payment_failed":
		return true
	}
	return false
}

func (p *Processor) apply(ctx context.Context, env *envelope) error {
	switch env.Type {
	case "checkout.session.completed":
		return p.applyCheckoutCompleted(ctx, env)
	case "customer.subscription.created", "customer.subscription.updated":
		return p.applySubscriptionUpdated(ctx, env)
	case "customer.subscription.deleted":
		return p.applySubscriptionDeleted(ctx, env)
	case "invoice.payment_succeeded":
		return p.applyPaymentSucceeded(ctx, env)
	case "invoice.payment_failed":
		return p.applyPaymentFailed(ctx, env)
	}
	return nil
}

func orgIDFromMetadata(md map[string]string) (snowflake.ID, error) {
	raw, ok := md["org_id"]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: missing org_id metadata", ErrMalformedEvent)
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad org_id metadata", ErrMalformedEvent)
	}
	return id, nil
}

func (p *Processor) applyCheckoutCompleted(ctx context.Context, env *envelope) error {
	var session checkoutSession
	if err := json.Unmarshal(env.Data.Object, &session); err != nil {
		return ErrMalformedEvent
	}
	orgID, err := orgIDFromMetadata(session.Metadata)
	if err != nil {
		return err
	}

	// The authoritative subscription state arrives on the follow-up
	// customer.subscription.* event; here we just establish the link.
	if session.Subscription != "" {
		_, err := p.subs.Upsert(ctx, &subdomain.Subscription{
			OrgID:                  orgID,
			Provider:               "stripe",
			ProviderCustomerID:     session.Customer,
			ProviderSubscriptionID: session.Subscription,
			Status:                 subdomain.StatusActive,
			Quantity:               1,
		})
		if err != nil {
			return err
		}
	}

	p.audit.Record(ctx, orgID, "checkout_completed", audit.ActorWebhook, map[string]any{
		"session_id":      session.ID,
		"subscription_id": session.Subscription,
	})
	return nil
}

func (p *Processor) applySubscriptionUpdated(ctx context.Context, env *envelope) error {
	var sub providerSubscription
	if err := json.Unmarshal(env.Data.Object, &sub); err != nil || sub.ID == "" {
		return ErrMalformedEvent
	}

	prior, err := p.subs.FindByProviderSubscriptionID(ctx, sub.ID)
	if err != nil && !errors.Is(err, subdomain.ErrSubscriptionNotFound) {
		return err
	}

	orgID, err := orgIDFromMetadata(sub.Metadata)
	if err != nil {
		// Fall back to the locally known link for updates that omit
		// metadata.
		if prior == nil {
			return err
		}
		orgID = prior.OrgID
	}

	seats := sub.seatCount()
	_, err = p.subs.Upsert(ctx, &subdomain.Subscription{
		OrgID:                  orgID,
		Provider:               "stripe",
		ProviderCustomerID:     sub.Customer,
		ProviderSubscriptionID: sub.ID,
		PriceID:                sub.priceID(),
		Status:                 sub.Status,
		Quantity:               seats,
		CurrentPeriodStart:     time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:       time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	})
	if err != nil {
		return err
	}

	details := map[string]any{
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"seats":           seats,
	}

	// Seat reconciliation: only a shrinking paid seat count costs anyone
	// their seat. Increases, no-change updates and redeliveries of an
	// already-applied quantity leave the membership alone.
	if prior != nil && seats < prior.Quantity {
		active, err := p.orgs.ActiveMemberCount(ctx, orgID)
		if err != nil {
			return err
		}
		if excess := int(active) - seats; excess > 0 {
			deactivated, err := p.orgs.DeactivateNewestMembers(ctx, orgID, excess)
			if err != nil {
				return err
			}
			details["deactivated_members"] = len(deactivated)
		}
	}

	p.audit.Record(ctx, orgID, "subscription_updated", audit.ActorWebhook, details)
	return nil
}

func (p *Processor) applySubscriptionDeleted(ctx context.Context, env *envelope) error {
	var sub providerSubscription
	if err := json.Unmarshal(env.Data.Object, &sub); err != nil || sub.ID == "" {
		return ErrMalformedEvent
	}

	updated, err := p.subs.UpdateStatus(ctx, sub.ID, subdomain.StatusCanceled)
	if err != nil {
		if errors.Is(err, subdomain.ErrSubscriptionNotFound) {
			// Deleting something we never knew about is not a failure.
			return nil
		}
		return err
	}

	p.audit.Record(ctx, updated.OrgID, "subscription_canceled", audit.ActorWebhook, map[string]any{
		"subscription_id": sub.ID,
	})
	return nil
}

func (p *Processor) applyPaymentSucceeded(ctx context.Context, env *envelope) error {
	var inv invoice
	if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
		return ErrMalformedEvent
	}
	if inv.Subscription == "" {
		return nil
	}

	updated, err := p.subs.UpdateStatus(ctx, inv.Subscription, subdomain.StatusActive)
	if err != nil {
		if errors.Is(err, subdomain.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}

	p.audit.Record(ctx, updated.OrgID, "payment_succeeded", audit.ActorWebhook, map[string]any{
		"invoice_id":  inv.ID,
		"amount_paid": inv.AmountPaid,
	})
	return nil
}

func (p *Processor) applyPaymentFailed(ctx context.Context, env *envelope) error {
	var inv invoice
	if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
		return ErrMalformedEvent
	}
	if inv.Subscription == "" {
		return nil
	}

	updated, err := p.subs.UpdateStatus(ctx, inv.Subscription, subdomain.StatusPastDue)
	if err != nil {
		if errors.Is(err, subdomain.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}

	p.audit.Record(ctx, updated.OrgID, "payment_failed", audit.ActorWebhook, map[string]any{
		"invoice_id": inv.ID,
		"amount_due": inv.AmountDue,
	})
	return nil
}

// DeleteEventsOlderThan trims the idempotency ledger past the retention
// horizon. Events older than the provider's retry window can never be
// redelivered, so the rows are dead weight.
func (p *Processor) DeleteEventsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := p.db.WithContext(ctx).Delete(&Event{}, "created_at < ?", cutoff)
	return res.RowsAffected, res.Error
}
