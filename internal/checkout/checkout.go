// Package checkout creates provider-hosted checkout sessions for seat
// subscriptions.
package checkout

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"go.uber.org/zap"

	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/rbac"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidSeats = errors.New("invalid_seat_count")
)

// CreateSessionRequest starts a checkout for an organization.
type CreateSessionRequest struct {
	OrgID      snowflake.ID
	ActorID    snowflake.ID
	PriceID    string `json:"price_id" binding:"required"`
	Seats      int64  `json:"seats" binding:"required"`
	SuccessURL string `json:"success_url" binding:"required"`
	CancelURL  string `json:"cancel_url" binding:"required"`
}

// Session is the started checkout the client redirects to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Service starts checkout sessions.
type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
}

// sessionCreator isolates the provider call so tests can stub it.
type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

type service struct {
	orgs   orgdomain.Service
	create sessionCreator
	log    *zap.Logger
}

// New returns a checkout service backed by the Stripe API. The API key
// is set process-wide at startup.
func New(orgs orgdomain.Service, log *zap.Logger) Service {
	return &service{
		orgs:   orgs,
		create: session.New,
		log:    log,
	}
}

func newWithCreator(orgs orgdomain.Service, create sessionCreator, log *zap.Logger) Service {
	return &service{orgs: orgs, create: create, log: log}
}

func (s *service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	member, err := s.orgs.GetMember(ctx, req.OrgID, req.ActorID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrMemberNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !rbac.IsOrgAdmin(rbac.ParseRole(member.Role)) {
		return nil, ErrForbidden
	}
	if req.Seats < 1 {
		return nil, ErrInvalidSeats
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(req.Seats),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"org_id": req.OrgID.String()},
		},
	}
	params.Context = ctx
	// org_id on both the session and the subscription keeps the webhook
	// handlers self-sufficient.
	params.AddMetadata("org_id", req.OrgID.String())

	created, err := s.create(params)
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("org_id", req.OrgID.String()),
		zap.String("session_id", created.ID))
	return &Session{ID: created.ID, URL: created.URL}, nil
}
