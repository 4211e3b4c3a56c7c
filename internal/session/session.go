// Package session resolves the per-user session snapshot: which
// organizations the user belongs to and which one is currently
// selected. Snapshots are cached with a freshness window and refresh
// coalescing so bursts of requests do not stampede the database.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	authdomain "github.com/equipqr/equipqr/internal/auth/domain"
	"github.com/equipqr/equipqr/internal/clock"
	"github.com/equipqr/equipqr/internal/metrics"
	orgdomain "github.com/equipqr/equipqr/internal/organization/domain"
	"github.com/equipqr/equipqr/internal/rbac"
)

// SchemaVersion is bumped whenever the snapshot layout changes. Cached
// snapshots from an older schema are discarded instead of reused.
const SchemaVersion = 3

const (
	// snapshotTTL is how long a snapshot counts as fresh.
	snapshotTTL = 15 * time.Minute
	// refreshInterval bounds how often a stale snapshot may be rebuilt.
	// Between attempts the stale copy keeps serving.
	refreshInterval = 5 * time.Minute
)

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrNoOrganizations      = errors.New("no_organizations")
)

// OrgMembership is one organization in the snapshot.
type OrgMembership struct {
	OrgID snowflake.ID `json:"org_id"`
	Name  string       `json:"name"`
	Slug  string       `json:"slug"`
	Role  string       `json:"role"`
}

// Snapshot is the resolved session state handed to request handlers.
type Snapshot struct {
	SchemaVersion int             `json:"schema_version"`
	UserID        snowflake.ID    `json:"user_id"`
	CurrentOrgID  snowflake.ID    `json:"current_org_id"`
	CurrentRole   string          `json:"current_role"`
	Organizations []OrgMembership `json:"organizations"`
	RefreshedAt   time.Time       `json:"refreshed_at"`
}

// Service resolves and mutates session snapshots.
type Service interface {
	Resolve(ctx context.Context, token string) (*Snapshot, error)
	SwitchOrganization(ctx context.Context, token string, orgID snowflake.ID) (*Snapshot, error)
	// Invalidate drops the cached snapshot for a user. Membership and
	// role changes call this so the next resolve rebuilds.
	Invalidate(userID snowflake.ID)
}

type entry struct {
	snapshot    *Snapshot
	lastAttempt time.Time
	generation  uint64
}

type service struct {
	auth  authdomain.Service
	orgs  orgdomain.Service
	clock clock.Clock
	log   *zap.Logger

	mu      sync.Mutex
	entries map[snowflake.ID]*entry
}

// New returns the session resolver.
func New(auth authdomain.Service, orgs orgdomain.Service, clk clock.Clock, log *zap.Logger) Service {
	return &service{
		auth:    auth,
		orgs:    orgs,
		clock:   clk,
		log:     log,
		entries: make(map[snowflake.ID]*entry),
	}
}

func (s *service) Resolve(ctx context.Context, token string) (*Snapshot, error) {
	sess, user, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	s.mu.Lock()
	e, ok := s.entries[user.ID]
	if !ok {
		e = &entry{}
		s.entries[user.ID] = e
	}
	cached := e.snapshot
	generation := e.generation

	if cached != nil && cached.SchemaVersion == SchemaVersion {
		if now.Sub(cached.RefreshedAt) < snapshotTTL {
			s.mu.Unlock()
			metrics.SessionRefreshesTotal.WithLabelValues("fresh").Inc()
			return cached, nil
		}
		// Stale but recently attempted: serve the stale copy instead of
		// refreshing again.
		if now.Sub(e.lastAttempt) < refreshInterval {
			s.mu.Unlock()
			metrics.SessionRefreshesTotal.WithLabelValues("coalesced").Inc()
			return cached, nil
		}
	}
	e.lastAttempt = now
	s.mu.Unlock()

	snapshot, err := s.build(ctx, user.ID, sess.OrgID)
	if err != nil {
		// A failed rebuild falls back to the stale copy when one from
		// the current schema is still around. lastAttempt was already
		// advanced, so retries stay bounded by refreshInterval.
		// ErrNoOrganizations is an authoritative answer, not a failure,
		// and must not be masked by stale data.
		if cached != nil && cached.SchemaVersion == SchemaVersion && !errors.Is(err, ErrNoOrganizations) {
			s.log.Warn("session refresh failed, serving stale snapshot",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
			metrics.SessionRefreshesTotal.WithLabelValues("stale").Inc()
			return cached, nil
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.generation != generation {
		// The session changed while we were rebuilding (an org switch
		// or invalidation won the race). Discard our result.
		metrics.SessionRefreshesTotal.WithLabelValues("discarded").Inc()
		if e.snapshot != nil {
			return e.snapshot, nil
		}
		return snapshot, nil
	}
	e.snapshot = snapshot
	metrics.SessionRefreshesTotal.WithLabelValues("refreshed").Inc()
	return snapshot, nil
}

func (s *service) SwitchOrganization(ctx context.Context, token string, orgID snowflake.ID) (*Snapshot, error) {
	sess, user, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	member, err := s.orgs.GetMember(ctx, orgID, user.ID)
	if err != nil || member.Status != orgdomain.MemberStatusActive {
		return nil, ErrOrganizationNotFound
	}

	if err := s.auth.SetSessionOrg(ctx, sess.Token, orgID); err != nil {
		return nil, err
	}

	snapshot, err := s.build(ctx, user.ID, &orgID)
	if err != nil {
		return nil, err
	}

	// Atomic replacement: bump the generation so any in-flight refresh
	// that started before the switch cannot clobber the new snapshot.
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[user.ID]
	if !ok {
		e = &entry{}
		s.entries[user.ID] = e
	}
	e.generation++
	e.snapshot = snapshot
	e.lastAttempt = s.clock.Now()
	return snapshot, nil
}

func (s *service) Invalidate(userID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		e.generation++
		e.snapshot = nil
	}
}

// build loads memberships and picks the current organization:
// the persisted preference wins when still valid, otherwise the
// highest-weighted role (owner over admin over member), earliest
// membership breaking ties.
func (s *service) build(ctx context.Context, userID snowflake.ID, preferred *snowflake.ID) (*Snapshot, error) {
	orgs, memberships, err := s.orgs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, ErrNoOrganizations
	}

	list := make([]OrgMembership, 0, len(memberships))
	for i, m := range memberships {
		list = append(list, OrgMembership{
			OrgID: m.OrgID,
			Name:  orgs[i].Name,
			Slug:  orgs[i].Slug,
			Role:  m.Role,
		})
	}

	current := pickCurrent(list, preferred)
	snapshot := &Snapshot{
		SchemaVersion: SchemaVersion,
		UserID:        userID,
		CurrentOrgID:  current.OrgID,
		CurrentRole:   current.Role,
		Organizations: list,
		RefreshedAt:   s.clock.Now(),
	}
	return snapshot, nil
}

func pickCurrent(list []OrgMembership, preferred *snowflake.ID) OrgMembership {
	if preferred != nil {
		for _, m := range list {
			if m.OrgID == *preferred {
				return m
			}
		}
	}

	// Memberships arrive ordered by join time, so strict inequality
	// keeps the earliest membership on ties.
	best := list[0]
	bestWeight := rbac.OrgSelectionWeight(rbac.ParseRole(best.Role))
	for _, m := range list[1:] {
		if w := rbac.OrgSelectionWeight(rbac.ParseRole(m.Role)); w > bestWeight {
			best = m
			bestWeight = w
		}
	}
	return best
}
