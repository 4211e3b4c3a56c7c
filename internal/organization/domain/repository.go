package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists organizations, memberships and invites.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org *Organization) error
	FindOrganizationByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListOrganizationsCreatedBetween(ctx context.Context, from, to time.Time) ([]Organization, error)

	AddMember(ctx context.Context, member *OrganizationMember) error
	FindMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListMemberships(ctx context.Context, userID snowflake.ID) ([]OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)
	UpdateMember(ctx context.Context, member *OrganizationMember) error
	CountMembersByStatus(ctx context.Context, orgID snowflake.ID, status string) (int64, error)
	ListActiveMembersNewestFirst(ctx context.Context, orgID snowflake.ID, limit int) ([]OrganizationMember, error)

	CreateInvite(ctx context.Context, invite *OrganizationInvite) error
	FindInviteByID(ctx context.Context, id snowflake.ID) (*OrganizationInvite, error)
	FindPendingInvite(ctx context.Context, orgID snowflake.ID, email string) (*OrganizationInvite, error)
	UpdateInvite(ctx context.Context, invite *OrganizationInvite) error
}
