// Package repository provides the gorm-backed organization repository.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/organization/domain"
)

type repository struct {
	db *gorm.DB
}

// New returns a Repository backed by db.
func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) FindOrganizationByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).First(&org, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListOrganizationsCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&orgs).Error
	return orgs, err
}

func (r *repository) AddMember(ctx context.Context, member *domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) FindMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMemberships(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.MemberStatusActive).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repository) UpdateMember(ctx context.Context, member *domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *repository) CountMembersByStatus(ctx context.Context, orgID snowflake.ID, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND status = ?", orgID, status).
		Count(&count).Error
	return count, err
}

func (r *repository) ListActiveMembersNewestFirst(ctx context.Context, orgID snowflake.ID, limit int) ([]domain.OrganizationMember, error) {
	var members []domain.OrganizationMember
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND status = ?", orgID, domain.MemberStatusActive).
		Order("created_at DESC").
		Limit(limit).
		Find(&members).Error
	return members, err
}

func (r *repository) CreateInvite(ctx context.Context, invite *domain.OrganizationInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *repository) FindInviteByID(ctx context.Context, id snowflake.ID) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	if err := r.db.WithContext(ctx).First(&invite, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *repository) FindPendingInvite(ctx context.Context, orgID snowflake.ID, email string) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).
		First(&invite, "org_id = ? AND LOWER(email) = ? AND status = ?",
			orgID, strings.ToLower(email), domain.InviteStatusPending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInviteNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *repository) UpdateInvite(ctx context.Context, invite *domain.OrganizationInvite) error {
	return r.db.WithContext(ctx).Save(invite).Error
}
