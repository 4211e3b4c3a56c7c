// Package audit keeps an append-only trail of billing-relevant events.
package audit

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActorSystem  = "system"
	ActorWebhook = "webhook"
)

// Entry is one audit record. Rows are never updated or deleted outside
// of retention cleanup.
type Entry struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID      `gorm:"not null;index" json:"org_id"`
	EventType string            `gorm:"type:text;not null;index" json:"event_type"`
	Actor     string            `gorm:"type:text;not null" json:"actor"`
	Details   datatypes.JSONMap `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "billing_audit_logs" }

// Service records and lists audit entries.
type Service interface {
	Record(ctx context.Context, orgID snowflake.ID, eventType, actor string, details map[string]any) error
	ListByOrg(ctx context.Context, orgID snowflake.ID, limit int) ([]Entry, error)
	// DeleteOlderThan removes entries past the retention horizon and
	// returns how many were dropped.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	db   *gorm.DB
	node *snowflake.Node
	log  *zap.Logger
}

// New returns the audit service.
func New(db *gorm.DB, node *snowflake.Node, log *zap.Logger) Service {
	return &service{db: db, node: node, log: log}
}

func (s *service) Record(ctx context.Context, orgID snowflake.ID, eventType, actor string, details map[string]any) error {
	entry := Entry{
		ID:        s.node.Generate(),
		OrgID:     orgID,
		EventType: eventType,
		Actor:     actor,
		Details:   details,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// Audit failures must not abort the operation being audited.
		s.log.Error("audit record failed",
			zap.String("event_type", eventType),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *service) ListByOrg(ctx context.Context, orgID snowflake.ID, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []Entry
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (s *service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Delete(&Entry{}, "created_at < ?", cutoff)
	return res.RowsAffected, res.Error
}
