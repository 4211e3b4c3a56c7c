// Package service implements account and session management.
package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/equipqr/equipqr/internal/auth/domain"
	"github.com/equipqr/equipqr/internal/clock"
	pkgdb "github.com/equipqr/equipqr/pkg/db"
)

const (
	sessionTTL        = 30 * 24 * time.Hour
	minPasswordLength = 8
)

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clock.Clock
	log   *zap.Logger
}

// New returns the auth service.
func New(db *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) domain.Service {
	return &service{db: db, node: node, clock: clk, log: log}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           s.node.Generate(),
		Email:        strings.ToLower(addr.Address),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, *domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).
		First(&user, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}

	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.clock.Now().Add(sessionTTL),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, nil, err
	}
	return session, &user, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*domain.Session, *domain.User, error) {
	if token == "" {
		return nil, nil, domain.ErrInvalidSession
	}

	var session domain.Session
	err := s.db.WithContext(ctx).First(&session, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrInvalidSession
		}
		return nil, nil, err
	}
	if !s.clock.Now().Before(session.ExpiresAt) {
		return nil, nil, domain.ErrSessionExpired
	}

	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, domain.ErrInvalidSession
		}
		return nil, nil, err
	}
	return &session, &user, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).
		Delete(&domain.Session{}, "token = ?", token).Error
}

func (s *service) SetSessionOrg(ctx context.Context, token string, orgID snowflake.ID) error {
	res := s.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("token = ?", token).
		Update("org_id", orgID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidSession
	}
	return nil
}

func (s *service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	return &user, nil
}
