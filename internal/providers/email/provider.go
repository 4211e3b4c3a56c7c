// Package email sends transactional mail for invite flows.
package email

import "context"

// InviteMessage describes an organization invite email.
type InviteMessage struct {
	To        string
	OrgName   string
	Role      string
	InviteURL string
}

// Provider delivers transactional email.
type Provider interface {
	SendInvite(ctx context.Context, msg InviteMessage) error
}

// Noop discards all mail. Used when SMTP is not configured.
type Noop struct{}

func (Noop) SendInvite(ctx context.Context, msg InviteMessage) error { return nil }
