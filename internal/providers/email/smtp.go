package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/equipqr/equipqr/internal/config"
)

var inviteTmpl = template.Must(template.New("invite").Parse(`<html>
<body>
  <p>You have been invited to join <b>{{.OrgName}}</b> as a {{.Role}}.</p>
  <p><a href="{{.InviteURL}}">Accept the invite</a></p>
</body>
</html>`))

// SMTP sends mail over a plain SMTP relay.
type SMTP struct {
	host string
	port int
	from string
	auth smtp.Auth
	log  *zap.Logger
}

// NewSMTP builds an SMTP provider from config.
func NewSMTP(cfg config.Config, log *zap.Logger) *SMTP {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTP{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		from: cfg.SMTPFrom,
		auth: auth,
		log:  log,
	}
}

func (s *SMTP) SendInvite(ctx context.Context, msg InviteMessage) error {
	var body bytes.Buffer
	if err := inviteTmpl.Execute(&body, msg); err != nil {
		return fmt.Errorf("render invite email: %w", err)
	}

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "From: %s\r\n", s.from)
	fmt.Fprintf(&raw, "To: %s\r\n", msg.To)
	fmt.Fprintf(&raw, "Subject: Invitation to join %s\r\n", msg.OrgName)
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	raw.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := smtp.SendMail(addr, s.auth, s.from, []string{msg.To}, raw.Bytes()); err != nil {
		return fmt.Errorf("send invite email: %w", err)
	}
	s.log.Info("invite email sent", zap.String("to", msg.To))
	return nil
}
