// Package notify delivers staff alerts for escalated conversations.
package notify

import (
	"context"
	"fmt"
	"html"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers a staff escalation alert.
type Sender interface {
	SendEscalationAlert(ctx context.Context, alert EscalationAlert) error
}

// EscalationAlert carries what staff need to pick up an escalated lead.
type EscalationAlert struct {
	LeadName string
	Phone    string
	Intent   string
	Message  string
}

// SMTPSender delivers alerts over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	toEmail   string
}

// NewSMTPSender creates an SMTP-backed alert sender.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName, toEmail string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
		toEmail:   toEmail,
	}
}

var _ Sender = (*SMTPSender)(nil)

// SendEscalationAlert emails the care team about a lead waiting in handoff.
func (s *SMTPSender) SendEscalationAlert(ctx context.Context, alert EscalationAlert) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Escalated lead: %s (%s)", alert.LeadName, alert.Intent))
	msg.SetBodyString(gomail.TypeTextHTML, renderEscalationBody(alert))

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func renderEscalationBody(alert EscalationAlert) string {
	return fmt.Sprintf(
		`<h2>A lead needs personal attention</h2>
<p><strong>Name:</strong> %s<br>
<strong>Phone:</strong> %s<br>
<strong>Reason:</strong> %s</p>
<p><strong>Their message:</strong></p>
<blockquote>%s</blockquote>
<p>The assistant has paused automated replies for this lead. Please reach out as soon as possible.</p>`,
		html.EscapeString(alert.LeadName),
		html.EscapeString(alert.Phone),
		html.EscapeString(alert.Intent),
		html.EscapeString(alert.Message),
	)
}

// NopSender is used when mail delivery is not configured.
type NopSender struct{}

func (NopSender) SendEscalationAlert(context.Context, EscalationAlert) error { return nil }

var _ Sender = (*NopSender)(nil)
