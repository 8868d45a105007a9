package notify

import (
	"context"

	"advocate_backend/internal/events"
	"advocate_backend/platform/config"
	"advocate_backend/platform/logger"
)

// Module subscribes to escalation events and forwards them to staff email.
type Module struct {
	sender Sender
	log    *logger.Logger
}

// NewModule builds the notify module from mail configuration. When mail is
// not configured the module still subscribes but delivery is a no-op.
func NewModule(cfg config.MailConfig, log *logger.Logger) *Module {
	var sender Sender = NopSender{}
	if cfg.IsMailEnabled() {
		sender = NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
			cfg.GetEscalationAddress(),
		)
	}
	return &Module{sender: sender, log: log}
}

// RegisterHandlers wires the module onto the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe("leads.escalated", events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		escalated, ok := event.(events.LeadEscalated)
		if !ok {
			return nil
		}

		alert := EscalationAlert{
			LeadName: escalated.LeadName,
			Phone:    escalated.Phone,
			Intent:   escalated.Intent,
			Message:  escalated.Message,
		}
		if err := m.sender.SendEscalationAlert(ctx, alert); err != nil {
			m.log.Error("failed to send escalation alert", "lead_id", escalated.LeadID, "error", err)
			return err
		}

		m.log.Info("escalation alert sent", "lead_id", escalated.LeadID, "intent", escalated.Intent)
		return nil
	}))
}
