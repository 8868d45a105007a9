package audit

import (
	"context"

	"advocate_backend/platform/logger"

	"github.com/google/uuid"
)

// Recorder is the narrow persistence interface the audit logger needs.
type Recorder interface {
	Insert(ctx context.Context, eventType, severity string, leadID *uuid.UUID, payload map[string]any) error
}

// Logger writes system events. Audit failures are logged and swallowed so
// they can never fail the business operation that produced them.
type Logger struct {
	repo Recorder
	log  *logger.Logger
}

// New creates an audit logger.
func New(repo Recorder, log *logger.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Event records a raw system event.
func (l *Logger) Event(ctx context.Context, eventType, severity string, leadID *uuid.UUID, payload map[string]any) {
	if l == nil || l.repo == nil {
		return
	}
	if err := l.repo.Insert(context.WithoutCancel(ctx), eventType, severity, leadID, payload); err != nil && l.log != nil {
		l.log.Warn("audit event dropped", "event_type", eventType, "error", err)
	}
}

// StatusChange records a lead lifecycle transition.
func (l *Logger) StatusChange(ctx context.Context, leadID uuid.UUID, oldStatus, newStatus, reason string) {
	l.Event(ctx, "lead_status_change", SeverityInfo, &leadID, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
		"reason":     reason,
	})
}

// AIInteraction records a model-driven action. The interaction name is
// prefixed with "ai_" so these events group together in queries.
func (l *Logger) AIInteraction(ctx context.Context, leadID uuid.UUID, interaction string, payload map[string]any) {
	l.Event(ctx, "ai_"+interaction, SeverityInfo, &leadID, payload)
}

// OutreachCampaign records a re-engagement send.
func (l *Logger) OutreachCampaign(ctx context.Context, leadID uuid.UUID, strategy, source string) {
	l.Event(ctx, "outreach_campaign", SeverityInfo, &leadID, map[string]any{
		"strategy": strategy,
		"source":   source,
	})
}

// Warning records a degraded-path event, such as a classifier falling back.
func (l *Logger) Warning(ctx context.Context, leadID *uuid.UUID, eventType string, payload map[string]any) {
	l.Event(ctx, eventType, SeverityWarning, leadID, payload)
}

// Error records a failure. The kind is prefixed with "error_".
func (l *Logger) Error(ctx context.Context, leadID *uuid.UUID, kind string, err error) {
	payload := map[string]any{}
	if err != nil {
		payload["error"] = err.Error()
	}
	l.Event(ctx, "error_"+kind, SeverityError, leadID, payload)
}
