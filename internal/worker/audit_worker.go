package worker

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/storefront-api/internal/events"
)

var auditedEvents = []events.EventType{
	events.EventUserRegistered,
	events.EventAdminBootstrapped,
	events.EventLoginSucceeded,
	events.EventLoginFailed,
	events.EventLoginThrottled,
	events.EventPasswordChanged,
	events.EventProfileUpdated,
	events.EventLoggedOut,
}

// StartAuditWorker subscribes an audit logger to every auth event.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	audit := logger.Named("audit")
	for _, eventType := range auditedEvents {
		level := zap.InfoLevel
		switch eventType {
		case events.EventLoginFailed, events.EventLoginThrottled, events.EventAdminBootstrapped:
			level = zap.WarnLevel
		}
		dispatcher.Subscribe(eventType, auditHandler(audit, level))
	}
}

func auditHandler(logger *zap.Logger, level zapcore.Level) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		if ce := logger.Check(level, string(event.Type)); ce != nil {
			ce.Write(
				zap.String("event_id", event.ID),
				zap.String("subject_id", event.Actor.SubjectID),
				zap.String("role", string(event.Actor.Role)),
				zap.Time("at", event.Timestamp),
				zap.Any("payload", event.Payload),
			)
		}
		return nil
	}
}
