package audit

import (
	"context"
	"log/slog"

	"voicecmd/internal/domain"
)

// Sink receives authorization decisions. Implementations must be
// fire-and-forget: Record never blocks the pipeline and failures are
// swallowed by the sink itself.
type Sink interface {
	Record(ctx context.Context, ev domain.AuditEvent)
}

// SlogSink writes audit events to the structured log. It is the default sink
// when no database is configured.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Record(_ context.Context, ev domain.AuditEvent) {
	s.logger.Info("authorization decision",
		"request_id", ev.RequestID,
		"intent", ev.Intent,
		"confidence", ev.Confidence,
		"decision", ev.Decision,
		"reason", ev.Reason,
	)
}
