package notify

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the logger instead of delivering them. It is
// the fallback when no broker is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	level := slog.LevelInfo
	if msg.Kind == KindAlert {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "notification",
		"kind", msg.Kind,
		"key", msg.Key,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
