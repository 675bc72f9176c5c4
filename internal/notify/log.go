package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to the structured log. Used when no broker is
// configured and as the test double.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(ctx context.Context, event Event) error {
	n.logger.InfoContext(ctx, "protocol lifecycle event",
		"kind", string(event.Kind),
		"protocol_id", event.ProtocolID.String(),
		"number", event.Number,
		"old_status", string(event.OldStatus),
		"new_status", string(event.NewStatus),
	)
	return nil
}
