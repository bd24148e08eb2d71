package monitor

import (
	"context"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
)

// LogNotifier is the default alert delivery: it writes the alert to the
// structured log. External transports (email, chat) implement
// domain.Notifier and replace it in the wiring.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, alert domain.DriftAlert) error {
	n.log.Warn("drift alert",
		zap.String("alert_id", alert.ID),
		zap.String("model_id", alert.ModelID),
		zap.String("severity", string(alert.Severity)),
		zap.Strings("features", alert.Features))
	return nil
}
