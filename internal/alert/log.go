// Package alert delivers operator alerts for failures that need a human,
// such as rejected API credentials.
package alert

import (
	"log/slog"

	"github.com/civicwatch/civicwatch/internal/model"
)

// Ensure LogAlerter implements model.Alerter.
var _ model.Alerter = (*LogAlerter)(nil)

// LogAlerter writes alerts to the structured log. It is the default when no
// webhook is configured.
type LogAlerter struct {
	logger *slog.Logger
}

func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (l *LogAlerter) Alert(subject, message string) error {
	l.logger.Error("OPERATOR ALERT", "subject", subject, "message", message)
	return nil
}
