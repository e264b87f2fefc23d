package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/layer-3/signon/ports"
)

// LogNotifier writes notifications to the log instead of sending them.
// Used when no SMTP host is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs through logger
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

var _ ports.Notifier = (*LogNotifier)(nil)

// Send logs the message at info level
func (n *LogNotifier) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("notification")
	return nil
}
