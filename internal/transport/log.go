package transport

import (
	"context"

	"github.com/rs/zerolog"
)

// LogTransport records messages in the log instead of delivering them.
// It stands in for the web push channel and for local development.
type LogTransport struct {
	logger zerolog.Logger
	redact bool
}

// NewLogTransport returns a LogTransport writing to logger.
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger.With().Str("component", "transport.log").Logger()}
}

// NewRedactedLogTransport returns a LogTransport that logs only the
// envelope and body length. Use it for channels carrying secrets, such as
// verification codes.
func NewRedactedLogTransport(logger zerolog.Logger) *LogTransport {
	t := NewLogTransport(logger)
	t.redact = true
	return t
}

// Send logs msg at info level. It never fails.
func (t *LogTransport) Send(_ context.Context, msg Message) error {
	ev := t.logger.Info().
		Str("channel", string(msg.Channel)).
		Str("to", msg.To).
		Str("subject", msg.Subject)

	if t.redact {
		ev.Int("body_len", len(msg.Body)).Msg("message not delivered")
		return nil
	}
	ev.Msg(msg.Body)
	return nil
}
