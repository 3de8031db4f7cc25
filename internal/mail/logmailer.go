package mail

import (
	"context"
	"log/slog"
)

// LogMailer writes the verification link to the log instead of sending
// mail. It is the development default so the flow can be exercised
// without an SMTP relay.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationLink(_ context.Context, to, link string) error {
	m.logger.Info("verification email (dev delivery)",
		"to", to,
		"link", link,
	)
	return nil
}
