package notifier

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes the reset link to the log instead of sending mail.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendReset(_ context.Context, email, link string) error {
	n.logger.Info("Password reset link",
		zap.String("to", email),
		zap.String("subject", ResetSubject),
		zap.String("link", link))
	return nil
}
