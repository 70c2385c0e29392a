package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender writes notifications to the log instead of delivering them
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender creates a log-only sender for development
func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// GetName returns the sender name
func (s *LogSender) GetName() string {
	return "log"
}

// Send renders the message and logs it
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	_, text, err := Render(msg.Template, msg.Context)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"template":    msg.Template,
		"attachments": len(msg.Attachments),
	}).Info("Notification (log mode)")
	s.logger.Debug(text)
	return nil
}
