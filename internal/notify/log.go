package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier records that a notification would have been sent, without the secret.
// Used when Kafka is not configured.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier returns a LogNotifier writing to log.
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, _ string) error {
	n.log.Info("notify: password reset issued", zap.String("to", email))
	return nil
}

func (n *LogNotifier) SendEmailVerification(_ context.Context, email, _ string) error {
	n.log.Info("notify: email verification issued", zap.String("to", email))
	return nil
}

func (n *LogNotifier) SendPhoneCode(_ context.Context, phone, _ string) error {
	n.log.Info("notify: phone code issued", zap.String("to", MaskPhone(phone)))
	return nil
}

// MaskPhone keeps only the last four digits of a phone number for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
