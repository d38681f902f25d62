package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// CodeSender sends a verification code by SMS.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// Dispatcher delivers notifications read from the notifications topic. Phone codes go out by SMS;
// email delivery is outside this service, so email notifications are only acknowledged in the log.
type Dispatcher struct {
	sms CodeSender
	log *zap.Logger
}

// NewDispatcher returns a Dispatcher. sms may be nil, in which case phone codes are logged and dropped.
func NewDispatcher(sms CodeSender, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sms: sms, log: log}
}

// Handle decodes one message value and delivers it. A malformed payload is logged and skipped
// (returns nil) so one bad record cannot stall the consumer.
func (d *Dispatcher) Handle(ctx context.Context, value []byte) error {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil {
		d.log.Warn("notify: dropping malformed message", zap.Error(err))
		return nil
	}
	switch msg.Kind {
	case KindPhoneCode:
		if d.sms == nil {
			d.log.Warn("notify: sms not configured, dropping phone code", zap.String("to", MaskPhone(msg.To)))
			return nil
		}
		if err := d.sms.SendCode(ctx, msg.To, msg.Secret); err != nil {
			return fmt.Errorf("deliver phone code: %w", err)
		}
		d.log.Info("notify: phone code delivered", zap.String("to", MaskPhone(msg.To)))
	case KindPasswordReset, KindEmailVerification:
		d.log.Info("notify: email queued", zap.String("kind", string(msg.Kind)), zap.String("to", msg.To))
	default:
		d.log.Warn("notify: unknown kind", zap.String("kind", string(msg.Kind)))
	}
	return nil
}
