// Package notify hands reset links and verification codes to the delivery pipeline.
package notify

import (
	"context"
	"time"
)

// Kind identifies what a notification carries.
type Kind string

const (
	KindPasswordReset     Kind = "password_reset"
	KindEmailVerification Kind = "email_verification"
	KindPhoneCode         Kind = "phone_code"
)

// Notifier delivers single-use secrets to a user out of band. Implementations must not log the secret.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
	SendPhoneCode(ctx context.Context, phone, code string) error
}

// Message is the wire form of one notification on the notifications topic.
type Message struct {
	Kind      Kind      `json:"kind"`
	To        string    `json:"to"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}
