package service

import (
	"errors"
	"strings"
)

// Error kinds returned by AuthService and CredentialService. Handlers map them to gRPC codes;
// every other error is an infrastructure failure.
var (
	// ErrInvalidCredentials covers unknown email, wrong password, and inactive accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalidOrExpired covers refresh tokens, reset and verification tokens, and phone codes.
	ErrTokenInvalidOrExpired = errors.New("invalid or expired token")
	// ErrPolicyViolation covers weak passwords, malformed or taken emails, and unusable verification requests.
	ErrPolicyViolation = errors.New("policy violation")
	// ErrNotFound is returned for missing resources and for resources owned by another user.
	ErrNotFound = errors.New("not found")
)

// OpError attaches the failing operation and a caller-safe message to an error kind.
// errors.Is(err, ErrPolicyViolation) holds for an OpError whose Kind is ErrPolicyViolation.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e *OpError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Kind }

func opErr(op string, kind error, msg string) error {
	return &OpError{Op: op, Kind: kind, Msg: msg}
}

// PublicMessage returns the message safe to show a caller: the policy detail for policy
// violations, the bare kind otherwise.
func PublicMessage(err error) string {
	var op *OpError
	if errors.As(err, &op) && errors.Is(op.Kind, ErrPolicyViolation) && op.Msg != "" {
		return op.Msg
	}
	for _, kind := range []error{ErrInvalidCredentials, ErrTokenInvalidOrExpired, ErrPolicyViolation, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
