package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// Credential methods on AuthService are recorded against the resource they change rather than "auth".
var methodOverrides = map[string]ActionResource{
	"/marketplace.auth.v1.AuthService/ForgotPassword":   {Action: "forgot", Resource: "password"},
	"/marketplace.auth.v1.AuthService/ResetPassword":    {Action: "reset", Resource: "password"},
	"/marketplace.auth.v1.AuthService/ChangePassword":   {Action: "change", Resource: "password"},
	"/marketplace.auth.v1.AuthService/ChangeEmail":      {Action: "change", Resource: "email"},
	"/marketplace.auth.v1.AuthService/SendVerification": {Action: "send", Resource: "verification"},
	"/marketplace.auth.v1.AuthService/VerifyEmail":      {Action: "verify", Resource: "email"},
	"/marketplace.auth.v1.AuthService/VerifyPhone":      {Action: "verify", Resource: "phone"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /marketplace.session.v1.SessionService/ListSessions).
// Action is a verb: get, list, revoke, login, or a lowercase method name for others.
// Resource is derived from the service name (e.g. SessionService -> session), except for the credential
// methods in methodOverrides.
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := methodOverrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /marketplace.package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	serviceName := beforeSlash[dot+1:]
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(serviceName)}
}

func serviceToResource(serviceName string) string {
	// SessionService -> session, AuthService -> auth
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	switch {
	case strings.HasPrefix(method, "Get") && method != "Get":
		return "get"
	case strings.HasPrefix(method, "List"):
		return "list"
	case strings.HasPrefix(method, "Revoke"):
		return "revoke"
	case strings.HasPrefix(method, "Health"):
		return "check"
	default:
		return strings.ToLower(method)
	}
}
