package domain

// CallerIdentity is the authenticated caller of an RPC, assembled once from a verified access
// token and passed explicitly to every authenticated operation.
type CallerIdentity struct {
	UserID    string
	Email     string
	SessionID string
	Roles     []string
}

// Valid reports whether the identity names both a user and a session.
func (c CallerIdentity) Valid() bool {
	return c.UserID != "" && c.SessionID != ""
}
