package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed by someone else.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the claim set carried by an access token.
// Subject is the user id; SessionID identifies the session that minted the token.
type Claims struct {
	jwt.RegisteredClaims
	Email     string   `json:"email"`
	SessionID string   `json:"sid"`
	Roles     []string `json:"roles,omitempty"`
}

// TokenProvider signs and verifies access JWTs using RS256 or ES256 and mints opaque refresh tokens.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
// issuer and audience are stamped on every token and required on verification.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue signs claims as an access token valid for ttl.
// The caller provides Subject, Email, SessionID, and Roles; jti, iss, aud, iat, and exp are set here.
func (p *TokenProvider) Issue(claims Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" || ttl <= 0 {
		return "", ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := p.now()
	claims.ID = jti
	claims.Issuer = p.issuer
	claims.Audience = jwt.ClaimStrings{p.audience}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = nil
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return p.sign(claims)
}

// Verify parses the token and checks signature, expiry, issuer, and audience.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewRefreshToken returns a fresh opaque refresh token. Refresh tokens are not JWTs; they only
// identify a session row through their hash.
func (p *TokenProvider) NewRefreshToken() (string, error) {
	return NewOpaqueToken()
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
