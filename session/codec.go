// Package session implements the stateless bearer-session codec.
//
// Sessions are self-contained HS256 JWTs holding the verified identity
// claims. No session table exists server-side: a token is re-issued
// wholesale whenever a claim changes, and revocation before natural expiry
// is impossible. The expiry horizon is bounded to 24 hours, which keeps
// that trade-off acceptable for the low-sensitivity claims carried here.
//
// Expired, forged and malformed tokens all collapse to ErrInvalidToken; a
// caller cannot distinguish them from a missing token.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/basemint/whitelist-backend/interfaces"
)

// TokenTTL is the fixed validity horizon of a session token.
const TokenTTL = 24 * time.Hour

// ErrInvalidToken covers every verification failure: bad signature, bad
// format, expired, or missing expiry claim.
var ErrInvalidToken = errors.New("invalid session token")

// Claims are the identity claims carried by a session token.
type Claims struct {
	UserID      interfaces.IdentityID `json:"xUserId,omitempty"`
	Handle      string                `json:"xUsername,omitempty"`
	AccessToken string                `json:"xAccessToken,omitempty"`
	Follower    bool                  `json:"isFollower,omitempty"`
	Wallet      string                `json:"address,omitempty"`
}

// Update is a partial set of claims for Merge. Nil fields are left
// untouched.
type Update struct {
	Handle      *string
	AccessToken *string
	Follower    *bool
	Wallet      *string
}

// tokenClaims is the wire shape: application claims plus an explicit
// absolute expiry in unix milliseconds alongside the registered exp claim.
type tokenClaims struct {
	Claims
	ExpiresAtMS int64 `json:"expiresAt"`
	jwt.RegisteredClaims
}

// Codec issues and verifies session tokens under a symmetric secret held
// only by the service.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec. An empty secret is a deployment defect and
// fails with ErrNoSessionSecret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, interfaces.ErrNoSessionSecret
	}
	return &Codec{secret: secret, now: time.Now}, nil
}

// WithClock returns a copy of the codec using the given time source.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	return &Codec{secret: c.secret, now: now}
}

// Issue serializes the claims into a fresh signed token expiring TokenTTL
// from now.
func (c *Codec) Issue(claims Claims) (string, error) {
	now := c.now()
	expires := now.Add(TokenTTL)

	tc := tokenClaims{
		Claims:      claims,
		ExpiresAtMS: expires.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tc)
	return token.SignedString(c.secret)
}

// Verify checks authenticity and expiry and returns the decoded claims.
// A token is valid only while now < expiresAt.
func (c *Codec) Verify(tokenStr string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if tc.ExpiresAtMS == 0 || !c.now().Before(time.UnixMilli(tc.ExpiresAtMS)) {
		return Claims{}, ErrInvalidToken
	}

	return tc.Claims, nil
}

// Merge verifies the old token, shallow-merges the update over its claims
// and issues a fresh token with a fresh expiry. Merging into an invalid or
// expired token is refused. This is the only mutation path for claims.
func (c *Codec) Merge(tokenStr string, update Update) (string, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return "", err
	}

	if update.Handle != nil {
		claims.Handle = *update.Handle
	}
	if update.AccessToken != nil {
		claims.AccessToken = *update.AccessToken
	}
	if update.Follower != nil {
		claims.Follower = *update.Follower
	}
	if update.Wallet != nil {
		claims.Wallet = *update.Wallet
	}

	return c.Issue(claims)
}
