// Package token decodes the access token released by the poll endpoint.
//
// The token is opaque to the exchange itself. When it happens to be a JWT
// its registered claims are decoded WITHOUT signature verification, purely
// for display and expiry checks; the holder is never the token's audience
// verifier.
package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var ErrEmptyToken = errors.New("access token is empty")

// AccessToken is the credential held by the caller for the rest of the process.
type AccessToken struct {
	Raw       string
	JWT       bool // false for opaque tokens; claim fields are then empty
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Parse wraps raw, decoding JWT claims when present.
func Parse(raw string) (*AccessToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyToken
	}

	t := &AccessToken{Raw: raw}
	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return t, nil
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return t, nil
	}

	t.JWT = true
	t.Subject, _ = claims.GetSubject()
	t.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		t.Audience = aud
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t.ExpiresAt = exp.Time
	}
	return t, nil
}

// Expired reports whether the token carries an expiry that has passed.
// Tokens without one never expire from the holder's point of view.
func (t *AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// OAuth2 converts to an *oauth2.Token so it can back an oauth2.StaticTokenSource.
func (t *AccessToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.Raw,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}
}

var _ zerolog.LogObjectMarshaler = (*AccessToken)(nil)

// MarshalZerologObject logs claims only, never the raw token.
func (t *AccessToken) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("jwt", t.JWT)
	if !t.JWT {
		return
	}
	e.Str("sub", t.Subject).Str("iss", t.Issuer)
	if !t.ExpiresAt.IsZero() {
		e.Time("exp", t.ExpiresAt)
	}
}
