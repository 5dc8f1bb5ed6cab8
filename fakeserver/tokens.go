package fakeserver

import (
	"crypto/rand"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-deeplink-auth/pkce"
)

// mintAccessToken creates an HS256 access token for the signed-in identity,
// bound to the deep-link session through the "sid" claim.
func (s *Server) mintAccessToken(identity, sessionID string) (string, error) {
	now := s.nowTime()
	claims := jwtlib.MapClaims{
		"iss": s.issuer,                   // The issuer of the token
		"sub": identity,                   // The signed-in browser identity
		"sid": sessionID,                  // Deep-link session the token was released for
		"iat": now.Unix(),                 // Issued At
		"exp": now.Add(s.tokenTTL).Unix(), // Expiry
		"jti": uuid.New().String(),        // Unique token ID
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks a token minted by this server and returns its claims.
func (s *Server) VerifyAccessToken(raw string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithTimeFunc(s.nowTime),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	return claims, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return pkce.Encode(b), nil
}
