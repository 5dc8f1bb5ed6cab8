package token_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-deeplink-auth/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	s, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("unused-key"))
	require.NoError(t, err)
	return s
}

func TestParseJWT(t *testing.T) {
	iat := time.Unix(1700000000, 0)
	exp := iat.Add(time.Hour)
	raw := signedToken(t, jwtlib.MapClaims{
		"sub": "auth0|user_01",
		"iss": "https://authentication.example.com",
		"aud": "https://api.example.com",
		"iat": iat.Unix(),
		"exp": exp.Unix(),
	})

	tok, err := token.Parse(raw)
	require.NoError(t, err)
	require.True(t, tok.JWT)
	require.Equal(t, raw, tok.Raw)
	require.Equal(t, "auth0|user_01", tok.Subject)
	require.Equal(t, "https://authentication.example.com", tok.Issuer)
	require.Equal(t, []string{"https://api.example.com"}, tok.Audience)
	require.True(t, tok.IssuedAt.Equal(iat))
	require.True(t, tok.ExpiresAt.Equal(exp))

	require.False(t, tok.Expired(exp.Add(-time.Second)))
	require.True(t, tok.Expired(exp))
}

func TestParseOpaque(t *testing.T) {
	tok, err := token.Parse("  opaque-token-value ")
	require.NoError(t, err)
	require.False(t, tok.JWT)
	require.Equal(t, "opaque-token-value", tok.Raw)
	require.False(t, tok.Expired(time.Now()))
}

func TestParseEmpty(t *testing.T) {
	_, err := token.Parse("   ")
	require.ErrorIs(t, err, token.ErrEmptyToken)
}

func TestOAuth2Transport(t *testing.T) {
	raw := signedToken(t, jwtlib.MapClaims{"sub": "user", "exp": time.Now().Add(time.Hour).Unix()})
	tok, err := token.Parse(raw)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+raw, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(tok.OAuth2()))
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLogNeverContainsRawToken(t *testing.T) {
	raw := signedToken(t, jwtlib.MapClaims{"sub": "user-7"})
	tok, err := token.Parse(raw)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("token", tok).Msg("acquired")
	require.Contains(t, buf.String(), "user-7")
	require.NotContains(t, buf.String(), raw)
}
