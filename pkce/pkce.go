// Package pkce generates the session identifier, verifier and challenge used
// by a single deep-link authentication attempt.
//
// The challenge is the S256 transform of the verifier:
//
//	challenge = BASE64URL-NOPAD(SHA256(verifier))
//
// so any party holding the verifier can recompute it, while the verifier
// cannot be recovered from the challenge.
package pkce

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// VerifierLength is the number of random bytes behind each verifier (256 bits).
const VerifierLength = 32

// Triple is the per-attempt {session id, verifier, challenge} set.
// It is created once per attempt and must never be reused.
type Triple struct {
	SessionID string
	Verifier  string
	Challenge string
}

var _ zerolog.LogObjectMarshaler = Triple{}

// MarshalZerologObject logs the public half of the triple only.
func (t Triple) MarshalZerologObject(e *zerolog.Event) {
	e.Str("session_id", t.SessionID).Str("challenge", t.Challenge)
}

// Validate checks that every field is present and that the challenge was
// derived from the verifier.
func (t Triple) Validate() error {
	switch {
	case t.SessionID == "":
		return fmt.Errorf("%w: session id is empty", ErrInvalidTriple)
	case t.Verifier == "":
		return fmt.Errorf("%w: verifier is empty", ErrInvalidTriple)
	case t.Challenge == "":
		return fmt.Errorf("%w: challenge is empty", ErrInvalidTriple)
	case !VerifyChallenge(t.Verifier, t.Challenge):
		return fmt.Errorf("%w: challenge does not match verifier", ErrInvalidTriple)
	}
	return nil
}

// Generator produces triples from a configurable randomness source.
type Generator struct {
	rand io.Reader
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRandSource replaces crypto/rand (primarily for testing).
func WithRandSource(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.rand = r
	}
}

// NewGenerator creates a Generator backed by crypto/rand unless overridden.
func NewGenerator(options ...GeneratorOption) *Generator {
	g := &Generator{rand: rand.Reader}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Generate returns a fresh triple. A failing randomness source is fatal and
// reported as ErrRandomness.
func (g *Generator) Generate() (Triple, error) {
	id, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		return Triple{}, fmt.Errorf("[Generate] session id: %w: %v", ErrRandomness, err)
	}

	b := make([]byte, VerifierLength)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return Triple{}, fmt.Errorf("[Generate] verifier: %w: %v", ErrRandomness, err)
	}
	verifier := Encode(b)

	return Triple{
		SessionID: id.String(),
		Verifier:  verifier,
		Challenge: ChallengeFromVerifier(verifier),
	}, nil
}

var defaultGenerator = NewGenerator()

// Generate returns a fresh triple using crypto/rand.
func Generate() (Triple, error) {
	return defaultGenerator.Generate()
}

// Encode is unpadded URL-safe base64: standard base64 with '+' -> '-',
// '/' -> '_' and all '=' removed.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// ChallengeFromVerifier derives the S256 challenge for verifier.
func ChallengeFromVerifier(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// VerifyChallenge reports whether challenge was derived from verifier.
func VerifyChallenge(verifier, challenge string) bool {
	expected := ChallengeFromVerifier(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
