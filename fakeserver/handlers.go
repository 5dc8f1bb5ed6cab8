package fakeserver

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-deeplink-auth/internal/errors"
	"github.com/jrsteele09/go-deeplink-auth/pkce"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	deepLinkPage = `<!doctype html><html><body><p>Login complete. You can close this page.</p></body></html>`
)

// pollResponse mirrors the body of the real poll endpoint
type pollResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	AuthID       string `json:"authId,omitempty"`
	UUID         string `json:"uuid,omitempty"`
}

// DeepLinkHandler binds a challenge to a session id on behalf of the
// signed-in browser identity.
func (s *Server) DeepLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		challenge := q.Get("challenge")
		sessionID := q.Get("uuid")
		mode := q.Get("mode")

		if mode != "login" {
			writeJSONError(w, http.StatusBadRequest, apperrors.ErrInvalidMode)
			return
		}
		if _, err := uuid.Parse(sessionID); err != nil {
			writeJSONError(w, http.StatusBadRequest, apperrors.Wrapf(apperrors.ErrInvalidRequest, "uuid"))
			return
		}
		// S256 challenges are always 43 characters
		if len(challenge) != 43 {
			writeJSONError(w, http.StatusBadRequest, apperrors.Wrapf(apperrors.ErrInvalidRequest, "challenge"))
			return
		}

		err := s.repo.Bind(sessionID, &PendingSession{
			Challenge: challenge,
			Identity:  s.identity,
			CreatedAt: s.nowTime(),
		})
		switch {
		case apperrors.Is(err, apperrors.ErrSessionBound):
			writeJSONError(w, http.StatusConflict, err)
			return
		case err != nil:
			log.Err(err).Msg("Failed to store deep-link session")
			writeJSONError(w, http.StatusInternalServerError, apperrors.ErrInternal)
			return
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		_, _ = w.Write([]byte(deepLinkPage))
	}
}

// PollHandler releases the access token once the verifier matches the bound
// challenge and the configured number of pending polls has been served.
func (s *Server) PollHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sessionID := q.Get("uuid")
		verifier := q.Get("verifier")
		if sessionID == "" || verifier == "" {
			writeJSONError(w, http.StatusBadRequest, apperrors.Wrapf(apperrors.ErrInvalidRequest, "uuid and verifier are required"))
			return
		}

		// Expiry, verification and the pending count are decided in one
		// repo step so concurrent polls cannot both release the token.
		released := false
		session, err := s.repo.Update(sessionID, func(p *PendingSession) (bool, error) {
			if s.nowTime().Sub(p.CreatedAt) > s.sessionTTL {
				return true, apperrors.ErrSessionExpired
			}
			if !pkce.VerifyChallenge(verifier, p.Challenge) {
				return false, apperrors.ErrChallengeMismatch
			}
			if p.Polls < s.pendingPolls {
				p.Polls++
				return false, nil
			}
			released = true
			return true, nil
		})
		switch {
		case apperrors.Is(err, apperrors.ErrSessionNotFound), apperrors.Is(err, apperrors.ErrSessionExpired):
			writeJSONError(w, http.StatusNotFound, err)
			return
		case apperrors.Is(err, apperrors.ErrChallengeMismatch):
			writeJSONError(w, http.StatusForbidden, err)
			return
		case err != nil:
			log.Err(err).Msg("Failed to update pending session")
			writeJSONError(w, http.StatusInternalServerError, apperrors.ErrInternal)
			return
		}

		if !released {
			writeJSON(w, http.StatusOK, pollResponse{})
			return
		}

		accessToken, err := s.mintAccessToken(session.Identity, sessionID)
		if err != nil {
			log.Err(err).Msg("Failed to mint access token")
			writeJSONError(w, http.StatusInternalServerError, apperrors.ErrInternal)
			return
		}
		refreshToken, err := newRefreshToken()
		if err != nil {
			log.Err(err).Msg("Failed to create refresh token")
			writeJSONError(w, http.StatusInternalServerError, apperrors.ErrInternal)
			return
		}

		writeJSON(w, http.StatusOK, pollResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			AuthID:       "mock|" + session.Identity,
			UUID:         sessionID,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
