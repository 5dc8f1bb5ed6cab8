package deeplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	pollPath        = "/auth/poll"
	maxPollBodySize = 1 << 20
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PollResponse is the body returned by the poll endpoint. Only AccessToken is
// required for success.
type PollResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	AuthID       string `json:"authId,omitempty"`
	UUID         string `json:"uuid,omitempty"`
}

// PollClient issues GET /auth/poll requests.
type PollClient struct {
	baseURL string
	http    HTTPDoer
	headers http.Header
}

// NewPollClient creates a client for the API host at baseURL.
func NewPollClient(baseURL string, doer HTTPDoer, headers http.Header) *PollClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &PollClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		headers: headers.Clone(),
	}
}

// PollURL builds <api-base>/auth/poll?uuid=<sessionID>&verifier=<verifier>.
func PollURL(apiBase, sessionID, verifier string) string {
	return fmt.Sprintf("%s%s?uuid=%s&verifier=%s",
		strings.TrimRight(apiBase, "/"), pollPath, url.QueryEscape(sessionID), url.QueryEscape(verifier))
}

// Poll performs a single poll. It returns ErrPollTransport, ErrPollPending or
// ErrSessionMismatch when no usable token came back.
func (c *PollClient) Poll(ctx context.Context, sessionID, verifier string) (PollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PollURL(c.baseURL, sessionID, verifier), nil)
	if err != nil {
		return PollResponse{}, fmt.Errorf("%w: invalid request for %s", ErrPollTransport, pollPath)
	}
	req.Header.Set("Accept", "application/json")
	for k, values := range c.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error embeds the full URL, verifier included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return PollResponse{}, fmt.Errorf("%w: GET %s: %v", ErrPollTransport, pollPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPollBodySize))
		return PollResponse{}, fmt.Errorf("%w: unexpected status %s", ErrPollTransport, resp.Status)
	}

	var out PollResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPollBodySize)).Decode(&out); err != nil {
		if err == io.EOF {
			return PollResponse{}, ErrPollPending
		}
		return PollResponse{}, fmt.Errorf("%w: decode body: %v", ErrPollTransport, err)
	}

	if out.AccessToken == "" {
		return out, ErrPollPending
	}
	if out.UUID != "" && out.UUID != sessionID {
		return PollResponse{}, ErrSessionMismatch
	}
	return out, nil
}
