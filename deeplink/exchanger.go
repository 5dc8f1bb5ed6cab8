// Package deeplink exchanges a PKCE verifier for an access token through a
// deep-link handshake.
//
// The browser is sent to <auth-base>/loginDeepControl carrying the challenge
// and session id. Once the signed-in browser session has bound its identity
// to the session id, <api-base>/auth/poll releases a token to whoever
// presents the matching verifier.
package deeplink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jrsteele09/go-deeplink-auth/pkce"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts  = 20
	DefaultPollInterval = 1 * time.Second

	deepLinkPath = "/loginDeepControl"
)

// Navigator is the browser capability the exchange depends on. Navigate must
// return once the page has settled (network idle) or fail.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}

// ReportFunc is invoked once when an exchange ends in FAILED or EXHAUSTED.
type ReportFunc func(ctx context.Context, outcome Outcome)

// Exchanger runs the deep-link dispatch followed by the polling loop.
// Each Exchange call owns its own loop state, so an Exchanger may be reused
// sequentially, but one attempt should own one browser page.
type Exchanger struct {
	navigator    Navigator
	authBaseURL  string
	apiBaseURL   string
	httpClient   HTTPDoer
	headers      http.Header
	maxAttempts  int
	pollInterval time.Duration
	report       ReportFunc
	logger       zerolog.Logger
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithAuthBaseURL sets the host serving the deep link.
func WithAuthBaseURL(u string) Option {
	return func(e *Exchanger) {
		e.authBaseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIBaseURL sets the host serving /auth/poll.
func WithAPIBaseURL(u string) Option {
	return func(e *Exchanger) {
		e.apiBaseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(c HTTPDoer) Option {
	return func(e *Exchanger) {
		e.httpClient = c
	}
}

// WithHeaders adds headers to every poll request (Origin, User-Agent...).
func WithHeaders(h http.Header) Option {
	return func(e *Exchanger) {
		for k, values := range h {
			for _, v := range values {
				e.headers.Add(k, v)
			}
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(e *Exchanger) {
		e.maxAttempts = n
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(e *Exchanger) {
		e.pollInterval = d
	}
}

func WithReporter(r ReportFunc) Option {
	return func(e *Exchanger) {
		e.report = r
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Exchanger) {
		e.logger = l
	}
}

// New creates an Exchanger. Both base URLs are required.
func New(navigator Navigator, options ...Option) (*Exchanger, error) {
	if navigator == nil {
		return nil, pkgerrors.New("[New] navigator is required")
	}

	e := &Exchanger{
		navigator:    navigator,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		headers:      http.Header{},
		maxAttempts:  DefaultMaxAttempts,
		pollInterval: DefaultPollInterval,
		report:       func(context.Context, Outcome) {},
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(e)
	}

	if err := validateBaseURL(e.authBaseURL); err != nil {
		return nil, pkgerrors.Wrap(err, "[New] auth base url")
	}
	if err := validateBaseURL(e.apiBaseURL); err != nil {
		return nil, pkgerrors.Wrap(err, "[New] api base url")
	}
	if e.maxAttempts < 1 {
		return nil, pkgerrors.Errorf("[New] max attempts must be at least 1, got %d", e.maxAttempts)
	}
	if e.pollInterval < 0 {
		return nil, pkgerrors.Errorf("[New] poll interval must not be negative, got %s", e.pollInterval)
	}
	if e.httpClient == nil {
		return nil, pkgerrors.New("[New] http client is required")
	}
	if e.report == nil {
		e.report = func(context.Context, Outcome) {}
	}
	return e, nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// DeepLinkURL builds <auth-base>/loginDeepControl?challenge=<c>&uuid=<id>&mode=login.
func DeepLinkURL(authBase string, triple pkce.Triple) string {
	return fmt.Sprintf("%s%s?challenge=%s&uuid=%s&mode=login",
		strings.TrimRight(authBase, "/"), deepLinkPath, url.QueryEscape(triple.Challenge), url.QueryEscape(triple.SessionID))
}

// Exchange dispatches the deep link and polls for the access token.
//
// Errors wrap ErrDispatchFailure when the navigation fails (no polls are
// made), ErrExchangeTimeout when the attempt budget runs out, or the context
// error when the caller cancels. Individual poll failures never end the loop.
func (e *Exchanger) Exchange(ctx context.Context, triple pkce.Triple) (string, error) {
	if err := triple.Validate(); err != nil {
		return "", pkgerrors.Wrap(err, "[Exchange]")
	}

	logger := e.logger.With().Str("session_id", triple.SessionID).Logger()
	outcome := Outcome{SessionID: triple.SessionID, State: StateInitiated}

	deepLink := DeepLinkURL(e.authBaseURL, triple)
	logger.Debug().Str("url", deepLink).Msg("dispatching deep link")
	if err := e.navigator.Navigate(ctx, deepLink); err != nil {
		outcome.State = StateFailed
		outcome.Err = fmt.Errorf("[Exchange] %w: %w", ErrDispatchFailure, err)
		return "", e.fail(ctx, logger, outcome)
	}

	outcome.State = StatePolling
	logger.Debug().Int("max_attempts", e.maxAttempts).Dur("interval", e.pollInterval).Msg("polling for token")

	client := NewPollClient(e.apiBaseURL, e.httpClient, e.headers)
	var lastErr error
	poll := func() (string, error) {
		if err := ctx.Err(); err != nil {
			return "", backoff.Permanent(err)
		}
		outcome.Attempts++
		resp, err := client.Poll(ctx, triple.SessionID, triple.Verifier)
		switch {
		case err == nil:
			return resp.AccessToken, nil
		case errors.Is(err, ErrPollTransport):
			outcome.TransportErrors++
		case errors.Is(err, ErrSessionMismatch):
			outcome.SessionMismatches++
		default:
			outcome.Pending++
		}
		lastErr = err
		return "", err
	}
	notify := func(err error, next time.Duration) {
		event := logger.Debug()
		if errors.Is(err, ErrPollTransport) || errors.Is(err, ErrSessionMismatch) {
			event = logger.Warn()
		}
		event.Err(err).Int("attempt", outcome.Attempts).Dur("retry_in", next).Msg("token not ready")
	}

	token, err := backoff.RetryNotifyWithData[string](poll, e.pollBackOff(ctx), notify)
	if err == nil {
		outcome.State = StateSucceeded
		logger.Info().Int("attempts", outcome.Attempts).Msg("access token acquired")
		return token, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		outcome.State = StateFailed
		outcome.Err = fmt.Errorf("[Exchange] polling abandoned after %d attempts: %w", outcome.Attempts, ctxErr)
		return "", e.fail(ctx, logger, outcome)
	}

	outcome.State = StateExhausted
	outcome.Err = fmt.Errorf("[Exchange] %w after %d attempts (last: %v)", ErrExchangeTimeout, outcome.Attempts, lastErr)
	return "", e.fail(ctx, logger, outcome)
}

// pollBackOff allows maxAttempts polls with a fixed pause between them.
func (e *Exchanger) pollBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if e.maxAttempts > 1 {
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(e.pollInterval), uint64(e.maxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (e *Exchanger) fail(ctx context.Context, logger zerolog.Logger, outcome Outcome) error {
	logger.Error().
		Err(outcome.Err).
		Str("state", outcome.State.String()).
		Int("attempts", outcome.Attempts).
		Int("pending", outcome.Pending).
		Int("session_mismatches", outcome.SessionMismatches).
		Int("transport_errors", outcome.TransportErrors).
		Msg("token exchange failed")
	e.report(ctx, outcome)
	return outcome.Err
}
