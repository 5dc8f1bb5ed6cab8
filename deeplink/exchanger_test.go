package deeplink_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-deeplink-auth/deeplink"
	"github.com/jrsteele09/go-deeplink-auth/pkce"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testInterval = 20 * time.Millisecond

// pollStub serves /auth/poll, releasing the token on call tokenOn (1-based).
// tokenOn == 0 never releases it.
type pollStub struct {
	mu        sync.Mutex
	calls     []time.Time
	tokenOn   int
	token     string
	failFirst int // calls answered with 500 before anything else
	foreign   int // calls after those answered with another session's token
	srv       *httptest.Server
}

func newPollStub(t *testing.T, tokenOn int) *pollStub {
	t.Helper()
	s := &pollStub{tokenOn: tokenOn, token: "access-token-123"}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *pollStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, time.Now())
	n := len(s.calls)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case n <= s.failFirst:
		w.WriteHeader(http.StatusInternalServerError)
	case n <= s.failFirst+s.foreign:
		_, _ = w.Write([]byte(`{"accessToken":"stolen-token","uuid":"00000000-0000-4000-8000-000000000000"}`))
	case s.tokenOn > 0 && n >= s.tokenOn:
		_, _ = w.Write([]byte(`{"accessToken":"` + s.token + `","uuid":"` + r.URL.Query().Get("uuid") + `"}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (s *pollStub) callTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}

// stubNavigator records visited URLs and optionally fails.
type stubNavigator struct {
	visited []string
	err     error
}

func (n *stubNavigator) Navigate(_ context.Context, url string) error {
	n.visited = append(n.visited, url)
	return n.err
}

// reportRecorder captures terminal outcomes.
type reportRecorder struct {
	outcomes []deeplink.Outcome
}

func (r *reportRecorder) report(_ context.Context, o deeplink.Outcome) {
	r.outcomes = append(r.outcomes, o)
}

type exchangeFixture struct {
	stub     *pollStub
	nav      *stubNavigator
	reports  *reportRecorder
	triple   pkce.Triple
	exchange *deeplink.Exchanger
}

func setupExchange(t *testing.T, tokenOn int, options ...deeplink.Option) *exchangeFixture {
	t.Helper()

	f := &exchangeFixture{
		stub:    newPollStub(t, tokenOn),
		nav:     &stubNavigator{},
		reports: &reportRecorder{},
	}

	triple, err := pkce.Generate()
	require.NoError(t, err)
	f.triple = triple

	opts := []deeplink.Option{
		deeplink.WithAuthBaseURL("https://auth.example.com"),
		deeplink.WithAPIBaseURL(f.stub.srv.URL),
		deeplink.WithHTTPClient(f.stub.srv.Client()),
		deeplink.WithPollInterval(testInterval),
		deeplink.WithReporter(f.reports.report),
		deeplink.WithLogger(zerolog.Nop()),
	}
	ex, err := deeplink.New(f.nav, append(opts, options...)...)
	require.NoError(t, err)
	f.exchange = ex
	return f
}

func TestDeepLinkURL(t *testing.T) {
	triple := pkce.Triple{SessionID: testSessionID, Verifier: testVerifier, Challenge: pkce.ChallengeFromVerifier(testVerifier)}
	require.Equal(t,
		"https://cursor.so/loginDeepControl?challenge=E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM&uuid="+testSessionID+"&mode=login",
		deeplink.DeepLinkURL("https://cursor.so/", triple))
}

func TestExchangeSucceedsOnNthPoll(t *testing.T) {
	for _, n := range []int{1, 3, 20} {
		t.Run(fmt.Sprintf("token on poll %d", n), func(t *testing.T) {
			f := setupExchange(t, n)

			token, err := f.exchange.Exchange(context.Background(), f.triple)
			require.NoError(t, err)
			require.Equal(t, "access-token-123", token)

			calls := f.stub.callTimes()
			require.Len(t, calls, n)
			for i := 1; i < len(calls); i++ {
				require.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), testInterval)
			}
			require.Empty(t, f.reports.outcomes)
			require.Equal(t, []string{deeplink.DeepLinkURL("https://auth.example.com", f.triple)}, f.nav.visited)
		})
	}
}

func TestExchangeDefaultIntervalIsOneSecond(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real poll interval")
	}
	f := setupExchange(t, 2, deeplink.WithPollInterval(deeplink.DefaultPollInterval))

	token, err := f.exchange.Exchange(context.Background(), f.triple)
	require.NoError(t, err)
	require.Equal(t, "access-token-123", token)

	calls := f.stub.callTimes()
	require.Len(t, calls, 2)
	gap := calls[1].Sub(calls[0])
	require.GreaterOrEqual(t, gap, time.Second)
	require.Less(t, gap, 2*time.Second)
}

func TestExchangeExhausted(t *testing.T) {
	f := setupExchange(t, 0)

	token, err := f.exchange.Exchange(context.Background(), f.triple)
	require.ErrorIs(t, err, deeplink.ErrExchangeTimeout)
	require.False(t, errors.Is(err, deeplink.ErrDispatchFailure))
	require.Empty(t, token)
	require.Len(t, f.stub.callTimes(), deeplink.DefaultMaxAttempts)

	require.Len(t, f.reports.outcomes, 1)
	outcome := f.reports.outcomes[0]
	require.Equal(t, deeplink.StateExhausted, outcome.State)
	require.Equal(t, deeplink.DefaultMaxAttempts, outcome.Attempts)
	require.Equal(t, deeplink.DefaultMaxAttempts, outcome.Pending)
	require.Zero(t, outcome.TransportErrors)
	require.Equal(t, f.triple.SessionID, outcome.SessionID)
	require.ErrorIs(t, outcome.Err, deeplink.ErrExchangeTimeout)
}

func TestExchangeDispatchFailure(t *testing.T) {
	f := setupExchange(t, 1)
	f.nav.err = errors.New("net::ERR_NAME_NOT_RESOLVED")

	token, err := f.exchange.Exchange(context.Background(), f.triple)
	require.ErrorIs(t, err, deeplink.ErrDispatchFailure)
	require.False(t, errors.Is(err, deeplink.ErrExchangeTimeout))
	require.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	require.Empty(t, token)
	require.Empty(t, f.stub.callTimes())

	require.Len(t, f.reports.outcomes, 1)
	require.Equal(t, deeplink.StateFailed, f.reports.outcomes[0].State)
	require.Zero(t, f.reports.outcomes[0].Attempts)
}

func TestExchangeRecoversFromTransportErrors(t *testing.T) {
	f := setupExchange(t, 4)
	f.stub.failFirst = 2

	token, err := f.exchange.Exchange(context.Background(), f.triple)
	require.NoError(t, err)
	require.Equal(t, "access-token-123", token)
	require.Len(t, f.stub.callTimes(), 4)
}

func TestExchangeTransportErrorsCountedSeparately(t *testing.T) {
	f := setupExchange(t, 0, deeplink.WithMaxAttempts(5))
	f.stub.failFirst = 3

	_, err := f.exchange.Exchange(context.Background(), f.triple)
	require.ErrorIs(t, err, deeplink.ErrExchangeTimeout)
	require.Len(t, f.stub.callTimes(), 5)

	require.Len(t, f.reports.outcomes, 1)
	require.Equal(t, 3, f.reports.outcomes[0].TransportErrors)
	require.Equal(t, 2, f.reports.outcomes[0].Pending)
}

func TestExchangeDiscardsOtherSessionsToken(t *testing.T) {
	f := setupExchange(t, 3)
	f.stub.foreign = 2

	token, err := f.exchange.Exchange(context.Background(), f.triple)
	require.NoError(t, err)
	require.Equal(t, "access-token-123", token)
	require.Len(t, f.stub.callTimes(), 3)
}

func TestExchangeSessionMismatchesCountedSeparately(t *testing.T) {
	f := setupExchange(t, 0, deeplink.WithMaxAttempts(6))
	f.stub.failFirst = 1
	f.stub.foreign = 2

	_, err := f.exchange.Exchange(context.Background(), f.triple)
	require.ErrorIs(t, err, deeplink.ErrExchangeTimeout)

	require.Len(t, f.reports.outcomes, 1)
	outcome := f.reports.outcomes[0]
	require.Equal(t, 6, outcome.Attempts)
	require.Equal(t, 1, outcome.TransportErrors)
	require.Equal(t, 2, outcome.SessionMismatches)
	require.Equal(t, 3, outcome.Pending)
}

func TestExchangeSingleAttempt(t *testing.T) {
	f := setupExchange(t, 0, deeplink.WithMaxAttempts(1))

	_, err := f.exchange.Exchange(context.Background(), f.triple)
	require.ErrorIs(t, err, deeplink.ErrExchangeTimeout)
	require.Len(t, f.stub.callTimes(), 1)
}

func TestExchangeCancelled(t *testing.T) {
	f := setupExchange(t, 0, deeplink.WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(f.stub.callTimes()) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := f.exchange.Exchange(ctx, f.triple)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, deeplink.ErrExchangeTimeout))
	require.Len(t, f.stub.callTimes(), 1)

	require.Len(t, f.reports.outcomes, 1)
	require.Equal(t, deeplink.StateFailed, f.reports.outcomes[0].State)
}

func TestExchangeRejectsMismatchedTriple(t *testing.T) {
	f := setupExchange(t, 1)
	other, err := pkce.Generate()
	require.NoError(t, err)
	f.triple.Challenge = other.Challenge

	_, err = f.exchange.Exchange(context.Background(), f.triple)
	require.ErrorIs(t, err, pkce.ErrInvalidTriple)
	require.Empty(t, f.nav.visited)
	require.Empty(t, f.stub.callTimes())
	require.Empty(t, f.reports.outcomes)
}

func TestNewValidation(t *testing.T) {
	nav := &stubNavigator{}
	base := []deeplink.Option{
		deeplink.WithAuthBaseURL("https://auth.example.com"),
		deeplink.WithAPIBaseURL("https://api.example.com"),
	}

	_, err := deeplink.New(nav, base...)
	require.NoError(t, err)

	_, err = deeplink.New(nil, base...)
	require.Error(t, err)

	tests := []struct {
		name string
		opt  deeplink.Option
	}{
		{"zero attempts", deeplink.WithMaxAttempts(0)},
		{"negative interval", deeplink.WithPollInterval(-time.Second)},
		{"bad auth scheme", deeplink.WithAuthBaseURL("ftp://auth.example.com")},
		{"missing api host", deeplink.WithAPIBaseURL("https://")},
		{"nil http client", deeplink.WithHTTPClient(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := deeplink.New(nav, append(base, tt.opt)...)
			require.Error(t, err)
		})
	}

	_, err = deeplink.New(nav, deeplink.WithAPIBaseURL("https://api.example.com"))
	require.Error(t, err, "auth base url is required")
}

func TestStateString(t *testing.T) {
	require.Equal(t, "INITIATED", deeplink.StateInitiated.String())
	require.Equal(t, "POLLING", deeplink.StatePolling.String())
	require.Equal(t, "SUCCEEDED", deeplink.StateSucceeded.String())
	require.Equal(t, "EXHAUSTED", deeplink.StateExhausted.String())
	require.Equal(t, "FAILED", deeplink.StateFailed.String())
	require.True(t, deeplink.StateExhausted.Terminal())
	require.False(t, deeplink.StatePolling.Terminal())
}
