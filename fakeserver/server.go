// Package fakeserver is an in-memory stand-in for the service behind the
// deep-link handshake. It serves /loginDeepControl and /auth/poll with the
// same contract as the real host and mints HS256 access tokens.
package fakeserver

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	RouteDeepLink = "/loginDeepControl"
	RoutePoll     = "/auth/poll"

	defaultIdentity = "mock-user"
	defaultIssuer   = "go-deeplink-auth/fakeserver"
)

type Server struct {
	mux          *http.ServeMux
	routes       []string
	repo         Repo
	secret       []byte
	issuer       string
	identity     string
	pendingPolls int
	sessionTTL   time.Duration
	tokenTTL     time.Duration
	nowTime      func() time.Time
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithPendingPolls sets how many polls answer "not ready" before the token is released
func WithPendingPolls(n int) Option {
	return func(s *Server) {
		s.pendingPolls = n
	}
}

func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) {
		s.sessionTTL = d
	}
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = d
	}
}

func WithTokenSecret(secret string) Option {
	return func(s *Server) {
		s.secret = []byte(secret)
	}
}

func WithIssuer(issuer string) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

// WithIdentity sets the subject the browser is considered signed in as
func WithIdentity(identity string) Option {
	return func(s *Server) {
		s.identity = identity
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(repo Repo, options ...Option) (*Server, error) {
	if repo == nil {
		return nil, pkgerrors.New("[fakeserver New] repo is required")
	}

	s := &Server{
		mux:          http.NewServeMux(),
		repo:         repo,
		issuer:       defaultIssuer,
		identity:     defaultIdentity,
		pendingPolls: 0,
		sessionTTL:   5 * time.Minute,
		tokenTTL:     time.Hour,
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	if len(s.secret) == 0 {
		return nil, pkgerrors.New("[fakeserver New] token secret is required")
	}
	if s.pendingPolls < 0 {
		return nil, pkgerrors.Errorf("[fakeserver New] pending polls must not be negative, got %d", s.pendingPolls)
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteDeepLink, ChainMiddleware(s.DeepLinkHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RoutePoll, ChainMiddleware(s.PollHandler(), s.APIMiddleware()...))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered patterns in sorted order
func (s *Server) Routes() []string {
	routes := append([]string(nil), s.routes...)
	sort.Strings(routes)
	return routes
}

func (s *Server) LogRoutes() {
	for _, route := range s.Routes() {
		log.Info().Str("route", route).Msg("Registered route")
	}
}

func (s *Server) String() string {
	return fmt.Sprintf("fakeserver(issuer=%s, pendingPolls=%d)", s.issuer, s.pendingPolls)
}
