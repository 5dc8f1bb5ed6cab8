package config

import "time"

type ExchangeConfig interface {
	GetAuthBaseURL() string
	GetAPIBaseURL() string
	GetMaxPollAttempts() int
	GetPollInterval() time.Duration
	GetClientOrigin() string
	GetClientUserAgent() string
}

type Exchange struct{}

var _ ExchangeConfig = Exchange{}

// GetAuthBaseURL is where the browser is sent for the deep link
func (Exchange) GetAuthBaseURL() string {
	return GetEnv("AUTH_BASE_URL", "http://localhost:8080")
}

// GetAPIBaseURL is the host serving /auth/poll
func (Exchange) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:8080")
}

func (Exchange) GetMaxPollAttempts() int {
	return GetEnvInt("POLL_MAX_ATTEMPTS", 20)
}

func (Exchange) GetPollInterval() time.Duration {
	return GetEnvDuration("POLL_INTERVAL", 1*time.Second)
}

func (Exchange) GetClientOrigin() string {
	return GetEnv("CLIENT_ORIGIN", "")
}

func (Exchange) GetClientUserAgent() string {
	return GetEnv("CLIENT_USER_AGENT", "go-deeplink-auth")
}
