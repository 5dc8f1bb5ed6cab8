package config

import (
	"fmt"
	"strings"
	"time"
)

type MockServerConfig interface {
	GetPort() string
	GetTokenSecret() string
	GetPendingPolls() int
	GetSessionTTL() time.Duration
}

type MockServer struct{}

var _ MockServerConfig = MockServer{}

func (MockServer) GetPort() string {
	port := GetEnv("PORT", "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (MockServer) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "mock-server-secret")
}

// GetPendingPolls is how many polls answer "not ready" before the token is released
func (MockServer) GetPendingPolls() int {
	return GetEnvInt("PENDING_POLLS", 2)
}

func (MockServer) GetSessionTTL() time.Duration {
	return GetEnvDuration("SESSION_TTL", 5*time.Minute)
}
