package config

type Config interface {
	EnvConfig
	ExchangeConfig
	BrowserConfig
	MockServerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Exchange
	Browser
	MockServer
}

func New() Config {
	return mainConfig{}
}
