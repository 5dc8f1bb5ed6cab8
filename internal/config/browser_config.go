package config

import "time"

type BrowserConfig interface {
	GetHeadless() bool
	GetBrowserBin() string
	GetUserDataDir() string
	GetControlURL() string
	GetNavigationTimeout() time.Duration
	GetScreenshotDir() string
}

type Browser struct{}

var _ BrowserConfig = Browser{}

func (Browser) GetHeadless() bool {
	return GetEnvBool("BROWSER_HEADLESS", false)
}

// GetBrowserBin is empty to let rod locate or download a browser
func (Browser) GetBrowserBin() string {
	return GetEnv("BROWSER_BIN", "")
}

// GetUserDataDir points at a profile that is already signed in to the target service
func (Browser) GetUserDataDir() string {
	return GetEnv("BROWSER_USER_DATA_DIR", "")
}

// GetControlURL attaches to a running browser (DevTools websocket URL) instead of launching one
func (Browser) GetControlURL() string {
	return GetEnv("BROWSER_CONTROL_URL", "")
}

func (Browser) GetNavigationTimeout() time.Duration {
	return GetEnvDuration("NAVIGATION_TIMEOUT", 30*time.Second)
}

func (Browser) GetScreenshotDir() string {
	return GetEnv("SCREENSHOT_DIR", ".")
}
