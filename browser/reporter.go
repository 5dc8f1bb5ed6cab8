package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-deeplink-auth/deeplink"
	"github.com/rs/zerolog/log"
)

// Screenshotter is satisfied by *Session.
type Screenshotter interface {
	Screenshot(path string) error
}

// ScreenshotPath names the capture for a failed exchange.
func ScreenshotPath(dir string, outcome deeplink.Outcome) string {
	id := outcome.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("token-%s-%s.png", strings.ToLower(outcome.State.String()), id)
	return filepath.Join(dir, name)
}

// ScreenshotReporter captures the page when an exchange ends in FAILED or
// EXHAUSTED. Capture errors are logged, never returned.
func ScreenshotReporter(s Screenshotter, dir string) deeplink.ReportFunc {
	return func(_ context.Context, outcome deeplink.Outcome) {
		path := ScreenshotPath(dir, outcome)
		if err := s.Screenshot(path); err != nil {
			log.Err(err).Str("path", path).Msg("Failed to capture screenshot")
			return
		}
		log.Info().Str("path", path).Str("state", outcome.State.String()).Msg("Saved screenshot")
	}
}
