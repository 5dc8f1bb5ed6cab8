package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-deeplink-auth/browser"
	"github.com/jrsteele09/go-deeplink-auth/deeplink"
	"github.com/jrsteele09/go-deeplink-auth/pkce"
	"github.com/jrsteele09/go-deeplink-auth/token"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type navigatorSession interface {
	deeplink.Navigator
	browser.Screenshotter
	Close() error
}

// launchBrowser is replaced in tests
var launchBrowser = func(ctx context.Context, c browser.Config) (navigatorSession, error) {
	s, err := browser.Launch(ctx, c)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type loginOptions struct {
	authBaseURL   string
	apiBaseURL    string
	maxAttempts   int
	pollInterval  time.Duration
	origin        string
	userAgent     string
	browser       browser.Config
	screenshotDir string
}

func loginCmd() *cobra.Command {
	opts := loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open the deep link in a signed-in browser and poll for an access token",
		Long: `login generates a fresh session id, verifier and challenge, sends the
browser to <auth-base>/loginDeepControl and polls <api-base>/auth/poll until
the access token is released. The browser profile must already be signed in.
The token is written to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runLogin(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.authBaseURL, "auth-base", cfg.GetAuthBaseURL(), "base URL serving the deep link")
	f.StringVar(&opts.apiBaseURL, "api-base", cfg.GetAPIBaseURL(), "base URL serving /auth/poll")
	f.IntVar(&opts.maxAttempts, "attempts", cfg.GetMaxPollAttempts(), "maximum number of polls")
	f.DurationVar(&opts.pollInterval, "interval", cfg.GetPollInterval(), "pause between polls")
	f.StringVar(&opts.origin, "origin", cfg.GetClientOrigin(), "Origin header sent when polling")
	f.StringVar(&opts.userAgent, "user-agent", cfg.GetClientUserAgent(), "User-Agent header sent when polling")
	f.BoolVar(&opts.browser.Headless, "headless", cfg.GetHeadless(), "run the browser headless")
	f.StringVar(&opts.browser.Bin, "browser-bin", cfg.GetBrowserBin(), "browser executable")
	f.StringVar(&opts.browser.UserDataDir, "user-data-dir", cfg.GetUserDataDir(), "browser profile directory")
	f.StringVar(&opts.browser.ControlURL, "control-url", cfg.GetControlURL(), "DevTools URL of a running browser")
	f.DurationVar(&opts.browser.NavigationTimeout, "nav-timeout", cfg.GetNavigationTimeout(), "deep-link navigation timeout")
	f.StringVar(&opts.screenshotDir, "screenshot-dir", cfg.GetScreenshotDir(), "where failure screenshots are written")
	return cmd
}

func runLogin(ctx context.Context, cmd *cobra.Command, opts loginOptions) error {
	triple, err := pkce.Generate()
	if err != nil {
		return fmt.Errorf("[login] %w", err)
	}
	log.Info().Object("triple", triple).Msg("Starting deep-link login")

	session, err := launchBrowser(ctx, opts.browser)
	if err != nil {
		return fmt.Errorf("[login] %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Err(err).Msg("Failed to close browser")
		}
	}()

	headers := http.Header{}
	if opts.origin != "" {
		headers.Set("Origin", opts.origin)
	}
	if opts.userAgent != "" {
		headers.Set("User-Agent", opts.userAgent)
	}

	ex, err := deeplink.New(session,
		deeplink.WithAuthBaseURL(opts.authBaseURL),
		deeplink.WithAPIBaseURL(opts.apiBaseURL),
		deeplink.WithMaxAttempts(opts.maxAttempts),
		deeplink.WithPollInterval(opts.pollInterval),
		deeplink.WithHeaders(headers),
		deeplink.WithReporter(browser.ScreenshotReporter(session, opts.screenshotDir)),
		deeplink.WithLogger(log.Logger),
	)
	if err != nil {
		return fmt.Errorf("[login] %w", err)
	}

	raw, err := ex.Exchange(ctx, triple)
	if err != nil {
		return err
	}

	tok, err := token.Parse(raw)
	if err != nil {
		return fmt.Errorf("[login] %w", err)
	}
	log.Info().Object("token", tok).Msg("Login successful")

	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.Raw)
	return err
}
