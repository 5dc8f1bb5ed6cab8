// Package browser drives a Chrome instance through go-rod. A Session is the
// Navigator handed to the token exchange; it owns one page and must not be
// shared between concurrent attempts.
package browser

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/jrsteele09/go-deeplink-auth/deeplink"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNavigationTimeout = 30 * time.Second

	// requestIdleWindow is how long the page must go without network
	// requests to count as settled.
	requestIdleWindow = 500 * time.Millisecond

	// exitWait bounds how long teardown waits for a killed browser to exit
	// before leaving its user-data dir behind.
	exitWait = 10 * time.Second
)

type Config struct {
	ControlURL        string // attach to a running browser instead of launching
	Bin               string
	UserDataDir       string // reuse a profile that is already signed in
	Headless          bool
	NavigationTimeout time.Duration
}

type Session struct {
	launcher *launcher.Launcher // nil when attached through ControlURL
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	ownsData bool
}

var _ deeplink.Navigator = (*Session)(nil)

// Launch starts (or attaches to) a browser and opens a blank page.
func Launch(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{timeout: cfg.NavigationTimeout}
	if s.timeout <= 0 {
		s.timeout = DefaultNavigationTimeout
	}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		} else {
			s.ownsData = true
		}
		s.launcher = l
		u, err := l.Launch()
		if err != nil {
			s.killLauncher()
			return nil, errors.Wrap(err, "[Launch] failed to launch browser")
		}
		controlURL = u
	}

	// The connection outlives ctx so Close can still reach the browser after
	// an interrupt.
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.killLauncher()
		return nil, errors.Wrap(err, "[Launch] failed to connect to browser")
	}
	s.browser = b

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "[Launch] failed to open page")
	}
	s.page = page.Context(context.Background())

	log.Debug().Bool("attached", cfg.ControlURL != "").Bool("headless", cfg.Headless).Msg("browser ready")
	return s, nil
}

// Navigate loads url and blocks until the network has been idle for a short
// window, or the navigation timeout elapses.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()

	wait := p.WaitRequestIdle(requestIdleWindow, nil, nil, nil)
	if err := p.Navigate(url); err != nil {
		return errors.Wrap(err, "[Navigate] navigation failed")
	}
	wait()

	if err := p.GetContext().Err(); err != nil {
		return errors.Wrap(err, "[Navigate] page did not settle")
	}
	return nil
}

// Screenshot writes a full-page PNG to path.
func (s *Session) Screenshot(path string) error {
	p := s.page.Timeout(s.timeout)
	defer p.CancelTimeout()

	img, err := p.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	if err != nil {
		return errors.Wrap(err, "[Screenshot] capture failed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "[Screenshot] create directory")
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return errors.Wrap(err, "[Screenshot] write file")
	}
	return nil
}

// Close releases the page, the browser connection and any launched process.
// A caller supplied user-data dir is left on disk. Close still works after the
// context given to Launch has been cancelled.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var firstErr error
	if s.page != nil {
		if err := s.page.Context(ctx).Close(); err != nil {
			firstErr = errors.Wrap(err, "[Close] page")
		}
		s.page = nil
	}
	if s.browser != nil && s.launcher != nil {
		if err := s.browser.Context(ctx).Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "[Close] browser")
		}
	}
	s.browser = nil
	s.killLauncher()
	return firstErr
}

// killLauncher stops a launched browser process and, when the session created
// the profile, removes it once the process has gone.
func (s *Session) killLauncher() {
	l := s.launcher
	if l == nil {
		return
	}
	s.launcher = nil

	if l.PID() == 0 {
		// Never started, so nothing will ever signal an exit.
		if s.ownsData {
			_ = os.RemoveAll(l.Get(flags.UserDataDir))
		}
		return
	}

	l.Kill()
	if !s.ownsData {
		return
	}

	done := make(chan struct{})
	go func() {
		l.Cleanup()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(exitWait):
		log.Warn().Int("pid", l.PID()).Str("dir", l.Get(flags.UserDataDir)).Msg("browser did not exit, leaving profile on disk")
	}
}
