package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-deeplink-auth/fakeserver"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type mockServerOptions struct {
	addr         string
	secret       string
	identity     string
	pendingPolls int
	sessionTTL   time.Duration
}

func mockServerCmd() *cobra.Command {
	opts := mockServerOptions{}

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory /loginDeepControl and /auth/poll for local runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", opts.addr)
			if err != nil {
				return fmt.Errorf("[mock-server] listen: %w", err)
			}
			return runMockServer(ctx, ln, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", cfg.GetPort(), "listen address")
	f.StringVar(&opts.secret, "secret", cfg.GetTokenSecret(), "HS256 signing secret for minted tokens")
	f.StringVar(&opts.identity, "identity", "mock-user", "subject of minted tokens")
	f.IntVar(&opts.pendingPolls, "pending-polls", cfg.GetPendingPolls(), "polls answered as not ready before the token is released")
	f.DurationVar(&opts.sessionTTL, "session-ttl", cfg.GetSessionTTL(), "lifetime of a bound deep-link session")
	return cmd
}

// runMockServer serves on ln until ctx is done, then shuts down gracefully.
func runMockServer(ctx context.Context, ln net.Listener, opts mockServerOptions) error {
	handler, err := fakeserver.New(fakeserver.NewInMemoryRepo(),
		fakeserver.WithTokenSecret(opts.secret),
		fakeserver.WithIdentity(opts.identity),
		fakeserver.WithPendingPolls(opts.pendingPolls),
		fakeserver.WithSessionTTL(opts.sessionTTL),
	)
	if err != nil {
		ln.Close()
		return fmt.Errorf("[mock-server] %w", err)
	}
	handler.LogRoutes()

	server := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(server, ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server, ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("Server listening")
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Serve %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
