package commands

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-deeplink-auth/internal/config"
	"github.com/jrsteele09/go-deeplink-auth/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg      = config.New()
	logLevel string
	env      string
	noBanner bool
)

func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "deeplink-auth",
		Short:        "Obtain an API access token through a PKCE deep-link handshake",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(env, logLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", cfg.GetLogLevel(), "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&env, "env", cfg.GetEnv(), "environment; DEV prints human readable logs")
	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "do not print the banner")

	root.AddCommand(loginCmd(), inspectCmd(), mockServerCmd())
	return root
}

func displayAppname(cmd *cobra.Command) {
	if noBanner {
		return
	}
	myFigure := figure.NewFigure(cfg.GetAppName(), "cybermedium", true)
	fmt.Fprintln(cmd.ErrOrStderr(), myFigure.String())
}
