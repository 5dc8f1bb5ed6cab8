package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-deeplink-auth/token"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Print the claims of an access token without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.Parse(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !tok.JWT {
				fmt.Fprintln(out, "opaque token (no claims)")
				return nil
			}
			fmt.Fprintf(out, "subject:  %s\n", tok.Subject)
			fmt.Fprintf(out, "issuer:   %s\n", tok.Issuer)
			if len(tok.Audience) > 0 {
				fmt.Fprintf(out, "audience: %s\n", strings.Join(tok.Audience, ", "))
			}
			if !tok.IssuedAt.IsZero() {
				fmt.Fprintf(out, "issued:   %s\n", tok.IssuedAt.UTC().Format(time.RFC3339))
			}
			if !tok.ExpiresAt.IsZero() {
				status := "valid"
				if tok.Expired(time.Now()) {
					status = "expired"
				}
				fmt.Fprintf(out, "expires:  %s (%s)\n", tok.ExpiresAt.UTC().Format(time.RFC3339), status)
			}
			return nil
		},
	}
}
