package main

import (
	"os"

	"github.com/jrsteele09/go-deeplink-auth/cmd/deeplink-auth/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
