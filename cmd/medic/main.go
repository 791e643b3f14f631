package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tmuras/medic/internal/cli"
	"github.com/tmuras/medic/internal/session"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, session.ErrAborted) {
			fmt.Fprintln(os.Stderr, "Session aborted.")
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
