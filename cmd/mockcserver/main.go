// Command mockcserver runs the mock server from the mockserver package as a standalone process.
// It is configured with the same environment variables as the real server, so it can be passed
// to the harness with -cserver to try out a profile without building the real server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cserve-project/cserve-test-harness/mockserver"
)

func main() {
	config, err := mockserver.ConfigFromEnv(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := mockserver.Run(ctx, config, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1) //nolint:gocritic
	}
}
