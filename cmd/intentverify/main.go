// Command intentverify checks the configuration of an SRv6 L3VPN network
// against the intents implied by its topology.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/signalsfoundry/netintent/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "intentverify: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode separates invalid datasets from other failures.
func exitCode(err error) int {
	if core.IsStructural(err) {
		return 2
	}
	return 1
}
