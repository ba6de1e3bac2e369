// Command depot installs, resolves and pins module dependencies.
//
// Usage:
//
//	depot install --from central --to local acme#lib;1.0
//	depot resolve --conf compile,test
//	depot fixdeps --tofile module.fixed.star
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
