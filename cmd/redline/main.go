// Command redline edits and searches documents in a shared blob store.
//
// Usage:
//
//	redline --config redline.yaml create --title memo "The cat sat on the mat."
//	redline redline range <id> 4 7 dog
//	redline redline target --edits edits.json
//	redline search --buffer 20 dog
//	redline locks sweep
//
// Without --config the CLI uses a local store in ./redline-data.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
