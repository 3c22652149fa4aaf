// Command corpussearch indexes a directory of text documents and answers
// keyword, phrase and boolean queries over it, either one-shot, from an
// interactive prompt, or over HTTP.
//
// Usage:
//
//	corpussearch query <dir> <query>...
//	corpussearch shell <dir>
//	corpussearch stats <dir>
//	corpussearch serve <dir> [--config configs/development.yaml]
//	corpussearch analytics [--config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}
		return 1
	}
	return 0
}
