package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/doeshing/opsguard/internal/infrastructure/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, container := cli.NewRootCmd(ctx, cli.Options{Verbose: cli.VerboseFromEnv()})
	err := root.ExecuteContext(ctx)
	if closeErr := container.Close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "error:", closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
