// Package main is the entry point for the nostrelay service.
package main

import (
	"context"
	"fmt"
	"os"

	"nostrelay/bootstrap"
	"nostrelay/cmd"
)

// run initializes and starts the relay.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()

	return nil
}

// main is the entry point.
func main() {
	// CLI mode: verify a single envelope and exit.
	if len(os.Args) > 1 && os.Args[1] == "verify" {
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		if err := cmd.NewVerifyCmd().Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
