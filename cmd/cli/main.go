package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lenslesscam/lenslessgo/internal/app"
	"github.com/lenslesscam/lenslessgo/internal/cli"
	"github.com/lenslesscam/lenslessgo/internal/yamlcfg"
)

// main is the entrypoint for the lensless application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical config errors; surface the panic as a
	// regular error so main prints one clean message and exits non-zero.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("critical startup error: %v", r)
		}
	}()

	// Instantiate the concrete YAML loader to pass to the app.
	loader := yamlcfg.NewLoader(appConfig.ConfigDir)
	lenslessApp := app.New(outW, appConfig, loader)

	return lenslessApp.Run(context.Background())
}
