// Package main provides the buildherald CLI entrypoint.
//
// Usage:
//
//	buildherald rom    [-s] [-c] [--config path]
//	buildherald kernel [-c] [--config path]
//
// Exit codes:
//   - 0: build and upload succeeded
//   - 1: build, artifact or upload failure
//   - 130: interrupted by operator
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	app := &cli.App{
		Name:    "buildherald",
		Usage:   "Supervises Android builds and posts progress, logs and artifact links to Telegram",
		Version: "1.0.0",
		Commands: []*cli.Command{
			romCommand(),
			kernelCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit; this branch is only
		// reached if it didn't.
		os.Exit(exitFailure)
	}
}

// exitErrHandler handles errors from the CLI, respecting cli.ExitCoder.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitFailure)
}

// configFlag is shared by both build commands.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to the YAML config file (optional; CONFIG_* env vars always apply)",
		Value:   "herald.yaml",
		EnvVars: []string{"CONFIG_FILE"},
	}
}
