// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// crate2nix prefetches the sources of Rust crates
// and builds the generated Nix build descriptions.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"zb.256lights.llc/crate2nix/internal/command"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "crate2nix",
		Short:         "Nix build files for Rust crates",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := defaultGlobalConfig()
	configFile := rootCommand.PersistentFlags().String("config", "", "read additional configuration from `path`")
	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := g.mergeFiles(configPaths(*configFile)); err != nil {
			return err
		}
		if err := g.mergeEnvironment(); err != nil {
			return err
		}
		if *showDebug {
			g.Debug = true
		}
		initLogging(g.Debug)
		return g.validate()
	}

	rootCommand.AddCommand(
		newPrefetchCommand(g),
		newBuildCommand(g),
		newVersionCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		showCommandOutput(err)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

// showCommandOutput copies the captured output of a failed external command
// to stderr so that the user can see why it failed.
func showCommandOutput(err error) {
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		return
	}
	os.Stderr.Write(cmdErr.Stdout)
	os.Stderr.Write(cmdErr.Stderr)
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "crate2nix: ", log.StdFlags, nil),
		})
	})
}
