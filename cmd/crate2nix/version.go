// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"zb.256lights.llc/crate2nix/internal/command"
	"zombiezen.com/go/log"
)

// crate2nixVersion is the version string filled in by the linker (e.g. "1.2.3").
var crate2nixVersion string

func newVersionCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "version",
		Short:                 "show version information",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runVersion(cmd.Context(), g)
	}
	return c
}

func runVersion(ctx context.Context, g *globalConfig) error {
	firstLine := "crate2nix"
	if crate2nixVersion == "" {
		firstLine += " (version unknown)"
	} else {
		firstLine += " version " + crate2nixVersion
	}
	fmt.Printf("%s\nSystem:       %s/%s\nCPUs:         %d\n", firstLine, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

	// Missing tools are reported but are not an error:
	// the version command is often run to debug a broken setup.
	for _, tool := range []struct {
		label      string
		prog       string
		hasVersion bool
	}{
		{"Nix:          ", g.Nix, true},
		{"Prefetch URL: ", g.NixPrefetchURL, true},
		// nix-prefetch-git has no version flag.
		{"Prefetch Git: ", g.NixPrefetchGit, false},
	} {
		if !tool.hasVersion {
			fmt.Printf("%s%s\n", tool.label, tool.prog)
			continue
		}
		out, err := command.Output(ctx, tool.prog, "--version")
		if err != nil {
			log.Debugf(ctx, "%v", err)
			fmt.Printf("%s%s (unavailable)\n", tool.label, tool.prog)
			continue
		}
		fmt.Printf("%s%s\n", tool.label, out)
	}
	return nil
}
