// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"zb.256lights.llc/crate2nix"
	"zb.256lights.llc/crate2nix/internal/prefetch"
	"zb.256lights.llc/crate2nix/internal/progress"
)

type prefetchOptions struct {
	stdin      io.Reader
	stdout     io.Writer
	input      string
	cacheFile  string
	jobs       int
	resetCache bool
}

func newPrefetchCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "prefetch [options] [FILE]",
		Short:                 "fill in the source hashes of a package list",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MaximumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(prefetchOptions)
	c.Flags().StringVar(&opts.cacheFile, "crate-hashes", "crate-hashes.json", "`path` to the hash cache (empty to disable)")
	c.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "run at most `n` prefetch commands at once (default from config or 4 per CPU)")
	c.Flags().BoolVar(&opts.resetCache, "reset-corrupt-cache", false, "ignore and overwrite an unreadable hash cache")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.stdin = cmd.InOrStdin()
		opts.stdout = cmd.OutOrStdout()
		opts.input = "-"
		if len(args) > 0 {
			opts.input = args[0]
		}
		return runPrefetch(cmd.Context(), g, opts)
	}
	return c
}

func runPrefetch(ctx context.Context, g *globalConfig, opts *prefetchOptions) error {
	r := opts.stdin
	if opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	list, err := readPackageList(r)
	if err != nil {
		return err
	}
	crates := make([]*crate2nix.CrateDerivation, 0, len(list))
	for _, c := range list {
		drv, err := c.derivation()
		if err != nil {
			return err
		}
		crates = append(crates, drv)
	}

	jobs := opts.jobs
	if jobs <= 0 {
		jobs = g.Jobs
	}
	prefetchOpts := &prefetch.Options{
		CacheFile:         opts.cacheFile,
		ResetCorruptCache: opts.resetCache,
		Jobs:              jobs,
		Fetcher:           g.fetcher(),
	}
	if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) {
		bar := progress.NewBar(os.Stderr, termenv.EnvColorProfile())
		if width, _, err := term.GetSize(fd); err == nil {
			bar.SetWidth(barWidth(width))
		}
		defer bar.Finish()
		prefetchOpts.Progress = bar.Update
	}
	if _, err := prefetch.Prefetch(ctx, crates, prefetchOpts); err != nil {
		return err
	}

	for i, c := range list {
		c.setHash(crates[i])
	}
	if err := writePackageList(opts.stdout, list); err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}
	return nil
}

// barWidth returns the width of the progress bar
// for a terminal that is cols columns wide,
// leaving room for the counters around the bar.
func barWidth(cols int) int {
	const decorations = 40
	return max(min(cols-decorations, progress.DefaultWidth), 10)
}
