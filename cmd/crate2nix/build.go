// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"zb.256lights.llc/crate2nix/internal/nixbuild"
)

type buildOptions struct {
	dir      string
	attr     string
	features []string
}

func newBuildCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "build [options]",
		Short:                 "build a generated " + nixbuild.BuildFile,
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := &buildOptions{
		features: []string{"default"},
	}
	c.Flags().StringVarP(&opts.dir, "directory", "C", ".", "build the "+nixbuild.BuildFile+" in `dir`")
	c.Flags().StringVar(&opts.attr, "attr", "rootCrate.build", "Nix `attribute` to build")
	c.Flags().Var(&featureListFlag{list: &opts.features}, "features", "comma-separated Cargo `features` of the root crate")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context(), g, opts)
	}
	return c
}

func runBuild(ctx context.Context, g *globalConfig, opts *buildOptions) error {
	dir, err := filepath.Abs(opts.dir)
	if err != nil {
		return err
	}
	return nixbuild.Build(ctx, dir, opts.attr, opts.features, &nixbuild.Options{
		Nix: g.Nix,
	})
}
