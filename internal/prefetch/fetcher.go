// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package prefetch

import (
	"context"
	"errors"
	"fmt"

	jsonv2 "github.com/go-json-experiment/json"
	"zb.256lights.llc/crate2nix"
	"zb.256lights.llc/crate2nix/internal/command"
	"zombiezen.com/go/log"
	"zombiezen.com/go/nix/nixbase32"
)

// ErrUnexpectedSourceKind is returned when a fetcher is asked
// to prefetch a source it does not know how to handle.
// It indicates a bug in the caller.
var ErrUnexpectedSourceKind = errors.New("unexpected source kind")

// A Fetcher computes the content hash of a source.
type Fetcher interface {
	Fetch(ctx context.Context, src crate2nix.Source) (string, error)
}

// Default names of the external prefetch programs.
const (
	DefaultPrefetchURL = "nix-prefetch-url"
	DefaultPrefetchGit = "nix-prefetch-git"
)

// Commands is a [Fetcher] that runs the Nix prefetch programs.
// The zero value runs the default programs from PATH
// and only knows how to download from crates.io.
type Commands struct {
	// PrefetchURL is the name of the program that downloads a URL
	// and prints its hash.
	// If empty, [DefaultPrefetchURL] is used.
	PrefetchURL string
	// PrefetchGit is the name of the program that checks out a git revision
	// and prints a JSON description of it.
	// If empty, [DefaultPrefetchGit] is used.
	PrefetchGit string
	// Registries maps alternative registry names to download URL templates.
	// See [DownloadURL] for details.
	Registries map[string]string
}

// Fetch runs exactly one external program to compute src's hash.
// src must be a [crate2nix.RegistrySource] or a [crate2nix.GitSource].
func (c *Commands) Fetch(ctx context.Context, src crate2nix.Source) (string, error) {
	switch src := src.(type) {
	case crate2nix.RegistrySource:
		return c.fetchRegistry(ctx, src)
	case crate2nix.GitSource:
		return c.fetchGit(ctx, src)
	default:
		return "", fmt.Errorf("prefetch %v: %w (%T)", src, ErrUnexpectedSourceKind, src)
	}
}

func (c *Commands) fetchRegistry(ctx context.Context, src crate2nix.RegistrySource) (string, error) {
	u, err := DownloadURL(src, c.Registries)
	if err != nil {
		return "", err
	}
	prog := c.PrefetchURL
	if prog == "" {
		prog = DefaultPrefetchURL
	}
	hash, err := command.Output(ctx, prog, u, "--name", artifactName(src))
	if err != nil {
		return "", err
	}
	checkHash(ctx, src, hash)
	return hash, nil
}

// gitPrefetchInfo is the part of nix-prefetch-git's JSON output that we use.
// It prints more fields (e.g. "url", "rev", "date"),
// but only the hash is needed for fetchgit.
type gitPrefetchInfo struct {
	SHA256 string `json:"sha256"`
}

// fetchGit prefetches a git checkout.
// It takes a general source to guard against callers
// that bypass the type switch in Fetch.
func (c *Commands) fetchGit(ctx context.Context, src crate2nix.Source) (string, error) {
	gitSource, ok := src.(crate2nix.GitSource)
	if !ok {
		return "", fmt.Errorf("prefetch %v using git: %w (%T)", src, ErrUnexpectedSourceKind, src)
	}
	prog := c.PrefetchGit
	if prog == "" {
		prog = DefaultPrefetchGit
	}
	args := []string{
		"--url", gitSource.URL,
		"--fetch-submodules",
		"--rev", gitSource.Rev,
	}
	// nix-prefetch-git only accepts commits for --rev.
	// The ref is a hint so that the commit can be found on a non-default branch.
	if gitSource.Ref != "" {
		args = append(args, "--branch-name", gitSource.Ref)
	}
	out, err := command.Output(ctx, prog, args...)
	if err != nil {
		return "", err
	}
	var info gitPrefetchInfo
	if err := jsonv2.Unmarshal([]byte(out), &info, jsonv2.RejectUnknownMembers(false)); err != nil {
		return "", &command.Error{
			Kind:   command.OutputNotDecodable,
			Args:   append([]string{prog}, args...),
			Stdout: []byte(out),
			Err:    err,
		}
	}
	if info.SHA256 == "" {
		return "", &command.Error{
			Kind:   command.OutputNotDecodable,
			Args:   append([]string{prog}, args...),
			Stdout: []byte(out),
			Err:    errors.New("missing sha256"),
		}
	}
	checkHash(ctx, gitSource, info.SHA256)
	return info.SHA256, nil
}

// checkHash warns if hash does not look like
// a base-32 SHA-256 hash as printed by the Nix prefetch tools.
// The hash is used regardless.
func checkHash(ctx context.Context, src crate2nix.Source, hash string) {
	const sha256Base32Len = 52
	if len(hash) != sha256Base32Len || nixbase32.ValidateString(hash) != nil {
		log.Warnf(ctx, "Hash %q for %v does not look like a base-32 SHA-256 hash", hash, src)
	}
}
