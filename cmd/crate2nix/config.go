// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tailscale/hujson"
	"zb.256lights.llc/crate2nix/internal/nixbuild"
	"zb.256lights.llc/crate2nix/internal/prefetch"
)

type globalConfig struct {
	Debug          bool              `json:"debug"`
	Jobs           int               `json:"jobs"`
	Nix            string            `json:"nix"`
	NixPrefetchURL string            `json:"nixPrefetchURL"`
	NixPrefetchGit string            `json:"nixPrefetchGit"`
	Registries     map[string]string `json:"registries"`
}

// defaultGlobalConfig returns the configuration used
// when no file or environment variable overrides it.
func defaultGlobalConfig() *globalConfig {
	return &globalConfig{
		Nix:            nixbuild.DefaultNix,
		NixPrefetchURL: prefetch.DefaultPrefetchURL,
		NixPrefetchGit: prefetch.DefaultPrefetchGit,
	}
}

func (g *globalConfig) mergeEnvironment() error {
	if s := os.Getenv("CRATE2NIX_JOBS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return fmt.Errorf("CRATE2NIX_JOBS=%q is not a positive integer", s)
		}
		g.Jobs = n
	}
	return nil
}

func (g *globalConfig) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}

	return nil
}

// UnmarshalJSONFrom unmarshals the configuration object from the JSON decoder,
// merging any fields in the JSON object with existing values.
func (g *globalConfig) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("config must be an object not a %v", got)
	}

	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}

		switch k := keyToken.String(); k {
		case "debug":
			if err := jsonv2.UnmarshalDecode(in, &g.Debug); err != nil {
				return fmt.Errorf("unmarshal config.debug: %w", err)
			}
		case "jobs":
			if err := jsonv2.UnmarshalDecode(in, &g.Jobs); err != nil {
				return fmt.Errorf("unmarshal config.jobs: %w", err)
			}
		case "nix":
			if err := jsonv2.UnmarshalDecode(in, &g.Nix); err != nil {
				return fmt.Errorf("unmarshal config.nix: %w", err)
			}
		case "nixPrefetchURL":
			if err := jsonv2.UnmarshalDecode(in, &g.NixPrefetchURL); err != nil {
				return fmt.Errorf("unmarshal config.nixPrefetchURL: %w", err)
			}
		case "nixPrefetchGit":
			if err := jsonv2.UnmarshalDecode(in, &g.NixPrefetchGit); err != nil {
				return fmt.Errorf("unmarshal config.nixPrefetchGit: %w", err)
			}
		case "registries":
			var newRegistries map[string]string
			if err := jsonv2.UnmarshalDecode(in, &newRegistries); err != nil {
				return fmt.Errorf("unmarshal config.registries: %w", err)
			}
			if g.Registries == nil && len(newRegistries) > 0 {
				g.Registries = make(map[string]string, len(newRegistries))
			}
			for name, tmpl := range newRegistries {
				g.Registries[name] = tmpl
			}
		default:
			if reject, _ := jsonv2.GetOption(in.Options(), jsonv2.RejectUnknownMembers); reject {
				return fmt.Errorf("unmarshal config: unknown field %q", k)
			}
			if err := in.SkipValue(); err != nil {
				return fmt.Errorf("unmarshal config.%s: %w", k, err)
			}
		}
	}
}

func (g *globalConfig) validate() error {
	if g.Jobs < 0 {
		return fmt.Errorf("jobs = %d is negative", g.Jobs)
	}
	if g.Nix == "" {
		return fmt.Errorf("nix program not set")
	}
	if g.NixPrefetchURL == "" {
		return fmt.Errorf("nixPrefetchURL program not set")
	}
	if g.NixPrefetchGit == "" {
		return fmt.Errorf("nixPrefetchGit program not set")
	}
	for name, tmpl := range g.Registries {
		if name == "" {
			return fmt.Errorf("registry with empty name (crates.io is built in)")
		}
		if tmpl == "" {
			return fmt.Errorf("registry %q has an empty download URL template", name)
		}
	}
	return nil
}

// fetcher returns the prefetch commands described by the configuration.
func (g *globalConfig) fetcher() *prefetch.Commands {
	return &prefetch.Commands{
		PrefetchURL: g.NixPrefetchURL,
		PrefetchGit: g.NixPrefetchGit,
		Registries:  g.Registries,
	}
}

// configPaths returns the configuration files to read in order of increasing precedence.
// extra is the path given on the command line, if any.
func configPaths(extra string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if dir := configDir(); dir != "" {
			if !yield(filepath.Join(dir, "crate2nix", "config.jwcc")) {
				return
			}
		}
		if extra != "" {
			yield(extra)
		}
	}
}
