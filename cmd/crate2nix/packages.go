// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"zb.256lights.llc/crate2nix"
)

// Source types in the JSON package list.
const (
	registrySourceType = "registry"
	gitSourceType      = "git"
	localSourceType    = "local"
)

// crateJSON is a crate derivation in the JSON package list.
// Members that the prefetcher does not use
// (dependencies, features, build metadata)
// are kept in Unknown so that they are written back verbatim.
type crateJSON struct {
	PackageID string         `json:"packageId"`
	CrateName string         `json:"crateName"`
	Version   string         `json:"version"`
	Source    *sourceJSON    `json:"source"`
	Unknown   jsontext.Value `json:",unknown"`
}

type sourceJSON struct {
	Type     string         `json:"type"`
	Registry string         `json:"registry,omitzero"`
	Name     string         `json:"name,omitzero"`
	Version  string         `json:"version,omitzero"`
	URL      string         `json:"url,omitzero"`
	Rev      string         `json:"rev,omitzero"`
	Ref      string         `json:"ref,omitzero"`
	Path     string         `json:"path,omitzero"`
	SHA256   string         `json:"sha256,omitzero"`
	Unknown  jsontext.Value `json:",unknown"`
}

// readPackageList parses a JSON array of crate derivations.
func readPackageList(r io.Reader) ([]*crateJSON, error) {
	var list []*crateJSON
	if err := jsonv2.UnmarshalRead(r, &list); err != nil {
		return nil, fmt.Errorf("read package list: %v", err)
	}
	for i, c := range list {
		if c == nil {
			return nil, fmt.Errorf("read package list: crate #%d is null", i+1)
		}
	}
	return list, nil
}

// writePackageList writes list as an indented JSON array.
func writePackageList(w io.Writer, list []*crateJSON) error {
	if list == nil {
		list = []*crateJSON{}
	}
	err := jsonv2.MarshalWrite(w, list,
		jsonv2.Deterministic(true),
		jsontext.WithIndent("  "),
	)
	if err != nil {
		return fmt.Errorf("write package list: %v", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write package list: %v", err)
	}
	return nil
}

// derivation converts c to the prefetcher's data model.
// Registry sources default their name and version to the crate's.
func (c *crateJSON) derivation() (*crate2nix.CrateDerivation, error) {
	drv := &crate2nix.CrateDerivation{
		PackageID: crate2nix.PackageID(c.PackageID),
		CrateName: c.CrateName,
		Version:   c.Version,
	}
	if c.Source == nil {
		return nil, fmt.Errorf("crate %s: missing source", c.PackageID)
	}
	switch c.Source.Type {
	case registrySourceType:
		src := crate2nix.RegistrySource{
			Registry: c.Source.Registry,
			Name:     c.Source.Name,
			Version:  c.Source.Version,
			SHA256:   c.Source.SHA256,
		}
		if src.Name == "" {
			src.Name = c.CrateName
		}
		if src.Version == "" {
			src.Version = c.Version
		}
		drv.Source = src
	case gitSourceType:
		if c.Source.URL == "" || c.Source.Rev == "" {
			return nil, fmt.Errorf("crate %s: git source needs url and rev", c.PackageID)
		}
		drv.Source = crate2nix.GitSource{
			URL:    c.Source.URL,
			Rev:    c.Source.Rev,
			Ref:    c.Source.Ref,
			SHA256: c.Source.SHA256,
		}
	case localSourceType:
		drv.Source = crate2nix.LocalSource{Path: c.Source.Path}
	default:
		return nil, fmt.Errorf("crate %s: unknown source type %q", c.PackageID, c.Source.Type)
	}
	return drv, nil
}

// setHash records the hash of drv's source in c.
// All other members are left as read.
func (c *crateJSON) setHash(drv *crate2nix.CrateDerivation) {
	if _, isLocal := drv.Source.(crate2nix.LocalSource); isLocal {
		return
	}
	c.Source.SHA256 = drv.Source.Hash()
}
