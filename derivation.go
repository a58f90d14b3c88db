// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package crate2nix holds the data model shared between
// the Cargo dependency resolver, the prefetcher, and the Nix renderer.
package crate2nix

import "fmt"

// PackageID is a Cargo package ID that uniquely identifies
// one resolved crate within a dependency graph.
// Package IDs are ordered by string comparison.
type PackageID string

// A CrateDerivation is a single resolved crate
// that will become one derivation in the generated build description.
type CrateDerivation struct {
	PackageID PackageID
	CrateName string
	Version   string
	Source    Source
}

func (drv *CrateDerivation) String() string {
	return string(drv.PackageID)
}

// CheckUniqueIDs returns an error if two derivations share a package ID.
// It also rejects nil derivations and derivations without an ID or a source,
// since later steps cannot handle them.
func CheckUniqueIDs(crates []*CrateDerivation) error {
	seen := make(map[PackageID]struct{}, len(crates))
	for i, c := range crates {
		if c == nil {
			return fmt.Errorf("crate #%d is nil", i+1)
		}
		if c.PackageID == "" {
			return fmt.Errorf("crate %s %s has no package ID", c.CrateName, c.Version)
		}
		if c.Source == nil {
			return fmt.Errorf("crate %s has no source", c.PackageID)
		}
		if _, dup := seen[c.PackageID]; dup {
			return fmt.Errorf("duplicate package ID %q", c.PackageID)
		}
		seen[c.PackageID] = struct{}{}
	}
	return nil
}
