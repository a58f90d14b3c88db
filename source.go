// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package crate2nix

import "fmt"

// A Source describes where a crate's content comes from.
//
// The set of sources is closed:
// [RegistrySource] and [GitSource] carry a content hash
// that must be obtained by prefetching,
// and [LocalSource] never needs one.
// Code that switches on a Source should handle all three
// and treat anything else as a programming error.
type Source interface {
	// Hash returns the source's content hash
	// or the empty string if it has not been resolved yet.
	Hash() string
	// WithHash returns a copy of the source with its content hash replaced.
	WithHash(hash string) Source

	isSource()
}

// RegistrySource is a crate downloaded from a Cargo registry.
type RegistrySource struct {
	// Registry is the name of an alternative registry
	// or the empty string for crates.io.
	Registry string
	Name     string
	Version  string
	SHA256   string
}

// Hash returns src.SHA256.
func (src RegistrySource) Hash() string { return src.SHA256 }

func (src RegistrySource) WithHash(hash string) Source {
	src.SHA256 = hash
	return src
}

func (src RegistrySource) String() string {
	if src.Registry == "" {
		return fmt.Sprintf("%s %s (crates.io)", src.Name, src.Version)
	}
	return fmt.Sprintf("%s %s (registry %s)", src.Name, src.Version, src.Registry)
}

func (RegistrySource) isSource() {}

// GitSource is a crate checked out from a git repository.
type GitSource struct {
	URL string
	// Rev is the exact commit to check out.
	Rev string
	// Ref is the branch name the commit was found on, if known.
	Ref    string
	SHA256 string
}

// Hash returns src.SHA256.
func (src GitSource) Hash() string { return src.SHA256 }

func (src GitSource) WithHash(hash string) Source {
	src.SHA256 = hash
	return src
}

func (src GitSource) String() string {
	if src.Ref == "" {
		return src.URL + "#" + src.Rev
	}
	return src.URL + "?ref=" + src.Ref + "#" + src.Rev
}

func (GitSource) isSource() {}

// LocalSource is a crate whose content is available without prefetching,
// such as a path dependency inside the workspace.
type LocalSource struct {
	Path string
}

// Hash always returns the empty string.
func (LocalSource) Hash() string { return "" }

// WithHash returns src unchanged.
func (src LocalSource) WithHash(hash string) Source { return src }

func (src LocalSource) String() string { return src.Path }

func (LocalSource) isSource() {}

var (
	_ Source = RegistrySource{}
	_ Source = GitSource{}
	_ Source = LocalSource{}
)

// NeedsPrefetch reports whether src must go through a prefetcher
// before it can be used in a build description.
// Registry sources need a prefetch only while they lack a hash.
// Git sources always do.
func NeedsPrefetch(src Source) bool {
	switch src := src.(type) {
	case RegistrySource:
		return src.SHA256 == ""
	case GitSource:
		return true
	case LocalSource:
		return false
	default:
		panic(fmt.Sprintf("unhandled source type %T", src))
	}
}
