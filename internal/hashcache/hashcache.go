// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package hashcache reads and writes the crate hash cache file
// (conventionally crate-hashes.json),
// a JSON object that maps package IDs to content hashes.
//
// The cache is only an optimization:
// any hash in it can be recomputed by prefetching the source again.
// Writes replace the whole file and are not atomic.
package hashcache

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"zb.256lights.llc/crate2nix"
)

// Cache maps package IDs to content hashes.
type Cache map[crate2nix.PackageID]string

// CorruptError is returned by [Load]
// when the cache file exists but does not contain a valid cache.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("hash cache %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Load reads the cache file at path.
// A missing or unreadable file is treated as an empty cache,
// as is an empty path.
// If the file can be read but is not a JSON object of strings,
// Load returns a [*CorruptError].
func Load(path string) (Cache, error) {
	if path == "" {
		return make(Cache), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Cache), nil
	}
	c, err := Parse(data)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return c, nil
}

// Parse decodes the cache file format.
// Surrounding whitespace in hashes is trimmed.
func Parse(data []byte) (Cache, error) {
	var raw map[string]string
	if err := jsonv2.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("not a JSON object")
	}
	c := make(Cache, len(raw))
	for id, hash := range raw {
		if id == "" {
			return nil, errors.New("empty package ID")
		}
		c[crate2nix.PackageID(id)] = strings.TrimSpace(hash)
	}
	return c, nil
}

// Reconcile builds the cache for a run that uses exactly the packages in ids.
// A hash in fetched takes precedence over one in old.
// Packages in ids that appear in neither map are left out,
// and entries of old that are not in ids are dropped.
func Reconcile(old Cache, ids []crate2nix.PackageID, fetched map[crate2nix.PackageID]string) Cache {
	c := make(Cache, len(ids))
	for _, id := range ids {
		if hash, ok := fetched[id]; ok {
			c[id] = hash
		} else if hash, ok := old[id]; ok {
			c[id] = hash
		}
	}
	return c
}

// Equal reports whether two caches hold exactly the same entries.
func Equal(c1, c2 Cache) bool {
	return maps.Equal(c1, c2)
}

// Marshal encodes the cache in its file format:
// an indented JSON object with sorted keys.
func Marshal(c Cache) ([]byte, error) {
	if c == nil {
		c = Cache{}
	}
	data, err := jsonv2.Marshal(c, jsonv2.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Persist writes newCache to path if it differs from oldCache,
// replacing the whole file.
// written reports whether the file was written.
// Persist is a no-op if path is empty.
func Persist(path string, oldCache, newCache Cache) (written bool, err error) {
	if path == "" || Equal(oldCache, newCache) {
		return false, nil
	}
	data, err := Marshal(newCache)
	if err != nil {
		return false, fmt.Errorf("write hash cache %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o666); err != nil {
		return false, fmt.Errorf("write hash cache %s: %w", path, err)
	}
	return true, nil
}
