// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/crate2nix"
	"zb.256lights.llc/crate2nix/internal/testcontext"
	"zombiezen.com/go/log/testlog"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

const testPackageList = `[
  {
    "packageId": "serde 1.0.193 (registry+https://github.com/rust-lang/crates.io-index)",
    "crateName": "serde",
    "version": "1.0.193",
    "edition": "2018",
    "features": {"default": ["std"], "std": []},
    "source": {"type": "registry"}
  },
  {
    "packageId": "foo 0.1.0 (git+https://github.com/example/foo.git#0123456)",
    "crateName": "foo",
    "version": "0.1.0",
    "source": {
      "type": "git",
      "url": "https://github.com/example/foo.git",
      "rev": "0123456",
      "sha256": "stale",
      "subdir": "crates/foo"
    },
    "dependencies": [{"name": "serde"}]
  },
  {
    "packageId": "app 0.1.0 (path+file:///src/app)",
    "crateName": "app",
    "version": "0.1.0",
    "source": {"type": "local", "path": "/src/app"}
  }
]
`

func TestPackageListDerivations(t *testing.T) {
	list, err := readPackageList(strings.NewReader(testPackageList))
	if err != nil {
		t.Fatal(err)
	}
	var got []*crate2nix.CrateDerivation
	for _, c := range list {
		drv, err := c.derivation()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, drv)
	}
	want := []*crate2nix.CrateDerivation{
		{
			PackageID: "serde 1.0.193 (registry+https://github.com/rust-lang/crates.io-index)",
			CrateName: "serde",
			Version:   "1.0.193",
			Source:    crate2nix.RegistrySource{Name: "serde", Version: "1.0.193"},
		},
		{
			PackageID: "foo 0.1.0 (git+https://github.com/example/foo.git#0123456)",
			CrateName: "foo",
			Version:   "0.1.0",
			Source: crate2nix.GitSource{
				URL:    "https://github.com/example/foo.git",
				Rev:    "0123456",
				SHA256: "stale",
			},
		},
		{
			PackageID: "app 0.1.0 (path+file:///src/app)",
			CrateName: "app",
			Version:   "0.1.0",
			Source:    crate2nix.LocalSource{Path: "/src/app"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("derivations (-want +got):\n%s", diff)
	}
}

func TestPackageListPreservesUnknownMembers(t *testing.T) {
	list, err := readPackageList(strings.NewReader(testPackageList))
	if err != nil {
		t.Fatal(err)
	}
	hashes := []string{"abc123", "def456", ""}
	for i, c := range list {
		drv, err := c.derivation()
		if err != nil {
			t.Fatal(err)
		}
		drv.Source = drv.Source.WithHash(hashes[i])
		c.setHash(drv)
	}
	buf := new(strings.Builder)
	if err := writePackageList(buf, list); err != nil {
		t.Fatal(err)
	}

	var got, want any
	if err := jsonv2.Unmarshal([]byte(buf.String()), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf)
	}
	expected := strings.Replace(testPackageList, `{"type": "registry"}`, `{"type": "registry", "sha256": "abc123"}`, 1)
	expected = strings.Replace(expected, `"stale"`, `"def456"`, 1)
	if err := jsonv2.Unmarshal([]byte(expected), &want); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("written package list (-want +got):\n%s", diff)
	}
}

func TestPackageListErrors(t *testing.T) {
	tests := []struct {
		name string
		list string
	}{
		{"MissingSource", `[{"packageId": "a", "crateName": "a", "version": "1.0.0"}]`},
		{"UnknownSourceType", `[{"packageId": "a", "source": {"type": "svn"}}]`},
		{"GitWithoutRev", `[{"packageId": "a", "source": {"type": "git", "url": "https://example.com/a.git"}}]`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			list, err := readPackageList(strings.NewReader(test.list))
			if err != nil {
				t.Fatal(err)
			}
			if drv, err := list[0].derivation(); err == nil {
				t.Errorf("derivation() = %+v, <nil>; want error", drv)
			}
		})
	}

	for _, bad := range []string{`{}`, `[null]`, `[{"packageId": 1}]`} {
		if _, err := readPackageList(strings.NewReader(bad)); err == nil {
			t.Errorf("readPackageList(%q) did not return an error", bad)
		}
	}
}

func TestRunPrefetch(t *testing.T) {
	ctx := testcontext.New(t)
	g := defaultGlobalConfig()
	g.NixPrefetchURL = testcontext.Script(t, "nix-prefetch-url", "echo abc123\n")
	g.NixPrefetchGit = testcontext.Script(t, "nix-prefetch-git", `echo '{"sha256": "def456"}'`+"\n")

	dir := t.TempDir()
	cacheFile := filepath.Join(dir, "crate-hashes.json")
	stdout := new(strings.Builder)
	err := runPrefetch(ctx, g, &prefetchOptions{
		stdin:     strings.NewReader(testPackageList),
		stdout:    stdout,
		input:     "-",
		cacheFile: cacheFile,
		jobs:      2,
	})
	if err != nil {
		t.Fatal("runPrefetch:", err)
	}

	list, err := readPackageList(strings.NewReader(stdout.String()))
	if err != nil {
		t.Fatal(err)
	}
	var gotHashes []string
	for _, c := range list {
		gotHashes = append(gotHashes, c.Source.SHA256)
	}
	if diff := cmp.Diff([]string{"abc123", "def456", ""}, gotHashes); diff != "" {
		t.Errorf("hashes (-want +got):\n%s", diff)
	}

	cacheData, err := os.ReadFile(cacheFile)
	if err != nil {
		t.Fatal(err)
	}
	var gotCache map[string]string
	if err := jsonv2.Unmarshal(cacheData, &gotCache); err != nil {
		t.Fatal(err)
	}
	wantCache := map[string]string{
		"serde 1.0.193 (registry+https://github.com/rust-lang/crates.io-index)": "abc123",
		"foo 0.1.0 (git+https://github.com/example/foo.git#0123456)":            "def456",
	}
	if diff := cmp.Diff(wantCache, gotCache); diff != "" {
		t.Errorf("cache (-want +got):\n%s", diff)
	}
}

func TestBarWidth(t *testing.T) {
	tests := []struct {
		cols int
		want int
	}{
		{200, 40},
		{70, 30},
		{20, 10},
	}
	for _, test := range tests {
		if got := barWidth(test.cols); got != test.want {
			t.Errorf("barWidth(%d) = %d; want %d", test.cols, got, test.want)
		}
	}
}
