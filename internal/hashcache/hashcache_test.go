// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package hashcache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"zb.256lights.llc/crate2nix"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		data        *string
		want        Cache
		wantCorrupt bool
	}{
		{
			name: "Missing",
			data: nil,
			want: Cache{},
		},
		{
			name:        "Empty",
			data:        new(string),
			wantCorrupt: true,
		},
		{
			name: "EmptyObject",
			data: ptr(`{}`),
			want: Cache{},
		},
		{
			name: "Entries",
			data: ptr(`{"foo 1.0.0": "abc", "bar 2.0.0": " def\n"}`),
			want: Cache{
				"foo 1.0.0": "abc",
				"bar 2.0.0": "def",
			},
		},
		{
			name:        "Garbage",
			data:        ptr(`this is not json`),
			wantCorrupt: true,
		},
		{
			name:        "Array",
			data:        ptr(`["abc"]`),
			wantCorrupt: true,
		},
		{
			name:        "Null",
			data:        ptr(`null`),
			wantCorrupt: true,
		},
		{
			name:        "NonStringValue",
			data:        ptr(`{"foo 1.0.0": 123}`),
			wantCorrupt: true,
		},
		{
			name:        "DuplicateKey",
			data:        ptr(`{"foo 1.0.0": "abc", "foo 1.0.0": "def"}`),
			wantCorrupt: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "crate-hashes.json")
			if test.data != nil {
				if err := os.WriteFile(path, []byte(*test.data), 0o666); err != nil {
					t.Fatal(err)
				}
			}

			got, err := Load(path)
			if test.wantCorrupt {
				var corrupt *CorruptError
				if !errors.As(err, &corrupt) {
					t.Fatalf("Load(%q) = %v, %v; want _, <CorruptError>", path, got, err)
				}
				if corrupt.Path != path {
					t.Errorf("corrupt.Path = %q; want %q", corrupt.Path, path)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load(%q): %v", path, err)
			}
			if diff := cmp.Diff(test.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Load(%q) (-want +got):\n%s", path, diff)
			}
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	got, err := Load("")
	if err != nil || len(got) != 0 {
		t.Errorf(`Load("") = %v, %v; want map[], <nil>`, got, err)
	}
}

func TestReconcile(t *testing.T) {
	old := Cache{
		"a 1.0.0":     "cached-a",
		"b 1.0.0":     "cached-b",
		"stale 0.1.0": "cached-stale",
	}
	ids := []crate2nix.PackageID{"a 1.0.0", "b 1.0.0", "c 1.0.0", "d 1.0.0"}
	fetched := map[crate2nix.PackageID]string{
		"b 1.0.0": "fresh-b",
		"c 1.0.0": "fresh-c",
	}
	got := Reconcile(old, ids, fetched)
	want := Cache{
		"a 1.0.0": "cached-a",
		"b 1.0.0": "fresh-b",
		"c 1.0.0": "fresh-c",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile(...) (-want +got):\n%s", diff)
	}
}

func TestPersist(t *testing.T) {
	t.Run("Unchanged", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crate-hashes.json")
		c := Cache{"a 1.0.0": "abc"}
		written, err := Persist(path, c, Cache{"a 1.0.0": "abc"})
		if written || err != nil {
			t.Errorf("Persist(...) = %t, %v; want false, <nil>", written, err)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("os.Stat(%q) = _, %v; want not exist", path, err)
		}
	})

	t.Run("Changed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crate-hashes.json")
		written, err := Persist(path, Cache{"stale 0.1.0": "xyz"}, Cache{
			"b 1.0.0": "def",
			"a 1.0.0": "abc",
		})
		if !written || err != nil {
			t.Fatalf("Persist(...) = %t, %v; want true, <nil>", written, err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		const want = "{\n" +
			`  "a 1.0.0": "abc",` + "\n" +
			`  "b 1.0.0": "def"` + "\n" +
			"}\n"
		if diff := cmp.Diff(want, string(got)); diff != "" {
			t.Errorf("file content (-want +got):\n%s", diff)
		}
	})

	t.Run("NoPath", func(t *testing.T) {
		written, err := Persist("", nil, Cache{"a 1.0.0": "abc"})
		if written || err != nil {
			t.Errorf(`Persist("", ...) = %t, %v; want false, <nil>`, written, err)
		}
	})

	t.Run("WriteError", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "crate-hashes.json")
		written, err := Persist(path, nil, Cache{"a 1.0.0": "abc"})
		if written || !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Persist(%q, ...) = %t, %v; want false, <%v>", path, written, err, os.ErrNotExist)
		}
		if err != nil && !strings.Contains(err.Error(), path) {
			t.Errorf("Persist(%q, ...) error %q does not mention the path", path, err)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate-hashes.json")
	want := Cache{
		`serde 1.0.0 (registry+https://github.com/rust-lang/crates.io-index)`: "0hv9dqk7b6hg9ij0xqpisxmsqs9s9rxc0v72g3y5z1ffk2bcwl5k",
		`quote "weird" \ id`: "1k5cdbh1ld2vbryrjz0vqyr9jsk7xjq1xlrpkqrfg6csk9n6pqwd",
	}
	if _, err := Persist(path, nil, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load after Persist (-want +got):\n%s", diff)
	}
}

func ptr[T any](x T) *T {
	return &x
}
