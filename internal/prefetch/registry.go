// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package prefetch

import (
	"fmt"
	"net/url"
	"strings"

	"zb.256lights.llc/crate2nix"
	"zombiezen.com/go/uritemplate"
)

// CratesIODownloadTemplate is the URI template for crate downloads from crates.io.
const CratesIODownloadTemplate = "https://crates.io/api/v1/crates/{crate}/{version}/download"

// DownloadURL returns the URL of src's .crate file.
// templates maps alternative registry names to RFC 6570 URI templates.
// Templates may reference the variables
// "crate", "version", "prefix", and "lowerprefix".
// Since prefixes contain slashes, they are usually expanded
// with the reserved operator (e.g. "{+prefix}").
// crates.io always uses [CratesIODownloadTemplate]
// unless templates has an entry for the empty name.
func DownloadURL(src crate2nix.RegistrySource, templates map[string]string) (string, error) {
	tmpl, ok := templates[src.Registry]
	if !ok {
		if src.Registry != "" {
			return "", fmt.Errorf("no download URL known for registry %q", src.Registry)
		}
		tmpl = CratesIODownloadTemplate
	}
	if src.Name == "" || src.Version == "" {
		return "", fmt.Errorf("download URL for %v: missing crate name or version", src)
	}
	prefix := IndexPrefix(src.Name)
	u, err := uritemplate.Expand(tmpl, map[string]string{
		"crate":       src.Name,
		"version":     src.Version,
		"prefix":      prefix,
		"lowerprefix": strings.ToLower(prefix),
	})
	if err != nil {
		return "", fmt.Errorf("download URL for %v: %v", src, err)
	}
	if _, err := url.Parse(u); err != nil {
		return "", fmt.Errorf("download URL for %v: %v", src, err)
	}
	return u, nil
}

// IndexPrefix returns the directory of a crate in a Cargo registry index.
func IndexPrefix(name string) string {
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3/" + name[:1]
	default:
		return name[:2] + "/" + name[2:4]
	}
}

// artifactName returns the store name used for a downloaded crate.
func artifactName(src crate2nix.RegistrySource) string {
	return src.Name + "-" + src.Version
}
