// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package nixbuild runs nix build on a generated build description.
package nixbuild

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"zb.256lights.llc/crate2nix/internal/command"
	"zombiezen.com/go/log"
)

// BuildFile is the name of the build description inside a project directory.
const BuildFile = "default.nix"

// DefaultNix is the default name of the nix program.
const DefaultNix = "nix"

// BuildError is returned by [Build] when nix build ran and failed.
type BuildError struct {
	Dir      string
	ExitCode int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("nix build %s\n=> exited with: %d", e.Dir, e.ExitCode)
}

// Options is the set of optional parameters to [Build].
type Options struct {
	// Nix is the name of the nix program.
	// If empty, [DefaultNix] is used.
	Nix string
	// Stdout and Stderr receive the build's output as it runs.
	// They default to [os.Stdout] and [os.Stderr].
	// The numbered listing of the build file on failure goes to Stdout.
	Stdout io.Writer
	Stderr io.Writer
}

// Build builds the attribute attr of the default.nix in dir,
// passing features as the rootFeatures argument.
// The build's output is streamed while it runs.
// If the build fails, Build writes the contents of default.nix with line numbers
// (so that positions in Nix's error trace can be found)
// and returns a [*BuildError].
func Build(ctx context.Context, dir, attr string, features []string, opts *Options) error {
	if opts == nil {
		opts = new(Options)
	}
	nix := opts.Nix
	if nix == "" {
		nix = DefaultNix
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	args := Args(attr, features)
	argv := append([]string{nix}, args...)
	log.Infof(ctx, "Building %s.", dir)
	log.Debugf(ctx, "Running %s in %s", command.Quote(argv), dir)
	c := exec.CommandContext(ctx, nix, args...)
	c.Dir = dir
	// Leaving Stdin nil connects it to the null device.
	c.Stdout = stdout
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		runErr := command.RunError(argv, err)
		if command.IsKind(runErr, command.SpawnFailed) {
			return fmt.Errorf("while spawning nix build for %s: %w", dir, runErr)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("nix build %s: %w", dir, ctx.Err())
		}
		if dumpErr := DumpWithLines(stdout, filepath.Join(dir, BuildFile)); dumpErr != nil {
			log.Warnf(ctx, "Could not show %s: %v", BuildFile, dumpErr)
		}
		return &BuildError{
			Dir:      dir,
			ExitCode: command.ExitCode(err),
		}
	}
	log.Infof(ctx, "Built %s successfully.", dir)
	return nil
}

// Args returns the arguments passed to nix to build attr.
func Args(attr string, features []string) []string {
	return []string{
		"--show-trace",
		"build",
		"-f", BuildFile,
		attr,
		"--arg", "rootFeatures", FeatureList(features),
	}
}

// FeatureList renders features as a Nix list of strings.
func FeatureList(features []string) string {
	sb := new(strings.Builder)
	sb.WriteString("[ ")
	for _, f := range features {
		sb.WriteString(EscapeString(f))
		sb.WriteString(" ")
	}
	sb.WriteString("]")
	return sb.String()
}

// EscapeString returns s as a double-quoted Nix string literal.
// Backslashes, double quotes, and the "${" interpolation marker are escaped.
func EscapeString(s string) string {
	sb := new(strings.Builder)
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '"' || (c == '$' && i+1 < len(s) && s[i+1] == '{') {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}

// DumpWithLines writes the file at path to w,
// prefixing each line with its right-aligned, 1-based line number.
func DumpWithLines(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(w)
	r := bufio.NewReader(f)
	for lineno := 1; ; lineno++ {
		line, readErr := r.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if _, err := fmt.Fprintf(bw, "%5d: %s\n", lineno, line); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return bw.Flush()
}
