// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package testcontext provides contexts and fake external tools for tests.
package testcontext

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"zombiezen.com/go/log/testlog"
)

// New returns a context that is canceled when the test finishes,
// obeys the test's deadline if present,
// and sends log messages to the test's log.
func New(tb testing.TB) context.Context {
	ctx := tb.Context()
	if d, ok := deadline(tb); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, d)
		tb.Cleanup(cancel)
	}
	return testlog.WithTB(ctx, tb)
}

func deadline(x any) (deadline time.Time, ok bool) {
	d, ok := x.(interface {
		Deadline() (deadline time.Time, ok bool)
	})
	if !ok {
		return time.Time{}, false
	}
	return d.Deadline()
}

// Script writes a POSIX shell script with the given body
// to a new temporary directory and returns its path.
// Script skips the test on platforms without /bin/sh.
func Script(tb testing.TB, name string, body string) string {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("shell scripts not supported on Windows")
	}
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		tb.Fatal(err)
	}
	return path
}
