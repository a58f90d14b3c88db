// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

//go:build !unix

package command

func describeExit(err error) string {
	return ""
}
