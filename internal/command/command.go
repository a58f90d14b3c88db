// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package command runs short-lived external tools
// and classifies the ways they can fail.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"zombiezen.com/go/log"
)

// Kind is a class of command failure.
type Kind int

const (
	// SpawnFailed means the command could not be started.
	SpawnFailed Kind = 1 + iota
	// ExitedNonzero means the command ran but did not report success.
	ExitedNonzero
	// OutputNotDecodable means the command succeeded
	// but its output could not be interpreted.
	OutputNotDecodable
)

func (k Kind) String() string {
	switch k {
	case SpawnFailed:
		return "SpawnFailed"
	case ExitedNonzero:
		return "ExitedNonzero"
	case OutputNotDecodable:
		return "OutputNotDecodable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the error returned when an external command fails.
type Error struct {
	Kind Kind
	// Args is the full command line, starting with the program name.
	Args []string
	// ExitCode is the process's exit code if Kind == ExitedNonzero.
	// It is -1 if the process was terminated by a signal.
	ExitCode int
	// Stdout and Stderr hold the output captured from the process, if any.
	Stdout []byte
	Stderr []byte
	// Err is the underlying error, if any.
	Err error
}

// CommandLine returns the command line as it could be typed into a shell.
func (e *Error) CommandLine() string {
	return Quote(e.Args)
}

func (e *Error) Error() string {
	switch e.Kind {
	case SpawnFailed:
		return fmt.Sprintf("while spawning '%s': %v", e.CommandLine(), e.Err)
	case ExitedNonzero:
		msg := fmt.Sprintf("%s\n=> exited with: %d", e.CommandLine(), e.ExitCode)
		if desc := describeExit(e.Err); desc != "" {
			msg += " (" + desc + ")"
		}
		return msg
	case OutputNotDecodable:
		if e.Err == nil {
			return fmt.Sprintf("output of '%s' is not decodable", e.CommandLine())
		}
		return fmt.Sprintf("output of '%s' is not decodable: %v", e.CommandLine(), e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.CommandLine(), e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is or wraps an [*Error] of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// Output runs the named program with the given arguments
// and returns its standard output with surrounding whitespace trimmed.
// Standard input is connected to the null device.
// If the program cannot be started, exits unsuccessfully,
// or writes output that is not valid UTF-8,
// Output returns an [*Error].
func Output(ctx context.Context, name string, args ...string) (string, error) {
	argv := append([]string{name}, args...)
	log.Debugf(ctx, "Running %s", Quote(argv))

	c := exec.CommandContext(ctx, name, args...)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	c.Stdout = stdout
	c.Stderr = stderr
	if err := c.Run(); err != nil {
		return "", newRunError(argv, err, stdout.Bytes(), stderr.Bytes())
	}
	if !utf8.Valid(stdout.Bytes()) {
		return "", &Error{
			Kind:   OutputNotDecodable,
			Args:   argv,
			Stdout: stdout.Bytes(),
			Stderr: stderr.Bytes(),
			Err:    errors.New("not UTF-8"),
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ExitCode returns the exit code from an error returned by [*exec.Cmd.Run].
// It returns -1 if the process did not exit normally.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	return exitErr.ExitCode()
}

// newRunError converts an error from [*exec.Cmd.Run] into an [*Error].
func newRunError(argv []string, err error, stdout, stderr []byte) *Error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &Error{
			Kind: SpawnFailed,
			Args: argv,
			Err:  err,
		}
	}
	return &Error{
		Kind:     ExitedNonzero,
		Args:     argv,
		ExitCode: exitErr.ExitCode(),
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      err,
	}
}

// RunError classifies an error returned by [*exec.Cmd.Run] for argv
// when the command's output was not captured.
// It returns nil if err is nil.
func RunError(argv []string, err error) error {
	if err == nil {
		return nil
	}
	return newRunError(argv, err, nil, nil)
}

// Quote joins a command line into a string,
// quoting arguments that contain shell metacharacters.
func Quote(argv []string) string {
	sb := new(strings.Builder)
	for i, arg := range argv {
		if i > 0 {
			sb.WriteString(" ")
		}
		if arg != "" && !strings.ContainsFunc(arg, needsQuote) {
			sb.WriteString(arg)
			continue
		}
		sb.WriteString("'")
		sb.WriteString(strings.ReplaceAll(arg, "'", `'\''`))
		sb.WriteString("'")
	}
	return sb.String()
}

func needsQuote(c rune) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	case strings.ContainsRune("-_./:=@%+,", c):
		return false
	default:
		return true
	}
}
