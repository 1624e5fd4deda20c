// Package errors defines the failure taxonomy of a backup run.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDetectionAmbiguous = errors.New("could not detect database provider")
	ErrSourceNotFound     = errors.New("database file not found")
	ErrSubprocessSpawn    = errors.New("failed to start dump process")
	ErrDumpTimeout        = errors.New("dump process timed out")
)

// SubprocessError reports a dump process that exited with a non-zero code.
// Its message is the captured stderr, verbatim apart from surrounding whitespace.
type SubprocessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

func NewSubprocessError(command string, exitCode int, stderr string) *SubprocessError {
	return &SubprocessError{
		Command:  command,
		ExitCode: exitCode,
		Stderr:   stderr,
	}
}

// StreamError reports an I/O failure on a backup pipeline stage.
type StreamError struct {
	Op   string
	Path string
	Err  error
}

func (e *StreamError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func NewStreamError(op, path string, err error) *StreamError {
	return &StreamError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
