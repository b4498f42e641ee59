package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures so callers can react per kind.
type ErrorKind string

const (
	ErrValidation      ErrorKind = "VALIDATION_ERROR"
	ErrFilesystem      ErrorKind = "FILESYSTEM_ERROR"
	ErrExternalCommand ErrorKind = "EXTERNAL_COMMAND_ERROR"
	ErrParse           ErrorKind = "PARSE_ERROR"
	ErrConfiguration   ErrorKind = "CONFIGURATION_ERROR"
	ErrConflict        ErrorKind = "CONFLICT"
)

// Error is the structured error surfaced by every slurmjm component.
type Error struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "submit" or "build script"
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind and, when set, the same Message.
// This lets sentinel errors such as ErrJobBlocked be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// NewValidationError creates a VALIDATION_ERROR.
func NewValidationError(op, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewFilesystemError wraps an OS error touching path.
func NewFilesystemError(op, path string, err error) *Error {
	return &Error{Kind: ErrFilesystem, Op: op, Message: path, Err: err}
}

// NewParseError creates a PARSE_ERROR for unexpected scheduler output.
func NewParseError(op, format string, args ...any) *Error {
	return &Error{Kind: ErrParse, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewConfigurationError creates a CONFIGURATION_ERROR.
func NewConfigurationError(op, format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Sentinel conflicts returned when a job is not eligible for submission.
var (
	ErrJobBlocked  = &Error{Kind: ErrConflict, Message: "job is blocked by unmet dependencies"}
	ErrJobNotReady = &Error{Kind: ErrConflict, Message: "job is not ready"}
	ErrJobFailed   = &Error{Kind: ErrConflict, Message: "job has failed; requeue with force to reset it"}
)

// ExternalCommandError is returned when sbatch, squeue or scancel exits non-zero
// or cannot be started.
type ExternalCommandError struct {
	Command  string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalCommandError) Error() string {
	msg := fmt.Sprintf("%s: %s %s exited with code %d", ErrExternalCommand, e.Command, strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalCommandError) Unwrap() []error {
	errs := []error{&Error{Kind: ErrExternalCommand}}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
