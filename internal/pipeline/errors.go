package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfig marks errors detected before any connection is opened.
var ErrConfig = errors.New("invalid configuration")

// Class tells a supervisor what a failure means for the task that saw it.
type Class int

const (
	// ClassFatal ends the task and its orchestrator.
	ClassFatal Class = iota
	// ClassRetryable ends the task locally; restarting it may succeed.
	ClassRetryable
	// ClassIgnorable is logged and otherwise treated as success.
	ClassIgnorable
)

func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassRetryable:
		return "retryable"
	case ClassIgnorable:
		return "ignorable"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Error is a classified pipeline failure.
type Error struct {
	Class     Class
	Component string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal classifies err as fatal to the calling task.
func Fatal(component, op string, err error) error {
	return classify(ClassFatal, component, op, err)
}

// Retryable classifies err as a soft, local stop.
func Retryable(component, op string, err error) error {
	return classify(ClassRetryable, component, op, err)
}

// Ignorable classifies err as benign.
func Ignorable(component, op string, err error) error {
	return classify(ClassIgnorable, component, op, err)
}

func classify(c Class, component, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Class: c, Component: component, Op: op, Err: err}
}

// ClassOf returns the class of the outermost classified error in err's
// chain. Unclassified errors are fatal.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassFatal
}

// IsRetryable reports whether err is a soft stop.
func IsRetryable(err error) bool { return err != nil && ClassOf(err) == ClassRetryable }

// IsIgnorable reports whether err may be treated as success.
func IsIgnorable(err error) bool { return err != nil && ClassOf(err) == ClassIgnorable }

// Exit codes returned by ExitCode.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitConfig = 2
)

// ExitCode maps the result of an orchestrator to a process exit status.
// Cancellation is a deliberate stop and counts as success.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ExitOK
	case errors.Is(err, ErrConfig):
		return ExitConfig
	default:
		return ExitFailed
	}
}
