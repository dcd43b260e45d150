package errors

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobNotPaused = errors.New("job is not paused")
	ErrJobTerminal  = errors.New("job already finished")
	ErrPaused       = errors.New("job paused")
	ErrCanceled     = errors.New("job canceled")
	ErrShuttingDown = errors.New("scheduler is shutting down")

	// ErrRangeNotSupported marks a server that ignores Range requests.
	// It is not fatal: the stream is restarted from zero instead of resumed.
	ErrRangeNotSupported = errors.New("server does not support range requests")
)

// Kind classifies a failure for state-transition logic and reporting.
type Kind string

const (
	KindNetwork          Kind = "network"
	KindSizeProbe        Kind = "size_probe"
	KindRangeUnsupported Kind = "range_unsupported"
	KindMerge            Kind = "merge"
	KindScheduling       Kind = "scheduling"
)

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with kind. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Wrapf tags a formatted error with kind.
func Wrapf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind attached to err, or an empty Kind if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
