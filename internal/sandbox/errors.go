package sandbox

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run
type Kind int

const (
	// KindExecution is any uncaught failure inside the script
	KindExecution Kind = iota
	// KindSecurityRejected means the static gate refused the script
	KindSecurityRejected
	// KindTimeout means the hard execution bound was exceeded
	KindTimeout
	// KindBusy means no execution slot became free in time
	KindBusy
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindExecution:
		return "execution_error"
	case KindSecurityRejected:
		return "security_rejected"
	case KindTimeout:
		return "timeout"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

var (
	ErrFileScheme = errors.New("Attempting to access file:// resources.")
	ErrTimeout    = errors.New("script execution timed out")
	ErrBusy       = errors.New("all execution slots are busy")
	ErrClosed     = errors.New("executor is closed")
)

// Error is returned by Execute and Run for every failed run
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a sandbox error of the given kind
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, KindExecution for foreign errors
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindExecution
}

func errSecurity(err error) error {
	return &Error{Kind: KindSecurityRejected, Err: err}
}

func errTimeout(d fmt.Stringer) error {
	return &Error{Kind: KindTimeout, Err: fmt.Errorf("%w after %s", ErrTimeout, d)}
}

func errExecution(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: KindExecution, Err: err}
}

func errBusy(err error) error {
	return &Error{Kind: KindBusy, Err: err}
}
