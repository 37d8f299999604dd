package macros

import (
	"errors"
	"fmt"

	"macroexp/internal/source"
)

// ErrImplNotFound is returned by an Invoker that cannot resolve an identity.
var ErrImplNotFound = errors.New("macro implementation not found")

// AbortError is raised by an implementation through Context.Abort.
type AbortError struct {
	Pos source.Span
	Msg string
}

func (e *AbortError) Error() string { return e.Msg }

// TypeError is a type-checking failure raised while the implementation ran.
type TypeError struct {
	Pos source.Span
	Msg string
}

func (e *TypeError) Error() string { return "type error: " + e.Msg }

// ControlSignal is non-local control flow travelling through an
// implementation. The engine never converts it into a diagnostic and hands
// it back to its caller unchanged.
type ControlSignal struct {
	Name  string
	Value any
}

func (e *ControlSignal) Error() string { return "control signal: " + e.Name }

// InternalError reports an inconsistency between a binding and the
// definition it belongs to. It is never shown to users as a diagnostic.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "macros: internal error: " + e.Msg }

func internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// ImplNotFoundError wraps an Invoker resolution failure.
type ImplNotFoundError struct {
	Identity Identity
	Err      error
}

func (e *ImplNotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("macro implementation not found: %s", e.Identity)
	}
	return fmt.Sprintf("macro implementation not found: %s: %v", e.Identity, e.Err)
}

func (e *ImplNotFoundError) Unwrap() error { return e.Err }

func (e *ImplNotFoundError) Is(target error) bool { return target == ErrImplNotFound }

// DecodeFailure distinguishes binding decode errors.
type DecodeFailure uint8

const (
	MissingField DecodeFailure = iota + 1
	WrongKind
	VersionMismatch
	BadSchema
)

// BindingDecodeError describes why a persisted binding was rejected.
type BindingDecodeError struct {
	Failure  DecodeFailure
	Field    string
	Expected string
	Actual   string
}

func (e *BindingDecodeError) Error() string {
	switch e.Failure {
	case MissingField:
		return fmt.Sprintf("macro impl binding: field %q is missing", e.Field)
	case WrongKind:
		return fmt.Sprintf("macro impl binding: field %q should be %s, found %s", e.Field, e.Expected, e.Actual)
	case VersionMismatch:
		return fmt.Sprintf("macro impl binding format mismatch: expected %s, actual %s", e.Expected, e.Actual)
	case BadSchema:
		return fmt.Sprintf("macro impl binding: unsupported schema %s (expected %s)", e.Actual, e.Expected)
	default:
		return "macro impl binding: malformed " + e.Field
	}
}

// InvocationTargetError wraps a failure raised inside an implementation by
// the machinery that called it (a recovered panic, a plugin trampoline).
type InvocationTargetError struct {
	Err error
}

func (e *InvocationTargetError) Error() string { return "invocation failed: " + e.Err.Error() }

func (e *InvocationTargetError) Unwrap() error { return e.Err }

// PanicError is a recovered panic of an implementation.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// rootCause strips invocation wrappers until the failure raised by the
// implementation itself is reached.
func rootCause(err error) error {
	for {
		var target *InvocationTargetError
		if !errors.As(err, &target) || target.Err == nil {
			break
		}
		err = target.Err
	}
	var p *PanicError
	if errors.As(err, &p) {
		if inner := p.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}
