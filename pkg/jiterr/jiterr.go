// Package jiterr defines the typed compiler errors raised during tree
// construction, labeling, and code generation. It generalizes the
// teacher's DiagnosticReason-enum-with-String() pattern
// (pkg/optimizer/diagnostic.go) into an actual error type, because a
// library surfacing compile failures to a caller needs the stdlib error
// interface, not a print-only diagnostic.
package jiterr

import "fmt"

// Kind classifies a compilation failure. All kinds are fatal for the tree
// that raised them (SPEC_FULL.md §7): there is no recovery within a tree.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindRegisterExhausted: a node's labeling-step would require more
	// simultaneous live temporaries than the register file plus spill
	// slots can accommodate.
	KindRegisterExhausted

	// KindTypeMismatch: a typed factory call was given operands whose
	// types are incompatible (only reachable when a caller sidesteps the
	// generic factory signatures via reflection/unsafe).
	KindTypeMismatch

	// KindUnfinalized: the compiled function was invoked, or its code
	// pointer requested, before Finalize completed.
	KindUnfinalized

	// KindDoubleFinalize: Finalize was called more than once on the same
	// tree.
	KindDoubleFinalize

	// KindArenaOverflow: the arena backing the tree ran out of memory.
	KindArenaOverflow
)

func (k Kind) String() string {
	switch k {
	case KindRegisterExhausted:
		return "register exhausted"
	case KindTypeMismatch:
		return "type mismatch"
	case KindUnfinalized:
		return "unfinalized use"
	case KindDoubleFinalize:
		return "double finalize"
	case KindArenaOverflow:
		return "arena overflow"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by this module.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("exprjit: %s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("exprjit: %s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Newf builds a new Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a new Error of the given kind, wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether err is a *Error of the given kind, so callers can
// write errors.Is(err, jiterr.Sentinel(jiterr.KindDoubleFinalize)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel builds a bare *Error carrying only a Kind, suitable for use
// with errors.Is as a comparison target.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }
