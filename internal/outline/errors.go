package outline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a compile failure.
type ErrorKind int

const (
	// ErrStructural covers a bad first line, a second root header, or an
	// illegal nesting jump.
	ErrStructural ErrorKind = iota
	// ErrAnnotation is a malformed or conflicting inline annotation.
	ErrAnnotation
	// ErrReference is an explicit reference matching zero or several tasks.
	ErrReference
	// ErrDuplicate is a description used by more than one task.
	ErrDuplicate
	// ErrNestedEstimate is an estimated task below an estimated ancestor.
	ErrNestedEstimate
	// ErrCycle is a cycle in the dependency relation.
	ErrCycle
	// ErrDeadline is a dependency whose deadline is not strictly earlier.
	ErrDeadline
)

// String returns the kind name used in JSON error bodies.
func (k ErrorKind) String() string {
	switch k {
	case ErrStructural:
		return "structural"
	case ErrAnnotation:
		return "annotation"
	case ErrReference:
		return "reference"
	case ErrDuplicate:
		return "duplicate"
	case ErrNestedEstimate:
		return "nested_estimate"
	case ErrCycle:
		return "cycle"
	case ErrDeadline:
		return "deadline"
	default:
		return "unknown"
	}
}

// Semantic reports whether the kind is an invariant violation found by
// validation rather than a parse failure.
func (k ErrorKind) Semantic() bool {
	return k >= ErrDuplicate
}

// Error is the single terminal error of a compile.
type Error struct {
	Kind    ErrorKind
	Message string
	// Line is the 1-based source line, or 0 when the error is not tied to one.
	Line int
	// Tasks names the task descriptions involved, if any.
	Tasks []string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// KindOf returns the kind of an outline error anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind, true
	}
	return 0, false
}

func structuralError(line int, text, msg string) *Error {
	return &Error{
		Kind:    ErrStructural,
		Message: fmt.Sprintf("%s, check near line: '%s'", msg, text),
		Line:    line,
	}
}

func annotationError(line int, msg string, args ...any) *Error {
	return &Error{Kind: ErrAnnotation, Message: fmt.Sprintf(msg, args...), Line: line}
}
