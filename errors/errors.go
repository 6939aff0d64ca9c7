package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseManifest Phase = "manifest" // repositories.json
	PhaseLoad     Phase = "load"     // module descriptor loading
	PhaseVerify   Phase = "verify"   // content digest verification
	PhaseCompile  Phase = "compile"  // backend compilation
	PhaseInvoke   Phase = "invoke"   // function invocation
	PhaseDispatch Phase = "dispatch" // daemon command dispatch
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindBrokenFile   Kind = "broken_file"
	KindIO           Kind = "io"
	KindExecution    Kind = "execution"
	KindInvalidInput Kind = "invalid_input"
	KindUnsupported  Kind = "unsupported"
)

// Sentinels for errors.Is matching by kind, regardless of phase.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrBrokenFile   = &Error{Kind: KindBrokenFile}
	ErrIO           = &Error{Kind: KindIO}
	ErrExecution    = &Error{Kind: KindExecution}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
)

// Error is the structured error type used throughout wasmship
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Path   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the filesystem path or resource the error refers to
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the wasmship taxonomy

// NotFound creates an error for a missing manifest, descriptor, binary or name.
func NotFound(phase Phase, what, path string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Path:   path,
		Detail: what + " not found",
	}
}

// BrokenFile creates an error for a binary whose digest does not match its
// content address.
func BrokenFile(path, expected, actual string) *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindBrokenFile,
		Path:   path,
		Detail: fmt.Sprintf("digest mismatch: expected %s, got %s", expected, actual),
	}
}

// IO wraps an underlying filesystem or network failure.
func IO(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Execution creates a runtime failure with a descriptive message.
func Execution(msg string, args ...any) *Error {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindExecution,
		Detail: msg,
	}
}

// ExecutionCause wraps an engine-level failure (trap, compile error).
func ExecutionCause(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExecution,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}
