package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates which subsystem produced the error
type Phase string

const (
	PhaseReference Phase = "reference" // reference create/ref/unref/delete
	PhaseScope     Phase = "scope"     // handle scope open/close/escape
	PhaseEnv       Phase = "env"       // environment state and teardown
	PhaseClass     Phase = "class"     // class definition and construction
	PhaseWrap      Phase = "wrap"      // native data attached to objects
	PhaseHost      Phase = "host"      // host module functions
	PhaseLoad      Phase = "load"      // addon loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArg     Kind = "invalid_arg"
	KindTypeMismatch   Kind = "type_mismatch"
	KindInvalidHandle  Kind = "invalid_handle"
	KindScopeMismatch  Kind = "scope_mismatch"
	KindEscapeTwice    Kind = "escape_twice"
	KindRefCount       Kind = "ref_count"
	KindAlreadyWrapped Kind = "already_wrapped"
	KindNotWrapped     Kind = "not_wrapped"
	KindClosed         Kind = "closed"
	KindNotFound       Kind = "not_found"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindInvalidData    Kind = "invalid_data"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	ValueKind string
	Detail    string
	Status    Status
	Handle    uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Handle != 0 {
		b.WriteString(" at handle ")
		b.WriteString(strconv.FormatUint(uint64(e.Handle), 10))
	}

	if e.ValueKind != "" {
		b.WriteString(": got ")
		b.WriteString(e.ValueKind)
	}

	if e.Detail != "" {
		if e.ValueKind != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// StatusOf maps an error to the status reported across the native boundary.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var e *Error
	if stderrors.As(err, &e) {
		if e.Status != StatusOK {
			return e.Status
		}
		return kindStatus(e.Kind)
	}
	return StatusGenericFailure
}

func kindStatus(k Kind) Status {
	switch k {
	case KindInvalidArg, KindInvalidHandle, KindAlreadyWrapped, KindNotWrapped:
		return StatusInvalidArg
	case KindScopeMismatch:
		return StatusHandleScopeMismatch
	case KindEscapeTwice:
		return StatusEscapeCalledTwice
	case KindClosed:
		return StatusClosing
	default:
		return StatusGenericFailure
	}
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

// Status sets the status reported at the native boundary
func (b *Builder) Status(s Status) *Builder {
	b.err.Status = s
	return b
}

// Handle sets the offending handle
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// ValueKind sets the kind of the offending value
func (b *Builder) ValueKind(k string) *Builder {
	b.err.ValueKind = k
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
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

// Convenience constructors for common error patterns

// InvalidArg creates an invalid argument error
func InvalidArg(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArg,
		Status: StatusInvalidArg,
		Detail: detail,
	}
}

// InvalidHandle creates an error for a handle that is zero, stale or of
// the wrong kind
func InvalidHandle(phase Phase, handle uint32, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Status: StatusInvalidArg,
		Handle: handle,
		Detail: fmt.Sprintf("no live %s for handle", what),
	}
}

// Expected creates a type mismatch error with the matching "X expected"
// status
func Expected(phase Phase, status Status, got string) *Error {
	msg, _ := Message(status)
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Status:    status,
		ValueKind: got,
		Detail:    msg,
	}
}

// ScopeMismatch creates a handle scope misuse error
func ScopeMismatch(handle uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseScope,
		Kind:   KindScopeMismatch,
		Status: StatusHandleScopeMismatch,
		Handle: handle,
		Detail: detail,
	}
}

// EscapeTwice creates an error for a second escape from the same scope
func EscapeTwice(handle uint32) *Error {
	return &Error{
		Phase:  PhaseScope,
		Kind:   KindEscapeTwice,
		Status: StatusEscapeCalledTwice,
		Handle: handle,
	}
}

// RefCountUnderflow creates an error for unref on a reference with count 0
func RefCountUnderflow(handle uint32) *Error {
	return &Error{
		Phase:  PhaseReference,
		Kind:   KindRefCount,
		Status: StatusGenericFailure,
		Handle: handle,
		Detail: "reference count is already zero",
	}
}

// Closed creates an error for operations on a torn-down environment
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Status: StatusClosing,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Status: StatusInvalidArg,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Registration creates a host module registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates an addon loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
