// Package wterr defines the error kinds surfaced across the worktree engine.
//
// Grounded on gitvista/internal/gitcore/worktree_diff.go, which pairs a
// sentinel error with errors.Is instead of inspecting an error string; this
// generalizes that idiom into a small set of comparable kinds so callers can
// still use the standard errors.Is/errors.As machinery.
package wterr

import "fmt"

// Kind identifies the category of a worktree engine error.
type Kind int

const (
	// Unknown is the zero value; never returned by engine functions.
	Unknown Kind = iota
	// NotFound indicates a referenced entry, id, or repository does not exist.
	NotFound
	// AlreadyExists indicates a mutation collided with an existing entry.
	AlreadyExists
	// InvalidPath indicates a path argument was empty, malformed, or would
	// introduce a cycle.
	InvalidPath
	// IoFailure indicates a filesystem collaborator call failed.
	IoFailure
	// PermissionDenied indicates a filesystem call failed due to permissions.
	PermissionDenied
	// Cancelled indicates the engine (or the mutation's context) was
	// cancelled before the operation completed.
	Cancelled
	// VcsFailure indicates the VCS collaborator failed to answer a query.
	VcsFailure
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case InvalidPath:
		return "invalid_path"
	case IoFailure:
		return "io_failure"
	case PermissionDenied:
		return "permission_denied"
	case Cancelled:
		return "cancelled"
	case VcsFailure:
		return "vcs_failure"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with an engine error Kind.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind that wraps cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

// Kind returns the error's Kind.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is(err, target) match by kind when the target is itself an
// *Error; any other target does not match. To test an error against a bare
// Kind, use the package-level Is below.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.kind == kind
	}
	return false
}

// as is a tiny local errors.As to avoid importing errors solely for this.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
