package testresource

import (
	cerrors "github.com/cockroachdb/errors"
)

// ErrOutOfMemory is the sentinel returned (wrapped, with the upstream
// allocator's error text in the message) when the upstream refused a request.
var ErrOutOfMemory = cerrors.New("upstream allocator refused the request")

// ErrInjectedFailure is the sentinel InjectedFailureError wraps, so callers
// can test for it with errors.Is without caring which resource or request
// triggered it.
var ErrInjectedFailure = cerrors.New("injected allocation failure")

// ErrBadAlignment is returned when an alignment argument is neither 0 nor a
// power of two in [1, 4096].
var ErrBadAlignment = cerrors.New("alignment must be a power of two no greater than 4096")

// InjectedFailureError is raised from Allocate when the allocation-limit
// countdown reaches zero, or when alignment validation fails in a context
// that callers expect to be interchangeable with the countdown (spec.md
// treats BAD_ALIGNMENT as carrying the same payload as INJECTED_FAILURE so
// that exception-safety test loops can handle both uniformly).
type InjectedFailureError struct {
	Resource  *TestResource
	Size      int
	Alignment uint
	cause     error
}

// Error implements the error interface.
func (e *InjectedFailureError) Error() string {
	return cerrors.Wrapf(e.cause, "injected failure for %d byte(s) aligned to %d", e.Size, e.Alignment).Error()
}

// Unwrap lets errors.Is(err, ErrInjectedFailure) and
// errors.Is(err, ErrBadAlignment) both succeed, matching spec.md §7's
// statement that BAD_ALIGNMENT is "surfaced as INJECTED_FAILURE style...
// because test code paths want it interchangeable."
func (e *InjectedFailureError) Unwrap() []error {
	return []error{ErrInjectedFailure, e.cause}
}

func newInjectedFailure(tr *TestResource, size int, alignment uint) *InjectedFailureError {
	return &InjectedFailureError{Resource: tr, Size: size, Alignment: alignment, cause: ErrInjectedFailure}
}

func newBadAlignment(tr *TestResource, size int, alignment uint) *InjectedFailureError {
	return &InjectedFailureError{Resource: tr, Size: size, Alignment: alignment, cause: ErrBadAlignment}
}

// cerrorsWrapOOM wraps ErrOutOfMemory with a message carrying the text of
// whatever error an UpstreamAllocator returned, so callers can
// errors.Is(err, ErrOutOfMemory) regardless of which upstream produced it.
// The upstream error itself is not part of the returned error's chain.
func cerrorsWrapOOM(cause error) error {
	return cerrors.Wrapf(ErrOutOfMemory, "upstream: %s", cause)
}
