// Package testresource implements an instrumented polymorphic memory
// allocator intended for test environments. It wraps an upstream allocator
// and records bookkeeping sufficient to detect, at deallocation time, memory
// leaks, double-frees, buffer under/over-runs, mismatched size/alignment
// arguments, and cross-allocator frees.
package testresource

import (
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
)

// maxNaturalAlignment mirrors C's max_align_t: the alignment guaranteed to
// be sufficient for any scalar type on typical 64-bit targets. It is fixed
// per build, exactly as spec.md requires of the post-pad size.
const maxNaturalAlignment uint = 16

// postPad is the number of canary bytes written immediately after the user
// segment of every block, regardless of alignment.
const postPad = int(maxNaturalAlignment)

// UpstreamAllocator is the contract this package assumes of whatever sits
// beneath a TestResource. It is treated as an external collaborator: only
// its allocate/deallocate/equality contract is relied upon, never its
// internals.
type UpstreamAllocator interface {
	// Allocate returns a pointer to a region of at least size bytes, aligned
	// to alignment (a power of two), or an error if the request cannot be
	// satisfied.
	Allocate(size int, alignment uint) (unsafe.Pointer, error)
	// Deallocate returns a block previously obtained from Allocate with the
	// same size and alignment back to the allocator.
	Deallocate(ptr unsafe.Pointer, size int, alignment uint)
	// IsEqual reports whether other refers to the same underlying resource
	// as this allocator. Implementations must use identity, never
	// structural comparison.
	IsEqual(other UpstreamAllocator) bool
}

// PowerOfTwoError is returned by CheckPow2 when the tested value is not a
// power of two.
var PowerOfTwoError error = cerrors.New("value must be a power of two")

// CheckPow2 returns PowerOfTwoError (wrapped with name and value) if number
// is not a power of two.
func CheckPow2(number uint, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func isPowerOfTwo(value uint) bool {
	return value != 0 && value&(value-1) == 0
}
