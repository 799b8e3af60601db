// Package reporter defines the event sink a TestResource dispatches
// allocation, deallocation, and diagnostic events to, plus a handful of
// concrete sinks (text stream, file, JSON, and a discarding no-op).
package reporter

// Snapshot is a value copy of a resource's counters and last-operation
// state, taken under the resource's lock immediately before an event is
// dispatched. Reporters receive only this copy, never a reference to the
// resource itself, so there is no way for a reporter implementation to
// re-enter the resource's lock.
type Snapshot struct {
	Name string

	Allocations   int64
	Deallocations int64

	BlocksInUse int64
	MaxBlocks   int64
	TotalBlocks int64

	BoundsErrors   int64
	BadParamErrors int64
	Mismatches     int64

	BytesInUse int64
	MaxBytes   int64
	TotalBytes int64

	AllocationLimit int64
	NoAbort         bool
	Quiet           bool
	Verbose         bool

	LastAllocatedAddress   uintptr
	LastAllocatedBytes     int
	LastAllocatedAlignment uint

	LastDeallocatedAddress   uintptr
	LastDeallocatedBytes     int
	LastDeallocatedAlignment uint

	// LiveIndices lists the allocation index of every block still
	// registered, in registry (allocation) order. Only populated for Print.
	LiveIndices []int64
}

// Event carries the identity of the specific allocation or deallocation a
// reporter method concerns; Snapshot alone only has the last-operation
// fields, which Print and Release don't need and Allocation/Deallocation/
// InvalidBlock want addressed by the exact index involved.
type Event struct {
	Index     int64
	Address   uintptr
	Size      int
	Alignment uint
}

// InvalidBlockCause names why a deallocate-time check failed, so reporters
// can render a human-readable classification without recomputing it.
type InvalidBlockCause string

const (
	CauseWrongMagic      InvalidBlockCause = "wrong magic number"
	CausePreviouslyFreed InvalidBlockCause = "deallocating previously deallocated memory"
	CauseWrongOwner      InvalidBlockCause = "block does not belong to this resource"
	CauseSizeMismatch    InvalidBlockCause = "size does not match allocation"
	CauseAlignMismatch   InvalidBlockCause = "alignment does not match allocation"
	CauseUnderrun        InvalidBlockCause = "buffer underrun"
	CauseOverrun         InvalidBlockCause = "buffer overrun"
)

// InvalidBlockReport carries everything the stream reporter needs to render
// an invalid-block diagnostic.
type InvalidBlockReport struct {
	Event
	Causes   []InvalidBlockCause
	Underrun int
	Overrun  int
	// Header and User are raw byte views of the block's header+padding and
	// up to 64 bytes of its user region, for the side-by-side hex dump.
	Header []byte
	User   []byte
}

// Reporter is the abstract sink a TestResource dispatches structured events
// to. Implementations must not call back into the emitting resource; they
// are handed a Snapshot precisely so they cannot.
type Reporter interface {
	Allocation(s Snapshot, e Event)
	Deallocation(s Snapshot, e Event)
	Release(s Snapshot)
	InvalidBlock(s Snapshot, r InvalidBlockReport)
	Print(s Snapshot)
	Logf(format string, args ...any)
}

// NopReporter discards every event. Useful for tests that only care about
// counters, not reporter output.
type NopReporter struct{}

func (NopReporter) Allocation(Snapshot, Event)          {}
func (NopReporter) Deallocation(Snapshot, Event)        {}
func (NopReporter) Release(Snapshot)                    {}
func (NopReporter) InvalidBlock(Snapshot, InvalidBlockReport) {}
func (NopReporter) Print(Snapshot)                      {}
func (NopReporter) Logf(string, ...any)                 {}
