package testresource

import (
	"sync"
	"sync/atomic"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
)

// mallocFreeAllocator is the root UpstreamAllocator: it satisfies requests
// directly from the Go heap rather than delegating to another instrumented
// resource. Go has no manually-freed heap allocation, so Allocate
// over-allocates a byte slice, carves an aligned interior pointer out of it
// with unsafe.Add, and pins the backing slice in a sync.Map keyed by that
// pointer's uintptr value until Deallocate removes the entry. Without the
// pin the garbage collector would be free to reclaim the slice the moment
// the last Go-visible reference to its head disappears, even though the
// interior pointer handed to the caller is still very much in use.
type mallocFreeAllocator struct {
	live sync.Map // uintptr -> []byte
}

func newMallocFreeAllocator() *mallocFreeAllocator {
	return &mallocFreeAllocator{}
}

func (a *mallocFreeAllocator) Allocate(size int, alignment uint) (unsafe.Pointer, error) {
	if size < 0 {
		return nil, cerrors.Newf("negative allocation size %d", size)
	}
	if alignment == 0 {
		alignment = 1
	}
	// backingLen must stay at least int(alignment): a zero-byte request
	// would otherwise make([]byte, 0), and Go's runtime hands out the same
	// shared pointer for every zero-length slice, aliasing every zero-size
	// allocation onto one live map entry.
	backingLen := size + int(alignment) - 1
	if backingLen < int(alignment) {
		backingLen = int(alignment)
	}
	backing := make([]byte, backingLen)
	base := unsafe.Pointer(unsafe.SliceData(backing))
	baseAddr := int(uintptr(base))
	alignedAddr := (baseAddr + int(alignment) - 1) & int(^(alignment - 1))
	aligned := unsafe.Add(base, alignedAddr-baseAddr)
	a.live.Store(uintptr(aligned), backing)
	return aligned, nil
}

func (a *mallocFreeAllocator) Deallocate(ptr unsafe.Pointer, _ int, _ uint) {
	a.live.Delete(uintptr(ptr))
}

func (a *mallocFreeAllocator) IsEqual(other UpstreamAllocator) bool {
	o, ok := other.(*mallocFreeAllocator)
	return ok && o == a
}

var rootAllocator atomic.Pointer[mallocFreeAllocator]
var rootAllocatorOnce sync.Once

// RootAllocator returns the process-wide "malloc/free" allocator: an
// immortal singleton, constructed on first use and never torn down,
// suitable as the default upstream for TestResource instances that have no
// more specific collaborator to delegate to.
func RootAllocator() UpstreamAllocator {
	rootAllocatorOnce.Do(func() {
		rootAllocator.Store(newMallocFreeAllocator())
	})
	return rootAllocator.Load()
}
