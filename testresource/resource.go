package testresource

import (
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/exp/slog"

	"github.com/pmrtest/pmrtest/testresource/reporter"
)

// Reporter is an alias for reporter.Reporter, so callers configuring a
// TestResource via CreateOptions don't need a second import for the
// subpackage that owns the interface definition.
type Reporter = reporter.Reporter

// noCopy documents, the way the source's deleted copy constructor does
// explicitly, that a TestResource must never be copied: its address is its
// identity, and every live block's header stores that address as owner.
// go vet -copylocks already flags copies because of the embedded mutex;
// this type just makes the intent legible at the call site.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// TestResource is the instrumented polymorphic allocator: it wraps an
// UpstreamAllocator, tracks every live allocation in a registry, verifies
// canaries on every deallocate, and dispatches structured events to a
// Reporter. It is always constructed with New and referenced by pointer;
// two resources are equal iff they are the same object.
type TestResource struct {
	_ noCopy

	name     string
	upstream UpstreamAllocator
	reporter Reporter
	logger   *slog.Logger

	mu  sync.Mutex
	reg registry

	nextIndex atomic.Int64

	allocations   atomic.Int64
	deallocations atomic.Int64

	blocksInUse atomic.Int64
	maxBlocks   atomic.Int64
	totalBlocks atomic.Int64

	boundsErrors   atomic.Int64
	badParamErrors atomic.Int64
	mismatches     atomic.Int64

	bytesInUse atomic.Int64
	maxBytes   atomic.Int64
	totalBytes atomic.Int64

	allocationLimit atomic.Int64
	noAbort         atomic.Bool
	quiet           atomic.Bool
	verbose         atomic.Bool

	lastAllocatedAddress   atomic.Uint64
	lastAllocatedBytes     atomic.Int64
	lastAllocatedAlignment atomic.Uint64

	lastDeallocatedAddress   atomic.Uint64
	lastDeallocatedBytes     atomic.Int64
	lastDeallocatedAlignment atomic.Uint64
}

// New constructs a TestResource. Every field of options is optional: an
// absent Upstream, Reporter, or Logger falls back to the process-wide
// default allocator, default reporter, and slog.Default() respectively.
// This single constructor stands in for the source's nine overloaded
// constructors (every combination of name/verbose/upstream/reporter).
func New(options CreateOptions) (*TestResource, error) {
	upstream := options.Upstream
	if upstream == nil {
		upstream = DefaultAllocator()
	}
	rep := options.Reporter
	if rep == nil {
		rep = DefaultReporter()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tr := &TestResource{
		name:     options.Name,
		upstream: upstream,
		reporter: rep,
		logger:   logger,
	}
	tr.allocationLimit.Store(-1)
	tr.verbose.Store(options.Flags&ResourceVerbose != 0)
	tr.quiet.Store(options.Flags&ResourceQuiet != 0)
	tr.noAbort.Store(options.Flags&ResourceNoAbort != 0)

	GlobalDirectory().Register(tr)
	return tr, nil
}

// Name returns the resource's immutable name.
func (tr *TestResource) Name() string { return tr.name }

// IsEqual reports instance identity, never structural equality: two
// resources compare equal iff they are the same object. This also makes
// TestResource satisfy UpstreamAllocator, so one instrumented resource can
// sit upstream of another.
func (tr *TestResource) IsEqual(other UpstreamAllocator) bool {
	o, ok := other.(*TestResource)
	return ok && o == tr
}

func (tr *TestResource) effectiveNoAbort() bool {
	return tr.quiet.Load() || tr.noAbort.Load()
}

func atomicMaxInt64(a *atomic.Int64, val int64) {
	for {
		cur := a.Load()
		if cur >= val {
			return
		}
		if a.CompareAndSwap(cur, val) {
			return
		}
	}
}

// Allocate implements spec's allocate(size, align): allocation-limit
// countdown, alignment normalization, upstream request for the outer
// buffer, header/canary population, registry insertion, and counter
// maintenance, all under the resource's lock.
func (tr *TestResource) Allocate(size int, alignment uint) (unsafe.Pointer, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	index := tr.nextIndex.Add(1) - 1
	tr.allocations.Add(1)

	if limit := tr.allocationLimit.Load(); limit >= 0 {
		if tr.allocationLimit.Add(-1) < 0 {
			return nil, newInjectedFailure(tr, size, alignment)
		}
	}

	normalizedAlign, err := normalizeAlignment(size, alignment)
	if err != nil {
		return nil, newBadAlignment(tr, size, alignment)
	}

	hsz := headerSize(normalizedAlign)
	outer, err := tr.upstream.Allocate(outerSize(size, normalizedAlign), normalizedAlign)
	if err != nil {
		return nil, cerrorsWrapOOM(err)
	}

	node, err := tr.reg.pushBack(index, tr.upstream)
	if err != nil {
		tr.upstream.Deallocate(outer, outerSize(size, normalizedAlign), normalizedAlign)
		return nil, err
	}
	node.outer = outer

	fillCanaries(outer, hsz, size, blockHeader{
		magic:     magicAllocated,
		bytes:     size,
		alignment: normalizedAlign,
		index:     index,
		node:      node,
		owner:     tr,
	})

	user := userPointer(outer, hsz)

	blocksInUse := tr.blocksInUse.Add(1)
	atomicMaxInt64(&tr.maxBlocks, blocksInUse)
	tr.totalBlocks.Add(1)

	bytesInUse := tr.bytesInUse.Add(int64(size))
	atomicMaxInt64(&tr.maxBytes, bytesInUse)
	tr.totalBytes.Add(int64(size))

	tr.lastAllocatedAddress.Store(uint64(uintptr(user)))
	tr.lastAllocatedBytes.Store(int64(size))
	tr.lastAllocatedAlignment.Store(uint64(normalizedAlign))

	if tr.verbose.Load() {
		tr.reporter.Allocation(tr.snapshot(), reporter.Event{
			Index: index, Address: uintptr(user), Size: size, Alignment: normalizedAlign,
		})
		tr.logger.Debug("testresource: allocate", "resource", tr.name, "index", index, "size", size, "alignment", normalizedAlign)
	}

	return user, nil
}

// Deallocate implements spec's deallocate(ptr, size, align): null handling,
// alignment normalization, canary verification, and the quiet/no-abort
// policy matrix. Unlike UpstreamAllocator.Deallocate on a plain allocator,
// a bad alignment argument here is itself a detected condition (counted as
// a bad-param error) rather than a propagated error, since this method's
// signature is fixed by the UpstreamAllocator contract it also implements.
func (tr *TestResource) Deallocate(ptr unsafe.Pointer, size int, alignment uint) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.deallocations.Add(1)
	tr.lastDeallocatedAddress.Store(uint64(uintptr(ptr)))

	if ptr == nil {
		if size != 0 {
			tr.badParamErrors.Add(1)
			if !tr.quiet.Load() {
				tr.reportInvalidNullFree(size, alignment)
			}
			return
		}
		tr.lastDeallocatedBytes.Store(0)
		tr.lastDeallocatedAlignment.Store(uint64(alignment))
		return
	}

	normalizedAlign, err := normalizeAlignment(size, alignment)
	if err != nil {
		tr.badParamErrors.Add(1)

		if tr.quiet.Load() {
			return
		}

		tr.reportInvalidBlock(uintptr(ptr), 0, size, alignment, 0, 0, []reporter.InvalidBlockCause{reporter.CauseAlignMismatch}, nil, nil)

		if !tr.noAbort.Load() {
			os.Exit(2)
		}
		return
	}

	hsz := headerSize(normalizedAlign)
	outer := outerPointer(ptr, hsz)
	result := verifyBlock(outer, hsz, tr, size, normalizedAlign)

	if result.misc || result.param || result.underrun != 0 || result.overrun != 0 {
		if result.misc {
			tr.mismatches.Add(1)
		}
		if result.param {
			tr.badParamErrors.Add(1)
		}
		if result.underrun != 0 || result.overrun != 0 {
			tr.boundsErrors.Add(1)
		}

		if tr.quiet.Load() {
			return
		}

		causes := classifyInvalidBlock(outer, tr, result, size, normalizedAlign)
		headerBytes, userBytes := blockDumpRegions(outer, hsz, result.recordedBytes, size)
		tr.reportInvalidBlock(uintptr(ptr), result.recordedIndex, size, alignment, result.underrun, result.overrun, causes, headerBytes, userBytes)

		if !tr.noAbort.Load() {
			os.Exit(2)
		}
		return
	}

	tr.reg.remove(result.node)
	tr.upstream.Deallocate(unsafe.Pointer(result.node), int(unsafe.Sizeof(registryNode{})), uint(unsafe.Alignof(registryNode{})))

	tr.lastDeallocatedBytes.Store(int64(result.recordedBytes))
	tr.lastDeallocatedAlignment.Store(uint64(normalizedAlign))

	tr.blocksInUse.Add(-1)
	tr.bytesInUse.Add(-int64(result.recordedBytes))

	markDeallocated(outer, hsz, result.recordedBytes)

	if tr.verbose.Load() {
		tr.reporter.Deallocation(tr.snapshot(), reporter.Event{
			Index: result.recordedIndex, Address: uintptr(ptr), Size: result.recordedBytes, Alignment: normalizedAlign,
		})
		tr.logger.Debug("testresource: deallocate", "resource", tr.name, "index", result.recordedIndex, "size", result.recordedBytes)
	}

	tr.upstream.Deallocate(outer, outerSize(result.recordedBytes, normalizedAlign), normalizedAlign)
}

func classifyInvalidBlock(outer unsafe.Pointer, owner *TestResource, r verifyResult, callerBytes int, callerAlign uint) []reporter.InvalidBlockCause {
	var causes []reporter.InvalidBlockCause
	if r.misc {
		h := headerAt(outer)
		switch {
		case h.magic == magicDeallocated:
			causes = append(causes, reporter.CausePreviouslyFreed)
		case h.magic != magicAllocated:
			causes = append(causes, reporter.CauseWrongMagic)
		case h.owner != owner:
			causes = append(causes, reporter.CauseWrongOwner)
		}
		return causes
	}
	if r.param {
		if callerBytes != r.recordedBytes {
			causes = append(causes, reporter.CauseSizeMismatch)
		}
		if callerAlign != r.recordedAlign {
			causes = append(causes, reporter.CauseAlignMismatch)
		}
	}
	if r.underrun != 0 {
		causes = append(causes, reporter.CauseUnderrun)
	}
	if r.overrun != 0 {
		causes = append(causes, reporter.CauseOverrun)
	}
	return causes
}

// blockDumpRegions extracts up to the header+padding and 64 bytes of user
// region for the invalid-block hex dump. It defends against a header whose
// recorded size looks implausible (a hallmark of exactly the corruption
// being reported) by falling back to the caller-supplied size.
func blockDumpRegions(outer unsafe.Pointer, hsz, recordedBytes, callerBytes int) (header, user []byte) {
	size := recordedBytes
	if size < 0 || size > 1<<30 {
		size = callerBytes
	}
	total := hsz + size + postPad
	buf := unsafe.Slice((*byte)(outer), total)
	header = append([]byte(nil), buf[:hsz]...)
	userLen := size
	if userLen > 64 {
		userLen = 64
	}
	user = append([]byte(nil), buf[hsz:hsz+userLen]...)
	return header, user
}

func (tr *TestResource) reportInvalidNullFree(size int, alignment uint) {
	tr.reporter.Logf("%s: freeing a nil pointer with non-zero size (%d) and alignment (%d)", nameForLog(tr.name), size, alignment)
	if !tr.effectiveNoAbort() {
		os.Exit(2)
	}
}

func (tr *TestResource) reportInvalidBlock(address uintptr, index int64, size int, alignment uint, underrun, overrun int, causes []reporter.InvalidBlockCause, header, user []byte) {
	tr.reporter.InvalidBlock(tr.snapshot(), reporter.InvalidBlockReport{
		Event:    reporter.Event{Index: index, Address: address, Size: size, Alignment: alignment},
		Causes:   causes,
		Underrun: underrun,
		Overrun:  overrun,
		Header:   header,
		User:     user,
	})
}

func nameForLog(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}

// Release implements spec's release: print state if verbose, clear the
// registry (returning every node to upstream without touching the leaked
// user buffers), then emit the release event unless quiet. The
// leak-triggers-abort behavior itself is the stream reporter's
// responsibility (it inspects the snapshot it's handed), the same
// separation the source keeps between test_resource::release and
// stream_test_resource_reporter::do_report_release.
func (tr *TestResource) Release() {
	GlobalDirectory().Unregister(tr)

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.verbose.Load() {
		tr.reporter.Print(tr.snapshotWithLiveIndicesLocked())
	}

	tr.reg.clear(tr.upstream)

	if !tr.quiet.Load() {
		tr.reporter.Release(tr.snapshot())
	}
}

// Status reports 0 if there are no errors and no live allocations, -1 if
// there are live allocations but no errors, or the total error count
// otherwise.
func (tr *TestResource) Status() int64 {
	numErrors := tr.mismatches.Load() + tr.boundsErrors.Load() + tr.badParamErrors.Load()
	if numErrors > 0 {
		return numErrors
	}
	if tr.HasAllocations() {
		return -1
	}
	return 0
}

func (tr *TestResource) HasAllocations() bool {
	return tr.blocksInUse.Load() > 0 || tr.bytesInUse.Load() > 0
}

func (tr *TestResource) HasErrors() bool {
	return tr.mismatches.Load()+tr.boundsErrors.Load()+tr.badParamErrors.Load() > 0
}

func (tr *TestResource) Allocations() int64        { return tr.allocations.Load() }
func (tr *TestResource) Deallocations() int64      { return tr.deallocations.Load() }
func (tr *TestResource) BlocksInUse() int64        { return tr.blocksInUse.Load() }
func (tr *TestResource) MaxBlocks() int64          { return tr.maxBlocks.Load() }
func (tr *TestResource) TotalBlocks() int64        { return tr.totalBlocks.Load() }
func (tr *TestResource) BoundsErrors() int64       { return tr.boundsErrors.Load() }
func (tr *TestResource) BadParamErrors() int64     { return tr.badParamErrors.Load() }
func (tr *TestResource) Mismatches() int64         { return tr.mismatches.Load() }
func (tr *TestResource) BytesInUse() int64         { return tr.bytesInUse.Load() }
func (tr *TestResource) MaxBytes() int64           { return tr.maxBytes.Load() }
func (tr *TestResource) TotalBytes() int64         { return tr.totalBytes.Load() }
func (tr *TestResource) AllocationLimit() int64    { return tr.allocationLimit.Load() }
func (tr *TestResource) IsNoAbort() bool           { return tr.noAbort.Load() }
func (tr *TestResource) IsQuiet() bool             { return tr.quiet.Load() }
func (tr *TestResource) IsVerbose() bool           { return tr.verbose.Load() }

func (tr *TestResource) LastAllocatedAddress() uintptr   { return uintptr(tr.lastAllocatedAddress.Load()) }
func (tr *TestResource) LastAllocatedBytes() int64       { return tr.lastAllocatedBytes.Load() }
func (tr *TestResource) LastAllocatedAlignment() uint    { return uint(tr.lastAllocatedAlignment.Load()) }
func (tr *TestResource) LastDeallocatedAddress() uintptr { return uintptr(tr.lastDeallocatedAddress.Load()) }
func (tr *TestResource) LastDeallocatedBytes() int64     { return tr.lastDeallocatedBytes.Load() }
func (tr *TestResource) LastDeallocatedAlignment() uint  { return uint(tr.lastDeallocatedAlignment.Load()) }

func (tr *TestResource) SetVerbose(v bool)              { tr.verbose.Store(v) }
func (tr *TestResource) SetQuiet(v bool)                { tr.quiet.Store(v) }
func (tr *TestResource) SetNoAbort(v bool)              { tr.noAbort.Store(v) }
func (tr *TestResource) SetAllocationLimit(limit int64) { tr.allocationLimit.Store(limit) }

func (tr *TestResource) snapshot() reporter.Snapshot {
	return reporter.Snapshot{
		Name:                     tr.name,
		Allocations:              tr.allocations.Load(),
		Deallocations:            tr.deallocations.Load(),
		BlocksInUse:              tr.blocksInUse.Load(),
		MaxBlocks:                tr.maxBlocks.Load(),
		TotalBlocks:              tr.totalBlocks.Load(),
		BoundsErrors:             tr.boundsErrors.Load(),
		BadParamErrors:           tr.badParamErrors.Load(),
		Mismatches:               tr.mismatches.Load(),
		BytesInUse:               tr.bytesInUse.Load(),
		MaxBytes:                 tr.maxBytes.Load(),
		TotalBytes:               tr.totalBytes.Load(),
		AllocationLimit:          tr.allocationLimit.Load(),
		NoAbort:                  tr.effectiveNoAbort(),
		Quiet:                    tr.quiet.Load(),
		Verbose:                  tr.verbose.Load(),
		LastAllocatedAddress:     uintptr(tr.lastAllocatedAddress.Load()),
		LastAllocatedBytes:       int(tr.lastAllocatedBytes.Load()),
		LastAllocatedAlignment:   uint(tr.lastAllocatedAlignment.Load()),
		LastDeallocatedAddress:   uintptr(tr.lastDeallocatedAddress.Load()),
		LastDeallocatedBytes:     int(tr.lastDeallocatedBytes.Load()),
		LastDeallocatedAlignment: uint(tr.lastDeallocatedAlignment.Load()),
	}
}

// DebugCheckCanaries re-verifies every currently live block's header and
// pad regions in place, without freeing anything, so a caller can catch a
// stray overrun before the block it belongs to is ever deallocated. It is a
// no-op returning nil unless this module is built with the
// debug_testresource build tag; see canary_scan_debug.go and
// canary_scan_prod.go.
func (tr *TestResource) DebugCheckCanaries() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return debugScanCanaries(tr)
}

// snapshotWithLiveIndicesLocked additionally walks the registry for Print's
// wrap-every-8 live-index listing. Must be called with tr.mu held.
func (tr *TestResource) snapshotWithLiveIndicesLocked() reporter.Snapshot {
	s := tr.snapshot()
	for node := tr.reg.head; node != nil; node = node.next {
		s.LiveIndices = append(s.LiveIndices, node.index)
	}
	return s
}
