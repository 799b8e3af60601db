package testresource

import (
	"sync"
	"sync/atomic"

	"github.com/pmrtest/pmrtest/testresource/reporter"
)

// reporterHolder exists because atomic.Pointer's type parameter must be a
// concrete type, not an interface; it boxes the interface value so the
// process-wide default reporter can be swapped atomically.
type reporterHolder struct {
	r reporter.Reporter
}

var (
	defaultReporterOnce sync.Once
	defaultReporterPtr  atomic.Pointer[reporterHolder]
)

func initDefaultReporter() {
	defaultReporterOnce.Do(func() {
		defaultReporterPtr.Store(&reporterHolder{r: reporter.NewStreamReporter(nil)})
	})
}

// DefaultReporter returns the process-wide default reporter. It is
// constructed on first use as a console StreamReporter and, like the root
// allocator, never destroyed.
func DefaultReporter() reporter.Reporter {
	initDefaultReporter()
	return defaultReporterPtr.Load().r
}

// SetDefaultReporter installs r as the process-wide default. Passing nil
// restores the console stream reporter, matching
// set_default_reporter(nullptr)'s documented behavior.
func SetDefaultReporter(r reporter.Reporter) {
	initDefaultReporter()
	if r == nil {
		r = reporter.NewStreamReporter(nil)
	}
	defaultReporterPtr.Store(&reporterHolder{r: r})
}

type allocatorHolder struct {
	a UpstreamAllocator
}

var (
	defaultAllocatorOnce sync.Once
	defaultAllocatorPtr  atomic.Pointer[allocatorHolder]
)

func initDefaultAllocator() {
	defaultAllocatorOnce.Do(func() {
		defaultAllocatorPtr.Store(&allocatorHolder{a: RootAllocator()})
	})
}

// DefaultAllocator returns the process-wide default upstream allocator,
// initially the root malloc/free allocator.
func DefaultAllocator() UpstreamAllocator {
	initDefaultAllocator()
	return defaultAllocatorPtr.Load().a
}

// SetDefaultAllocator installs a as the process-wide default upstream
// allocator, returning the previous one so a caller (typically
// DefaultResourceGuard) can restore it later.
func SetDefaultAllocator(a UpstreamAllocator) UpstreamAllocator {
	initDefaultAllocator()
	previous := defaultAllocatorPtr.Load().a
	if a == nil {
		a = RootAllocator()
	}
	defaultAllocatorPtr.Store(&allocatorHolder{a: a})
	return previous
}
