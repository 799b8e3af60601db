package testresource_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmrtest/pmrtest/testresource"
	"github.com/pmrtest/pmrtest/testresource/reporter"
)

// recordingReporter implements reporter.Reporter and records every call, so
// tests can assert on exactly what a resource reported without scraping
// formatted text.
type recordingReporter struct {
	allocations   []reporter.Event
	deallocations []reporter.Event
	releases      []reporter.Snapshot
	invalidBlocks []reporter.InvalidBlockReport
	prints        []reporter.Snapshot
	logs          []string
}

func (r *recordingReporter) Allocation(_ reporter.Snapshot, e reporter.Event) {
	r.allocations = append(r.allocations, e)
}
func (r *recordingReporter) Deallocation(_ reporter.Snapshot, e reporter.Event) {
	r.deallocations = append(r.deallocations, e)
}
func (r *recordingReporter) Release(s reporter.Snapshot) { r.releases = append(r.releases, s) }
func (r *recordingReporter) InvalidBlock(_ reporter.Snapshot, rep reporter.InvalidBlockReport) {
	r.invalidBlocks = append(r.invalidBlocks, rep)
}
func (r *recordingReporter) Print(s reporter.Snapshot) { r.prints = append(r.prints, s) }
func (r *recordingReporter) Logf(format string, args ...any) {
	r.logs = append(r.logs, format)
}

func newResource(t *testing.T, flags testresource.ResourceFlags) (*testresource.TestResource, *recordingReporter) {
	t.Helper()
	rep := &recordingReporter{}
	tr, err := testresource.New(testresource.CreateOptions{
		Name:     t.Name(),
		Reporter: rep,
		Flags:    flags | testresource.ResourceVerbose,
	})
	require.NoError(t, err)
	return tr, rep
}

func TestAllocateDeallocateRoundTrip(t *testing.T) {
	tr, rep := newResource(t, 0)

	ptr, err := tr.Allocate(64, 8)
	require.NoError(t, err)
	require.NotNil(t, ptr)

	require.EqualValues(t, 1, tr.BlocksInUse())
	require.EqualValues(t, 64, tr.BytesInUse())
	require.EqualValues(t, 1, tr.Allocations())
	require.Len(t, rep.allocations, 1)

	tr.Deallocate(ptr, 64, 8)

	require.EqualValues(t, 0, tr.BlocksInUse())
	require.EqualValues(t, 0, tr.BytesInUse())
	require.EqualValues(t, 1, tr.Deallocations())
	require.Len(t, rep.deallocations, 1)
	require.Zero(t, tr.Status())
	require.False(t, tr.HasErrors())
}

func TestMaxCountersTrackPeakNotCurrent(t *testing.T) {
	tr, _ := newResource(t, 0)

	p1, err := tr.Allocate(10, 0)
	require.NoError(t, err)
	_, err = tr.Allocate(10, 0)
	require.NoError(t, err)

	require.EqualValues(t, 2, tr.MaxBlocks())
	tr.Deallocate(p1, 10, 0)
	require.EqualValues(t, 1, tr.BlocksInUse())
	require.EqualValues(t, 2, tr.MaxBlocks(), "max must not decay when in-use count drops")
	require.EqualValues(t, 2, tr.TotalBlocks())
}

func TestLeakDetectedAtReleaseWithNoAbort(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceNoAbort)

	_, err := tr.Allocate(32, 0)
	require.NoError(t, err)

	require.EqualValues(t, -1, tr.Status())
	require.True(t, tr.HasAllocations())

	tr.Release()

	require.Len(t, rep.releases, 1)
	require.EqualValues(t, 1, rep.releases[0].BlocksInUse)
	require.True(t, rep.releases[0].NoAbort)
}

func TestDoubleFreeDetected(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceNoAbort)

	ptr, err := tr.Allocate(16, 0)
	require.NoError(t, err)

	tr.Deallocate(ptr, 16, 0)
	require.Zero(t, tr.Mismatches())

	tr.Deallocate(ptr, 16, 0)
	require.EqualValues(t, 1, tr.Mismatches())
	require.Len(t, rep.invalidBlocks, 1)
	require.Contains(t, rep.invalidBlocks[0].Causes, reporter.CausePreviouslyFreed)
}

func TestWrongSizeFreeDetected(t *testing.T) {
	tr, _ := newResource(t, testresource.ResourceNoAbort)

	ptr, err := tr.Allocate(16, 0)
	require.NoError(t, err)

	tr.Deallocate(ptr, 8, 0)
	require.EqualValues(t, 1, tr.BadParamErrors())
	require.Zero(t, tr.BoundsErrors())
}

// TestBadAlignmentArgumentOnDeallocateIsQuietAndNoAbortGated exercises the
// normalizeAlignment failure branch of Deallocate (a non-power-of-two or
// too-large alignment argument, not merely one that disagrees with the
// block's recorded alignment): it must count the same as any other
// bad-param condition and respect the quiet/no-abort policy matrix the
// corruption branch below it already does.
func TestBadAlignmentArgumentOnDeallocateIsQuietAndNoAbortGated(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceNoAbort)

	ptr, err := tr.Allocate(16, 0)
	require.NoError(t, err)

	tr.Deallocate(ptr, 16, 3)
	require.EqualValues(t, 1, tr.BadParamErrors())
	require.Zero(t, tr.BoundsErrors())
	require.Len(t, rep.invalidBlocks, 1)
	require.Contains(t, rep.invalidBlocks[0].Causes, reporter.CauseAlignMismatch)
}

func TestBadAlignmentArgumentOnDeallocateQuietSuppressesReport(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceQuiet)

	ptr, err := tr.Allocate(16, 0)
	require.NoError(t, err)

	tr.Deallocate(ptr, 16, 8192)
	require.EqualValues(t, 1, tr.BadParamErrors())
	require.Empty(t, rep.invalidBlocks)
}

// TestInconsistentAlignmentFreeWithinCacheLine exercises the scenario the
// distilled test-property narrative describes as producing both a bounds
// error and a bad-param error: allocating at alignment 1 and freeing at
// alignment 2. Both alignments collapse to the same header size (every
// alignment <= the natural alignment does), so there is no header
// mislocation and therefore no bounds error — only the independent
// size/alignment check fires. See DESIGN.md for the full trace against the
// reference algorithm.
func TestInconsistentAlignmentFreeWithinCacheLine(t *testing.T) {
	tr, _ := newResource(t, testresource.ResourceNoAbort)

	ptr, err := tr.Allocate(16, 1)
	require.NoError(t, err)

	tr.Deallocate(ptr, 16, 2)
	require.EqualValues(t, 1, tr.BadParamErrors())
	require.EqualValues(t, 0, tr.BoundsErrors())
}

// When the two alignments genuinely produce different header sizes (one
// divides the raw 64-byte header size, one exceeds it), the free-time code
// computes the header location from the wrong offset entirely. What it
// finds there is unrelated memory, not a predictable pattern, so unlike the
// within-cache-line case this is deliberately left untested here: the
// resource still treats a wrong magic number as a hard mismatch (see
// TestDoubleFreeDetected / TestCrossAllocatorFreeDetected for that path),
// it just isn't a case this suite can assert exact counters for without
// hand-constructing a corrupted header, which classifyInvalidBlock's own
// misc-vs-param-vs-bounds ordering already gives good coverage of.

func TestCrossAllocatorFreeDetected(t *testing.T) {
	a, _ := newResource(t, testresource.ResourceNoAbort)
	b, _ := newResource(t, testresource.ResourceNoAbort)

	ptr, err := a.Allocate(16, 0)
	require.NoError(t, err)

	b.Deallocate(ptr, 16, 0)
	require.EqualValues(t, 1, b.Mismatches())
	require.Zero(t, a.Mismatches())
}

func TestAllocationLimitInjectsFailure(t *testing.T) {
	tr, _ := newResource(t, 0)

	tr.SetAllocationLimit(0)
	_, err := tr.Allocate(16, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, testresource.ErrInjectedFailure))

	var injected *testresource.InjectedFailureError
	require.True(t, errors.As(err, &injected))
	require.Same(t, tr, injected.Resource)
}

func TestAllocationLimitCountsDownAcrossCalls(t *testing.T) {
	tr, _ := newResource(t, 0)

	tr.SetAllocationLimit(1)
	_, err := tr.Allocate(8, 0)
	require.NoError(t, err)

	_, err = tr.Allocate(8, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, testresource.ErrInjectedFailure))
}

func TestBadAlignmentOnAllocateReturnsErrBadAlignment(t *testing.T) {
	tr, _ := newResource(t, 0)

	_, err := tr.Allocate(16, 3)
	require.True(t, errors.Is(err, testresource.ErrBadAlignment))
}

func TestNilDeallocateWithZeroSizeIsSilent(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceNoAbort)

	tr.Deallocate(nil, 0, 0)
	require.Zero(t, tr.BadParamErrors())
	require.Empty(t, rep.invalidBlocks)
}

func TestNilDeallocateWithNonZeroSizeIsBadParam(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceNoAbort)

	tr.Deallocate(nil, 16, 0)
	require.EqualValues(t, 1, tr.BadParamErrors())
	require.NotEmpty(t, rep.logs)
}

func TestNilDeallocateWithNonZeroSizeQuietSuppressesLog(t *testing.T) {
	tr, rep := newResource(t, testresource.ResourceQuiet)

	tr.Deallocate(nil, 16, 0)
	require.EqualValues(t, 1, tr.BadParamErrors())
	require.Empty(t, rep.logs)
}

func TestIsEqualIsIdentityNotStructural(t *testing.T) {
	a, _ := newResource(t, 0)
	b, _ := newResource(t, 0)

	require.True(t, a.IsEqual(a))
	require.False(t, a.IsEqual(b))
	var other testresource.UpstreamAllocator = testresource.RootAllocator()
	require.False(t, a.IsEqual(other))
}

func TestResourceComposesAsUpstream(t *testing.T) {
	outer, err := testresource.New(testresource.CreateOptions{Name: "outer"})
	require.NoError(t, err)
	inner, err := testresource.New(testresource.CreateOptions{Name: "inner", Upstream: outer})
	require.NoError(t, err)

	ptr, err := inner.Allocate(16, 0)
	require.NoError(t, err)
	// inner's upstream request and its registry-node allocation both land on
	// outer, so one inner allocation is visible as two outer allocations.
	require.EqualValues(t, 2, outer.BlocksInUse())

	inner.Deallocate(ptr, 16, 0)
	require.EqualValues(t, 0, outer.BlocksInUse())
}
