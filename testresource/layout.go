package testresource

import (
	"math/bits"
	"unsafe"

	cerrors "github.com/cockroachdb/errors"
)

// padByte fills every header-pad and post-pad byte on allocation; any other
// value found there at deallocate time is an overrun or underrun.
const padByte byte = 0xB1

// scribbleByte overwrites the user region of a block on a clean deallocate,
// so that use-after-free reads come back visibly garbage.
const scribbleByte byte = 0xA5

const (
	magicAllocated   uint32 = 0xDEADBEEF
	magicDeallocated uint32 = 0xDEADF00D
)

// blockHeader sits at the start of every outer buffer. Its layout is
// arranged so that, on a 64-bit target, sizeof(blockHeader) is exactly 64
// bytes: the scalar fields fill the first 48, and the trailing pad array
// occupies the last maxNaturalAlignment bytes. That trailing array is what
// the backward underrun scan walks into, and it is also the region that
// absorbs any extra rounding a larger alignment demands.
type blockHeader struct {
	magic     uint32
	bytes     int
	alignment uint
	index     int64
	node      *registryNode
	owner     *TestResource
	pad       [maxNaturalAlignment]byte
}

// rawHeaderSize is sizeof(blockHeader) on this platform; headerSize derives
// every alignment's actual header size by rounding this up.
const rawHeaderSize = int(unsafe.Sizeof(blockHeader{}))

// headerCoreSize is the offset of the pad field within blockHeader: the
// boundary the backward underrun scan stops at once headerSize(alignment)
// collapses to rawHeaderSize.
const headerCoreSize = rawHeaderSize - postPad

// maxAlignment is the largest alignment the layout module will service.
const maxAlignment uint = 4096

var headerSizeTable [13]int

func init() {
	for exp := 0; exp <= 12; exp++ {
		a := maxUint(uint(1)<<uint(exp), maxNaturalAlignment)
		headerSizeTable[exp] = (rawHeaderSize + int(a) - 1) & int(^(a - 1))
	}
}

func maxUint(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

// headerSize returns the number of bytes reserved for the header ahead of
// the user segment for the given (already validated, power-of-two) alignment.
func headerSize(alignment uint) int {
	return headerSizeTable[bits.TrailingZeros(alignment)]
}

// naturalAlignment returns the greatest power of two dividing bytes, capped
// at maxNaturalAlignment; bytes <= 0 is treated as divisible by every power
// of two, so it is capped outright.
func naturalAlignment(bytes int) uint {
	if bytes <= 0 {
		return maxNaturalAlignment
	}
	u := uint(bytes)
	lowBit := u & -u
	if lowBit == 0 || lowBit > maxNaturalAlignment {
		return maxNaturalAlignment
	}
	return lowBit
}

// normalizeAlignment implements spec's alignment discipline: zero means
// "natural alignment for bytes"; anything else must be a power of two no
// greater than maxAlignment, or ErrBadAlignment.
func normalizeAlignment(bytes int, alignment uint) (uint, error) {
	if alignment == 0 {
		return naturalAlignment(bytes), nil
	}
	if !isPowerOfTwo(alignment) || alignment > maxAlignment {
		return 0, cerrors.Wrapf(ErrBadAlignment, "alignment %d", alignment)
	}
	return alignment, nil
}

// outerSize is the total byte count an allocation of bytes at alignment
// consumes from the upstream allocator: header, user segment, post-pad.
func outerSize(bytes int, alignment uint) int {
	return headerSize(alignment) + bytes + postPad
}

func headerAt(outer unsafe.Pointer) *blockHeader {
	return (*blockHeader)(outer)
}

func userPointer(outer unsafe.Pointer, hsz int) unsafe.Pointer {
	return unsafe.Add(outer, hsz)
}

func outerPointer(user unsafe.Pointer, hsz int) unsafe.Pointer {
	return unsafe.Add(user, -hsz)
}

// fillCanaries writes the header (sans pad-region contents, which are set
// to padByte here rather than left zero) and stamps both pad regions with
// padByte. Called once, right after the upstream allocation succeeds.
func fillCanaries(outer unsafe.Pointer, hsz, bytes int, h blockHeader) {
	*headerAt(outer) = h
	buf := unsafe.Slice((*byte)(outer), hsz+bytes+postPad)
	for i := headerCoreSize; i < hsz; i++ {
		buf[i] = padByte
	}
	for i := hsz + bytes; i < hsz+bytes+postPad; i++ {
		buf[i] = padByte
	}
}

// verifyResult is what verifyBlock reports back to the caller in resource.go.
// underrun and overrun are 0 when clean, otherwise the 1-based distance from
// the user pointer (matching the convention original_source's scan loops use,
// so the reported offset is the nearest trashed byte to the user segment).
type verifyResult struct {
	misc, param   bool
	underrun      int
	overrun       int
	recordedBytes int
	recordedAlign uint
	recordedIndex int64
	node          *registryNode
}

// verifyBlock implements spec's canary-verification algorithm exactly: read
// the magic first, since a misaligned or bogus pointer must not have its
// other header fields dereferenced; only scan pad regions once magic is
// valid and owner matches.
func verifyBlock(outer unsafe.Pointer, hsz int, owner *TestResource, callerBytes int, callerAlignment uint) verifyResult {
	h := headerAt(outer)

	if h.magic != magicAllocated || h.owner != owner {
		return verifyResult{misc: true}
	}

	result := verifyResult{
		recordedBytes: h.bytes,
		recordedAlign: h.alignment,
		recordedIndex: h.index,
		node:          h.node,
	}

	buf := unsafe.Slice((*byte)(outer), hsz+h.bytes+postPad)

	for i := hsz - 1; i >= headerCoreSize; i-- {
		if buf[i] != padByte {
			result.underrun = hsz - i
			break
		}
	}

	if result.underrun == 0 {
		start := hsz + h.bytes
		for i := start; i < start+postPad; i++ {
			if buf[i] != padByte {
				result.overrun = i - start + 1
				break
			}
		}
	}

	if callerBytes != h.bytes || callerAlignment != h.alignment {
		result.param = true
	}

	return result
}

// markDeallocated stamps the deallocated magic and scribbles the user
// region. Must only be called once verifyBlock has reported a clean block.
func markDeallocated(outer unsafe.Pointer, hsz, bytes int) {
	headerAt(outer).magic = magicDeallocated
	buf := unsafe.Slice((*byte)(outer), hsz+bytes+postPad)
	for i := hsz; i < hsz+bytes; i++ {
		buf[i] = scribbleByte
	}
}
