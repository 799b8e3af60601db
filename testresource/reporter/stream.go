package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// StreamReporter formats every event as human-readable text and writes it
// to an io.Writer under a mutex, so a reporter shared by multiple resources
// (or one resource used from multiple goroutines) never interleaves lines.
type StreamReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStreamReporter returns a StreamReporter writing to out. A nil out
// defaults to os.Stdout, matching spec's "the default on program start is
// the console reporter."
func NewStreamReporter(out io.Writer) *StreamReporter {
	if out == nil {
		out = os.Stdout
	}
	return &StreamReporter{out: out}
}

func pluralize(n int) string {
	if n == 1 {
		return "byte"
	}
	return "bytes"
}

func (r *StreamReporter) writef(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func nameOrDefault(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}

func (r *StreamReporter) Allocation(s Snapshot, e Event) {
	r.writef("%s: allocation %d: %d %s at alignment %d, address %#x\n",
		nameOrDefault(s.Name), e.Index, e.Size, pluralize(e.Size), e.Alignment, e.Address)
}

func (r *StreamReporter) Deallocation(s Snapshot, e Event) {
	r.writef("%s: deallocation %d: %d %s at alignment %d, address %#x\n",
		nameOrDefault(s.Name), e.Index, e.Size, pluralize(e.Size), e.Alignment, e.Address)
}

// Release prints the end-of-life summary and, mirroring the source's
// do_report_release, is itself the place that decides whether a leak
// aborts the process: it is the snapshot handed to the reporter, not
// TestResource.Release, that carries the has-allocations/no-abort verdict.
func (r *StreamReporter) Release(s Snapshot) {
	r.writef("%s: release: %d block(s) in use, %d byte(s) in use, %d total allocation(s)\n",
		nameOrDefault(s.Name), s.BlocksInUse, s.BytesInUse, s.TotalBlocks)
	if s.BlocksInUse > 0 {
		r.writef("%s: MEMORY_LEAK: %d block(s) / %d byte(s) still outstanding at release\n",
			nameOrDefault(s.Name), s.BlocksInUse, s.BytesInUse)
		if !s.NoAbort {
			os.Exit(2)
		}
	}
}

func (r *StreamReporter) InvalidBlock(s Snapshot, rep InvalidBlockReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "%s: INVALID BLOCK at deallocation %d, address %#x, size %d, alignment %d\n",
		nameOrDefault(s.Name), rep.Index, rep.Address, rep.Size, rep.Alignment)
	for _, cause := range rep.Causes {
		fmt.Fprintf(r.out, "  cause: %s\n", cause)
	}
	if rep.Underrun > 0 {
		fmt.Fprintf(r.out, "  underrun detected %d byte(s) before user segment\n", rep.Underrun)
	}
	if rep.Overrun > 0 {
		fmt.Fprintf(r.out, "  overrun detected %d byte(s) after user segment\n", rep.Overrun)
	}
	fmt.Fprint(r.out, sideBySideHexDump("header+padding", rep.Header, "user segment", rep.User))
}

func (r *StreamReporter) Print(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "%s: allocations=%d deallocations=%d blocks_in_use=%d max_blocks=%d total_blocks=%d\n",
		nameOrDefault(s.Name), s.Allocations, s.Deallocations, s.BlocksInUse, s.MaxBlocks, s.TotalBlocks)
	fmt.Fprintf(r.out, "%s: bytes_in_use=%d max_bytes=%d total_bytes=%d\n",
		nameOrDefault(s.Name), s.BytesInUse, s.MaxBytes, s.TotalBytes)
	fmt.Fprintf(r.out, "%s: bounds_errors=%d bad_param_errors=%d mismatches=%d\n",
		nameOrDefault(s.Name), s.BoundsErrors, s.BadParamErrors, s.Mismatches)

	fmt.Fprintf(r.out, "%s: live allocation indices:", nameOrDefault(s.Name))
	for i, index := range s.LiveIndices {
		if i%8 == 0 {
			fmt.Fprint(r.out, "\n   ")
		}
		fmt.Fprintf(r.out, " %d", index)
	}
	fmt.Fprintln(r.out)
}

func (r *StreamReporter) Logf(format string, args ...any) {
	r.writef(format+"\n", args...)
}

// FileReporter is a StreamReporter bound to a file sink. Every event
// no-ops while the file is not open, matching the file reporter's
// "validate before every override" gate.
type FileReporter struct {
	mu     sync.Mutex
	stream *StreamReporter
	file   *os.File
}

// NewFileReporter opens path for appending and returns a FileReporter bound
// to it. The file is created if it does not exist.
func NewFileReporter(path string) (*FileReporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening reporter file %q", path)
	}
	return &FileReporter{stream: NewStreamReporter(f), file: f}, nil
}

func (r *FileReporter) isOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// Close closes the underlying file. Subsequent events become no-ops.
func (r *FileReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return errors.Wrap(err, "closing reporter file")
}

func (r *FileReporter) Allocation(s Snapshot, e Event) {
	if r.isOpen() {
		r.stream.Allocation(s, e)
	}
}

func (r *FileReporter) Deallocation(s Snapshot, e Event) {
	if r.isOpen() {
		r.stream.Deallocation(s, e)
	}
}

func (r *FileReporter) Release(s Snapshot) {
	if r.isOpen() {
		r.stream.Release(s)
	}
}

func (r *FileReporter) InvalidBlock(s Snapshot, rep InvalidBlockReport) {
	if r.isOpen() {
		r.stream.InvalidBlock(s, rep)
	}
}

func (r *FileReporter) Print(s Snapshot) {
	if r.isOpen() {
		r.stream.Print(s)
	}
}

func (r *FileReporter) Logf(format string, args ...any) {
	if r.isOpen() {
		r.stream.Logf(format, args...)
	}
}
