package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
)

// JSONReporter renders every event as one newline-delimited JSON object,
// suitable for a CI log aggregator to ingest. It exists to prove the
// Reporter boundary is genuinely polymorphic: nothing about TestResource
// changes to support it, it just implements the same six-method interface
// as StreamReporter.
type JSONReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewJSONReporter returns a JSONReporter writing newline-delimited JSON
// objects to out.
func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out}
}

func (r *JSONReporter) writeSnapshot(obj jwriter.ObjectState, s Snapshot) {
	obj.Name("name").String(s.Name)
	obj.Name("allocations").Int(int(s.Allocations))
	obj.Name("deallocations").Int(int(s.Deallocations))
	obj.Name("blocksInUse").Int(int(s.BlocksInUse))
	obj.Name("maxBlocks").Int(int(s.MaxBlocks))
	obj.Name("totalBlocks").Int(int(s.TotalBlocks))
	obj.Name("boundsErrors").Int(int(s.BoundsErrors))
	obj.Name("badParamErrors").Int(int(s.BadParamErrors))
	obj.Name("mismatches").Int(int(s.Mismatches))
	obj.Name("bytesInUse").Int(int(s.BytesInUse))
	obj.Name("maxBytes").Int(int(s.MaxBytes))
	obj.Name("totalBytes").Int(int(s.TotalBytes))
}

func (r *JSONReporter) emit(event string, fields func(obj jwriter.ObjectState)) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("event").String(event)
	fields(obj)
	obj.End()

	data := w.Bytes()
	err := w.Error()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		wrapped := errors.Wrapf(err, "encoding %s event", event)
		fmt.Fprintf(r.out, "{\"event\":%q,\"encodingError\":%q}\n", event, wrapped.Error())
		return
	}
	r.out.Write(data)
	fmt.Fprintln(r.out)
}

func (r *JSONReporter) Allocation(s Snapshot, e Event) {
	r.emit("allocation", func(obj jwriter.ObjectState) {
		r.writeSnapshot(obj, s)
		obj.Name("index").Int(int(e.Index))
		obj.Name("address").String(fmt.Sprintf("%#x", e.Address))
		obj.Name("size").Int(e.Size)
		obj.Name("alignment").Int(int(e.Alignment))
	})
}

func (r *JSONReporter) Deallocation(s Snapshot, e Event) {
	r.emit("deallocation", func(obj jwriter.ObjectState) {
		r.writeSnapshot(obj, s)
		obj.Name("index").Int(int(e.Index))
		obj.Name("address").String(fmt.Sprintf("%#x", e.Address))
		obj.Name("size").Int(e.Size)
		obj.Name("alignment").Int(int(e.Alignment))
	})
}

func (r *JSONReporter) Release(s Snapshot) {
	r.emit("release", func(obj jwriter.ObjectState) {
		r.writeSnapshot(obj, s)
		obj.Name("leak").Bool(s.BlocksInUse > 0)
	})
}

func (r *JSONReporter) InvalidBlock(s Snapshot, rep InvalidBlockReport) {
	r.emit("invalidBlock", func(obj jwriter.ObjectState) {
		r.writeSnapshot(obj, s)
		obj.Name("index").Int(int(rep.Index))
		obj.Name("size").Int(rep.Size)
		obj.Name("alignment").Int(int(rep.Alignment))
		obj.Name("underrun").Int(rep.Underrun)
		obj.Name("overrun").Int(rep.Overrun)
		causes := obj.Name("causes").Array()
		for _, cause := range rep.Causes {
			causes.String(string(cause))
		}
		causes.End()
	})
}

func (r *JSONReporter) Print(s Snapshot) {
	r.emit("print", func(obj jwriter.ObjectState) {
		r.writeSnapshot(obj, s)
		indices := obj.Name("liveIndices").Array()
		for _, index := range s.LiveIndices {
			indices.Int(int(index))
		}
		indices.End()
	})
}

func (r *JSONReporter) Logf(format string, args ...any) {
	r.emit("log", func(obj jwriter.ObjectState) {
		obj.Name("message").String(fmt.Sprintf(format, args...))
	})
}
