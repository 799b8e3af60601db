package testresource

import (
	"strings"

	"golang.org/x/exp/slog"
)

// flagStringMapping records which name was registered for each bit of a
// flag type, so String() can render a readable "A|B" instead of a raw
// integer. It plays the same role as a NewFlagStringMapping[T]() helper
// that lives in a Vulkan-facing package this module does not depend on, so
// the same small idiom is reproduced directly here.
type flagStringMapping[T ~int32] struct {
	names map[T]string
}

func newFlagStringMapping[T ~int32]() *flagStringMapping[T] {
	return &flagStringMapping[T]{names: make(map[T]string)}
}

func (m *flagStringMapping[T]) Register(flag T, name string) {
	m.names[flag] = name
}

func (m *flagStringMapping[T]) FlagsToString(flags T) string {
	if flags == 0 {
		return "0"
	}
	var parts []string
	for bit, name := range m.names {
		if bit != 0 && flags&bit == bit {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// ResourceFlags seeds a TestResource's mutable policy atomics at
// construction time.
type ResourceFlags int32

var resourceFlagsMapping = newFlagStringMapping[ResourceFlags]()

func (f ResourceFlags) Register(name string) {
	resourceFlagsMapping.Register(f, name)
}

func (f ResourceFlags) String() string {
	return resourceFlagsMapping.FlagsToString(f)
}

const (
	// ResourceVerbose seeds the resource's verbose flag: every allocation
	// and deallocation is reported, in addition to invalid-block and
	// release events.
	ResourceVerbose ResourceFlags = 1 << iota
	// ResourceQuiet seeds the resource's quiet flag, suppressing reporter
	// output for detected errors and leaks (the condition is still
	// counted). Quiet implies NoAbort.
	ResourceQuiet
	// ResourceNoAbort seeds the resource's no-abort flag: detected
	// corruption and leaks are reported but do not terminate the process.
	ResourceNoAbort
)

func init() {
	ResourceVerbose.Register("ResourceVerbose")
	ResourceQuiet.Register("ResourceQuiet")
	ResourceNoAbort.Register("ResourceNoAbort")
}

// CreateOptions collapses the source allocator's nine constructor overloads
// (every combination of name/verbose/upstream/reporter) into one struct with
// documented zero-value defaults, following the same pattern
// vam.New(logger, ..., CreateOptions) uses for its own combinatorial
// constructor problem.
type CreateOptions struct {
	// Name is reported alongside every event; it has no other effect.
	// Defaults to "" (rendered as "<unnamed>" by StreamReporter).
	Name string
	// Flags seeds Verbose/Quiet/NoAbort. Defaults to no flags set.
	Flags ResourceFlags
	// Upstream is the allocator every allocate/deallocate delegates to.
	// Defaults to DefaultAllocator().
	Upstream UpstreamAllocator
	// Reporter receives structured events. Defaults to DefaultReporter().
	Reporter Reporter
	// Logger receives operational log lines at Debug/Warn level. Defaults
	// to slog.Default().
	Logger *slog.Logger
}
