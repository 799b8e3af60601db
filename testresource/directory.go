package testresource

import (
	"sync"

	"github.com/dolthub/swiss"
)

// Directory is an optional process-wide registry mapping a resource's name
// to the resource itself, so a test fixture that constructs many named
// resources can look one back up by name when composing a failure message,
// without threading every resource through every helper that might need to
// report against it. It is a diagnostic aid, not an allocator adaptor.
type Directory struct {
	mu      sync.Mutex
	entries *swiss.Map[string, *TestResource]
}

var globalDirectory = &Directory{entries: swiss.NewMap[string, *TestResource](16)}

// GlobalDirectory returns the process-wide named-resource directory.
func GlobalDirectory() *Directory { return globalDirectory }

// Register records tr under its own Name. An empty name is a no-op: the
// directory has no use for anonymous resources, and nothing prevents
// several anonymous resources from existing at once.
func (d *Directory) Register(tr *TestResource) {
	if tr.Name() == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.Put(tr.Name(), tr)
}

// Lookup returns the resource registered under name, if any.
func (d *Directory) Lookup(name string) (*TestResource, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries.Get(name)
}

// Unregister removes tr's entry, if its name is still mapped to tr itself
// (a later resource registered under the same name is left alone).
func (d *Directory) Unregister(tr *TestResource) {
	if tr.Name() == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.entries.Get(tr.Name()); ok && current == tr {
		d.entries.Delete(tr.Name())
	}
}
