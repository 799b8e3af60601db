package testresource

import (
	"errors"
)

// RunAllocationFailureTest drives f repeatedly, forcing exactly one
// allocation out of tr to fail per iteration (the i-th call fails on tr's
// i-th allocation), until f completes a full pass without hitting the
// injected failure. It restores tr's original allocation limit before
// returning either way.
//
// This is the standard exception-safety sweep: f should exercise exactly the
// code path under test, and RunAllocationFailureTest proves that every
// allocation failure along that path is handled (f returns a non-nil error
// rather than panicking or leaving tr's bookkeeping inconsistent). The final,
// successful pass runs with the limit set to the number of allocations the
// path needed, not with the limit removed.
func RunAllocationFailureTest(tr *TestResource, f func(*TestResource) error) error {
	saved := tr.AllocationLimit()
	defer tr.SetAllocationLimit(saved)

	for i := int64(0); ; i++ {
		tr.SetAllocationLimit(i)

		if tr.IsVerbose() {
			tr.reporter.Logf("%s: allocation failure test, limit=%d", nameForLog(tr.name), i)
		}

		err := f(tr)
		if err == nil {
			tr.SetAllocationLimit(saved)
			return nil
		}

		var injected *InjectedFailureError
		if !errors.As(err, &injected) {
			return err
		}
		if injected.Resource != tr {
			tr.reporter.Logf("%s: allocation failure test saw a failure from a different resource", nameForLog(tr.name))
			return err
		}
	}
}
