//go:build debug_testresource

package testresource

import cerrors "github.com/cockroachdb/errors"

// debugScanCanaries walks every block currently registered to tr, under the
// caller's lock, and re-verifies its header and pad regions without
// unlinking it or touching its contents. Active only under the
// debug_testresource build tag; canary_scan_prod.go supplies the no-op used
// otherwise.
func debugScanCanaries(tr *TestResource) error {
	for node := tr.reg.head; node != nil; node = node.next {
		h := headerAt(node.outer)
		hsz := headerSize(h.alignment)
		result := verifyBlock(node.outer, hsz, tr, h.bytes, h.alignment)
		if result.misc || result.underrun != 0 || result.overrun != 0 {
			return cerrors.Newf(
				"testresource: %s: corrupted live block (index %d, address %#x): underrun=%d overrun=%d",
				nameForLog(tr.name), node.index, uintptr(userPointer(node.outer, hsz)), result.underrun, result.overrun)
		}
	}
	return nil
}
