package reporter

import (
	"fmt"
	"strings"
)

const hexDumpWidth = 16

// hexDump renders data as classic side-by-side hex/ASCII lines, offset
// column included, matching the shape original test-allocator reporters use
// for invalid-block diagnostics.
func hexDump(label string, data []byte) string {
	if len(data) == 0 {
		return fmt.Sprintf("%s: (empty)", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d bytes):\n", label, len(data))

	for offset := 0; offset < len(data); offset += hexDumpWidth {
		end := offset + hexDumpWidth
		if end > len(data) {
			end = len(data)
		}
		row := data[offset:end]

		fmt.Fprintf(&b, "  %04x  ", offset)
		for i := 0; i < hexDumpWidth; i++ {
			if i < len(row) {
				fmt.Fprintf(&b, "%02x ", row[i])
			} else {
				b.WriteString("   ")
			}
			if i == hexDumpWidth/2-1 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range row {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

// sideBySideHexDump renders two labeled byte slices one after the other,
// used to show a corrupted block's header+padding alongside its user
// region in a single invalid-block report.
func sideBySideHexDump(headerLabel string, header []byte, userLabel string, user []byte) string {
	return hexDump(headerLabel, header) + hexDump(userLabel, user)
}
