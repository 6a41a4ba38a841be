// Package kfmt renders addresses and memory contents as uppercase hex,
// the format the address codec and command executor print in. The
// original kernel's hex-printing package, kfmt/early, exists only because
// a booting kernel has no fmt package available yet; a userspace CLI
// always does, so this rewrite uses fmt directly instead of reproducing
// that allocation-free writer.
package kfmt

import (
	"fmt"
	"io"
)

// DumpWord renders a 32-bit word as 8 uppercase hex digits.
func DumpWord(word uint32) string {
	return fmt.Sprintf("%08X", word)
}

// DumpLine renders a cache/page line of 32-bit words as space-separated
// uppercase hex words.
func DumpLine(words []uint32) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += DumpWord(w)
	}
	return out
}

const bytesPerRow = 16

// HexDump writes a classic 16-bytes-per-row hex+ASCII dump of data to w,
// with each row's address (base+offset) printed in uppercase hex.
func HexDump(w io.Writer, data []byte, base uint32, n int) error {
	if n > len(data) {
		n = len(data)
	}
	for off := 0; off < n; off += bytesPerRow {
		end := off + bytesPerRow
		if end > n {
			end = n
		}
		row := data[off:end]

		if _, err := fmt.Fprintf(w, "%08X  ", base+uint32(off)); err != nil {
			return err
		}
		for i := 0; i < bytesPerRow; i++ {
			if i < len(row) {
				if _, err := fmt.Fprintf(w, "%02X ", row[i]); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprint(w, "   "); err != nil {
					return err
				}
			}
			if i == 7 {
				if _, err := fmt.Fprint(w, " "); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprint(w, " |"); err != nil {
			return err
		}
		for _, b := range row {
			c := byte('.')
			if b >= 0x20 && b < 0x7F {
				c = b
			}
			if _, err := fmt.Fprintf(w, "%c", c); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "|"); err != nil {
			return err
		}
	}
	return nil
}
