package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sigurn/crc16"
)

var crcTab = crc16.MakeTable(crc16.CRC16_XMODEM)

func checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTab)
}

const dumpWidth = 16

// hexdump writes data in rows of 16 bytes. Programmed bytes are
// highlighted; repeated erased rows collapse into a single "*".
func hexdump(w io.Writer, data []byte, offset int64) {
	mark := color.New(color.FgCyan)
	erasedRow := strings.Repeat("\xff", dumpWidth)
	erased, starred := false, false

	for len(data) > 0 {
		l := min(len(data), dumpWidth)
		work := data[:l]
		data = data[l:]

		if l == dumpWidth && string(work) == erasedRow {
			if erased {
				if !starred {
					fmt.Fprintln(w, "*")
					starred = true
				}
				offset += int64(l)
				continue
			}
			erased = true
		} else {
			erased, starred = false, false
		}

		var hex, ascii strings.Builder
		for i := range dumpWidth {
			if i >= len(work) {
				hex.WriteString("   ")
				ascii.WriteByte(' ')
			} else {
				b := work[i]
				c := b
				if c < 32 || c > 126 {
					c = '.'
				}
				if b != 0xFF {
					hex.WriteString(mark.Sprintf("%02x ", b))
					ascii.WriteString(mark.Sprintf("%c", c))
				} else {
					fmt.Fprintf(&hex, "%02x ", b)
					ascii.WriteByte(c)
				}
			}
			if i%8 == 7 {
				hex.WriteByte(' ')
			}
		}
		fmt.Fprintf(w, "%08x  %s|%s|\n", offset, hex.String(), ascii.String())
		offset += int64(l)
	}
	if starred {
		fmt.Fprintf(w, "%08x\n", offset)
	}
}
