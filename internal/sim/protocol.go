package sim

import (
	"errors"
	"fmt"
)

const (
	cmdWriteEnable  = 0x06
	cmdWriteDisable = 0x04
	cmdReadSR1      = 0x05
	cmdReadSR2      = 0x35
	cmdReadSR3      = 0x15
	cmdWriteSR1     = 0x01
	cmdWriteSR2     = 0x31
	cmdWriteSR3     = 0x11
	cmdReadID       = 0x9F
	cmdReadUniqueID = 0x4B
	cmdFastRead     = 0x0B
	cmdFastRead4    = 0x0C
	cmdPageProgram  = 0x02
	cmdPageProgram4 = 0x12
	cmdSectorErase  = 0x20
	cmdSectorErase4 = 0x21
	cmdBlockErase   = 0xD8
	cmdChipErase    = 0xC7
	cmdPowerDown    = 0xB9
	cmdPowerUp      = 0xAB
)

var errNotSelected = errors.New("sim: chip select not asserted")

// address decodes the address field that follows the opcode. Opcodes of the
// 4-byte instruction set carry a 32-bit address, the rest 24 bits.
func address(frame []byte) (addr uint32, rest []byte, err error) {
	width := 3
	switch frame[0] {
	case cmdFastRead4, cmdPageProgram4, cmdSectorErase4:
		width = 4
	}
	if len(frame) < 1+width {
		return 0, nil, fmt.Errorf("sim: short address in frame % X", frame)
	}
	for _, b := range frame[1 : 1+width] {
		addr = addr<<8 | uint32(b)
	}
	return addr, frame[1+width:], nil
}
