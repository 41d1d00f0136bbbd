package w25q

// Flash commands:
//   - [W25Q128|8.1.2 Instruction Set Table 1]
//   - [W25Q256|8.1.3 Instruction Set Table (4-Byte Address Mode)]
const (
	flashCmdWriteEnable          = 0x06
	flashCmdWriteDisable         = 0x04
	flashCmdReadStatusRegister1  = 0x05
	flashCmdReadStatusRegister2  = 0x35
	flashCmdReadStatusRegister3  = 0x15
	flashCmdWriteStatusRegister1 = 0x01
	flashCmdWriteStatusRegister2 = 0x31
	flashCmdWriteStatusRegister3 = 0x11
	flashCmdEraseChip            = 0xC7
	flashCmdReadID               = 0x9F // JEDEC ID
	flashCmdReadUniqueID         = 0x4B
	flashCmdPowerDown            = 0xB9
	flashCmdPowerUp              = 0xAB // Release Power Down

	readDummyBytes     = 1 // Fast Read needs 8 dummy clocks after the address
	uniqueIDDummyBytes = 4
	dummyByte          = 0x00
)

// addressedCommand is a command followed by an address field. Chips with
// 4-byte addressing use a different opcode and an extra high address byte.
type addressedCommand struct {
	name string
	op3  byte // 3-byte address opcode
	op4  byte // 4-byte address opcode
}

var (
	cmdRead        = addressedCommand{"read", 0x0B, 0x0C}         // Fast Read
	cmdPageProgram = addressedCommand{"page program", 0x02, 0x12} // Page Program
	cmdEraseSector = addressedCommand{"sector erase", 0x20, 0x21} // Sector Erase (4KB)
	cmdEraseBlock  = addressedCommand{"block erase", 0xD8, 0x21}  // Block Erase (64KB)
)

// encode returns the opcode and address field for addr. It makes no
// transport calls.
//
//	3-byte: op3 A23-A16 A15-A8 A7-A0
//	4-byte: op4 A31-A24 A23-A16 A15-A8 A7-A0
func (c addressedCommand) encode(addr uint32, fourByte bool) []byte {
	if fourByte {
		return []byte{c.op4, byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
	}
	return []byte{c.op3, byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// readCommand returns the Fast Read header for addr including the dummy byte.
func readCommand(addr uint32, fourByte bool) []byte {
	buf := cmdRead.encode(addr, fourByte)
	for range readDummyBytes {
		buf = append(buf, dummyByte)
	}
	return buf
}
