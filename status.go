package w25q

import (
	"fmt"
	"strings"
)

// Register selects one of the three status registers.
type Register int

const (
	Register1 Register = iota
	Register2
	Register3
	registerCount
)

func (r Register) String() string {
	if r < Register1 || r >= registerCount {
		return fmt.Sprintf("Register(%d)", int(r))
	}
	return fmt.Sprintf("SR%d", int(r)+1)
}

func (r Register) readOpcode() byte {
	return [...]byte{
		flashCmdReadStatusRegister1,
		flashCmdReadStatusRegister2,
		flashCmdReadStatusRegister3,
	}[r]
}

func (r Register) writeOpcode() byte {
	return [...]byte{
		flashCmdWriteStatusRegister1,
		flashCmdWriteStatusRegister2,
		flashCmdWriteStatusRegister3,
	}[r]
}

func (r Register) valid() bool { return r >= Register1 && r < registerCount }

// StatusRegister represents status register 1.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-------------------------------------
//	7   | SRP: Status Register Protect 0
//	6   | SEC: Sector protect
//	5   | TB: Top/Bottom protect
//	4:2 | BP2-0: Block Protect bit 2-0
//	1   | WEL: Write Enable Latch
//	0   | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	return flagString(byte(sr), []string{"BUSY", "WEL", "BP0", "BP1", "BP2", "TB", "SEC", "SRP"})
}

// StatusRegister2 represents status register 2.
//
//	Bits| [W25Q128|7.1 Status Registers]
//	----+-------------------------------------
//	7   | SUS: Erase/Program Suspend Status
//	6   | CMP: Complement Protect
//	5:3 | LB3-1: Security Register Lock Bits
//	2   | Reserved
//	1   | QE: Quad Enable
//	0   | SRL: Status Register Protect 1 / Lock
type StatusRegister2 byte

func (sr StatusRegister2) Suspended() bool              { return sr&(1<<7) != 0 }
func (sr StatusRegister2) Complement() bool             { return sr&(1<<6) != 0 }
func (sr StatusRegister2) SecurityLock3() bool          { return sr&(1<<5) != 0 }
func (sr StatusRegister2) SecurityLock2() bool          { return sr&(1<<4) != 0 }
func (sr StatusRegister2) SecurityLock1() bool          { return sr&(1<<3) != 0 }
func (sr StatusRegister2) QuadEnable() bool             { return sr&(1<<1) != 0 }
func (sr StatusRegister2) StatusRegisterProtect1() bool { return sr&(1<<0) != 0 }

func (sr StatusRegister2) String() string {
	return flagString(byte(sr), []string{"SRL", "QE", "", "LB1", "LB2", "LB3", "CMP", "SUS"})
}

// StatusRegister3 represents status register 3.
//
//	Bits| [W25Q128|7.1 Status Registers] / [W25Q256|7.1.12]
//	----+-------------------------------------
//	7   | HOLD/RST: /HOLD or /RESET function
//	6:5 | DRV1-0: Output Driver Strength
//	2   | WPS: Write Protect Selection
//	1   | ADP: Power-Up Address Mode (W25Q256 and above)
//	0   | ADS: Current Address Mode (W25Q256 and above)
type StatusRegister3 byte

func (sr StatusRegister3) HoldReset() bool          { return sr&(1<<7) != 0 }
func (sr StatusRegister3) DriveStrength() int       { return int(sr>>5) & 0x3 }
func (sr StatusRegister3) WriteProtectSelect() bool { return sr&(1<<2) != 0 }
func (sr StatusRegister3) PowerUpFourByte() bool    { return sr&(1<<1) != 0 }
func (sr StatusRegister3) FourByteMode() bool       { return sr&(1<<0) != 0 }

func (sr StatusRegister3) String() string {
	return flagString(byte(sr), []string{"ADS", "ADP", "WPS", "", "", "DRV0", "DRV1", "HOLD/RST"})
}

// flagString formats b as binary followed by the names of its set bits,
// most significant first. names is indexed by bit number.
func flagString(b byte, names []string) string {
	s := []string{}
	for bit := 7; bit >= 0; bit-- {
		if b&(1<<bit) != 0 && names[bit] != "" {
			s = append(s, names[bit])
		}
	}
	out := fmt.Sprintf("%08b", b)
	if len(s) == 0 {
		return out
	}
	return out + " " + strings.Join(s, ",")
}
