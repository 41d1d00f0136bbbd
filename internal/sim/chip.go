// Package sim emulates a W25Qxx flash chip at the command level. A Chip
// implements the w25q.Transport interface, so a driver can talk to it
// exactly as it would to hardware.
package sim

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
)

const (
	PageSize   = 256
	SectorSize = 4096
	BlockSize  = 65536
)

const (
	srBusy = 1 << 0
	srWEL  = 1 << 1
)

// Chip is an in-memory W25Qxx. Sectors that were never programmed read as
// erased (0xFF) and take no memory.
type Chip struct {
	mu sync.Mutex

	id      [3]byte
	uid     [8]byte
	size    uint32
	sectors map[uint32]*[SectorSize]byte
	sr      [3]byte

	selected  bool
	answered  bool
	frame     []byte
	powerDown bool
	busy      int
	frames    [][]byte

	// BusyPolls is the number of status register reads that report BUSY
	// after each program, erase or status register write.
	BusyPolls int
	// Stuck keeps BUSY set after the next program or erase.
	Stuck bool
	// Fail, when set, is called with every frame before it is acted on.
	// A non-nil result is returned to the driver and the frame is dropped.
	Fail func(frame []byte) error
}

// New returns an erased chip answering JEDEC ID id with size bytes of
// storage. size must be a multiple of the block size.
func New(id [3]byte, size uint32) *Chip {
	if size == 0 || size%BlockSize != 0 {
		panic(fmt.Sprintf("sim: size %d is not a multiple of %d", size, BlockSize))
	}
	return &Chip{
		id:      id,
		size:    size,
		sectors: make(map[uint32]*[SectorSize]byte),
	}
}

// Winbond returns an erased Winbond chip for a capacity code such as 0x18
// (W25Q128). The size follows the W25Q numbering: 128 Mbit for 0x18.
func Winbond(code byte) *Chip {
	blocks := map[byte]uint32{
		0x11: 2, 0x12: 4, 0x13: 8, 0x14: 16, 0x15: 32,
		0x16: 64, 0x17: 128, 0x18: 256, 0x19: 512, 0x20: 1024,
	}[code]
	if blocks == 0 {
		blocks = 2
	}
	return New([3]byte{0xEF, 0x40, code}, blocks*BlockSize)
}

func (c *Chip) SetUniqueID(uid [8]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid = uid
}

// Size returns the storage size in bytes.
func (c *Chip) Size() uint32 { return c.size }

// Frames returns a copy of every completed frame, oldest first.
func (c *Chip) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	for i, f := range c.frames {
		out[i] = slices.Clone(f)
	}
	return out
}

// ResetFrames forgets the recorded frames.
func (c *Chip) ResetFrames() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// Peek returns n bytes of storage starting at addr without going through
// the command interface.
func (c *Chip) Peek(addr, n uint32) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = c.load(addr + uint32(i))
	}
	return out
}

// Status returns the raw status registers.
func (c *Chip) Status() [3]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sr
}

func (c *Chip) Select() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = true
	c.answered = false
	c.frame = c.frame[:0]
	return nil
}

func (c *Chip) Write(w []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return errNotSelected
	}
	c.frame = append(c.frame, w...)
	return nil
}

func (c *Chip) WriteThenRead(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return errNotSelected
	}
	c.frame = append(c.frame, w...)
	c.answered = true
	if c.Fail != nil {
		if err := c.Fail(c.frame); err != nil {
			return err
		}
	}
	return c.respond(r)
}

func (c *Chip) Deselect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return nil
	}
	c.selected = false
	if len(c.frame) == 0 {
		return nil
	}
	frame := slices.Clone(c.frame)
	c.frames = append(c.frames, frame)
	if c.answered {
		return nil
	}
	if c.Fail != nil {
		if err := c.Fail(frame); err != nil {
			return err
		}
	}
	return c.execute(frame)
}

func (c *Chip) load(addr uint32) byte {
	addr %= c.size
	s, ok := c.sectors[addr/SectorSize]
	if !ok {
		return 0xFF
	}
	return s[addr%SectorSize]
}

// program clears the bits that are zero in b, as NOR flash does.
func (c *Chip) program(addr uint32, b byte) {
	addr %= c.size
	if b == 0xFF {
		return
	}
	s, ok := c.sectors[addr/SectorSize]
	if !ok {
		s = new([SectorSize]byte)
		for i := range s {
			s[i] = 0xFF
		}
		c.sectors[addr/SectorSize] = s
	}
	s[addr%SectorSize] &= b
}

func (c *Chip) erase(addr, n uint32) {
	addr %= c.size
	for a := addr &^ (n - 1); a < addr&^(n-1)+n; a += SectorSize {
		delete(c.sectors, a/SectorSize)
	}
}

func (c *Chip) isBusy() bool { return c.busy > 0 || c.Stuck && c.sr[0]&srBusy != 0 }

func (c *Chip) startBusy() {
	c.sr[0] &^= srWEL
	c.busy = c.BusyPolls
	if c.Stuck {
		c.sr[0] |= srBusy
	}
}

func (c *Chip) respond(r []byte) error {
	op := c.frame[0]
	if c.powerDown && op != cmdPowerUp {
		fill(r, 0xFF)
		return nil
	}

	switch op {
	case cmdReadID:
		for i := range r {
			r[i] = c.id[i%len(c.id)]
		}
	case cmdReadUniqueID:
		copy(r, c.uid[:])
	case cmdReadSR1:
		sr := c.sr[0]
		if c.isBusy() {
			sr |= srBusy
			if c.busy > 0 {
				c.busy--
			}
		} else {
			sr &^= srBusy
		}
		fill(r, sr)
	case cmdReadSR2:
		fill(r, c.sr[1])
	case cmdReadSR3:
		fill(r, c.sr[2])
	case cmdFastRead, cmdFastRead4:
		addr, rest, err := address(c.frame)
		if err != nil {
			return err
		}
		if len(rest) < 1 {
			return fmt.Errorf("sim: fast read without dummy byte: % X", c.frame)
		}
		if c.isBusy() {
			fill(r, 0xFF)
			return nil
		}
		for i := range r {
			r[i] = c.load(addr + uint32(i))
		}
	case cmdPowerUp:
		c.powerDown = false
		fill(r, c.id[2])
	default:
		return fmt.Errorf("sim: unsupported read command %02X", op)
	}
	return nil
}

func (c *Chip) execute(frame []byte) error {
	op := frame[0]
	if c.powerDown && op != cmdPowerUp {
		return nil
	}
	// A busy chip only answers status reads.
	if c.isBusy() {
		return nil
	}

	switch op {
	case cmdWriteEnable:
		c.sr[0] |= srWEL
	case cmdWriteDisable:
		c.sr[0] &^= srWEL
	case cmdPageProgram, cmdPageProgram4:
		addr, data, err := address(frame)
		if err != nil {
			return err
		}
		if c.sr[0]&srWEL == 0 {
			return nil
		}
		// Data past the end of the page wraps to its start.
		base := addr &^ (PageSize - 1)
		for i, b := range data {
			c.program(base+(addr+uint32(i))%PageSize, b)
		}
		c.startBusy()
	case cmdSectorErase, cmdSectorErase4, cmdBlockErase:
		addr, _, err := address(frame)
		if err != nil {
			return err
		}
		if c.sr[0]&srWEL == 0 {
			return nil
		}
		n := uint32(SectorSize)
		if op == cmdBlockErase {
			n = BlockSize
		}
		c.erase(addr, n)
		c.startBusy()
	case cmdChipErase:
		if len(frame) != 1 {
			return fmt.Errorf("sim: chip erase with trailing bytes: % X", frame)
		}
		if c.sr[0]&srWEL == 0 {
			return nil
		}
		clear(c.sectors)
		c.startBusy()
	case cmdWriteSR1, cmdWriteSR2, cmdWriteSR3:
		if len(frame) != 2 {
			return fmt.Errorf("sim: status register write needs one byte: % X", frame)
		}
		if c.sr[0]&srWEL == 0 {
			return nil
		}
		i := bytes.IndexByte([]byte{cmdWriteSR1, cmdWriteSR2, cmdWriteSR3}, op)
		v := frame[1]
		if i == 0 {
			v &^= srBusy | srWEL
		}
		c.sr[i] = v
		c.startBusy()
	case cmdPowerDown:
		c.powerDown = true
	case cmdPowerUp:
		c.powerDown = false
	default:
		return fmt.Errorf("sim: unsupported command %02X", op)
	}
	return nil
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
