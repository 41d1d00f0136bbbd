package w25q

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Options configures a Flash. The zero value is usable.
type Options struct {
	// Logger receives debug traces of every operation. Defaults to a
	// logger that discards everything.
	Logger *slog.Logger
	// Timing overrides delays and busy-wait limits.
	Timing Timing
	// Delay sleeps for the given duration. Defaults to time.Sleep.
	// Busy-wait limits count both wall-clock time and the durations passed
	// to Delay, so a Delay that only advances a simulated clock still ends
	// in a *StuckDeviceError.
	Delay func(time.Duration)
}

// Flash is a W25Qxx chip reached through a Transport. All methods are safe
// for concurrent use; each call holds the device until it returns.
type Flash struct {
	t      Transport
	log    *slog.Logger
	delay  func(time.Duration)
	timing Timing

	mu sync.Mutex

	id      uint32 // JEDEC ID
	pr      *flashParams
	variant Variant
	uid     [8]byte
	geo     Geometry
	status  [registerCount]byte
}

// NewFlash returns an uninitialized Flash. Call Init before any other
// operation.
func NewFlash(t Transport, opts Options) *Flash {
	f := &Flash{
		t:      t,
		log:    opts.Logger,
		delay:  opts.Delay,
		timing: opts.Timing,
	}
	if f.log == nil {
		f.log = slog.New(slog.DiscardHandler)
	}
	if f.delay == nil {
		f.delay = time.Sleep
	}
	return f
}

// Init probes the chip, resolves its geometry and reads its unique ID and
// status registers. On an unrecognized JEDEC ID it returns an
// *UnknownDeviceError and leaves the Flash uninitialized.
func (f *Flash) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delay(f.settle())
	if err := f.t.Deselect(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	f.delay(f.initSettle())

	id, err := f.readID()
	if err != nil {
		return fmt.Errorf("read JEDEC ID: %w", err)
	}
	f.log.Debug("flash ID", "id", fmt.Sprintf("%06X", id))

	params, ok := lookupID(id)
	if !ok {
		f.log.Debug("unknown flash ID", "id", fmt.Sprintf("%06X", id))
		return &UnknownDeviceError{ID: id}
	}

	uid, err := f.readUniqueID()
	if err != nil {
		return fmt.Errorf("read unique ID: %w", err)
	}
	for r := Register1; r < registerCount; r++ {
		if _, err := f.readStatus(r); err != nil {
			return fmt.Errorf("read %v: %w", r, err)
		}
	}

	f.id = id
	f.pr = &params
	f.variant = params.variant
	f.uid = uid
	f.geo = newGeometry(params.blockCount)

	f.log.Debug("flash initialized",
		"chip", params.name,
		"pageSize", f.geo.PageSize,
		"pageCount", f.geo.PageCount,
		"sectorSize", f.geo.SectorSize,
		"sectorCount", f.geo.SectorCount,
		"blockSize", f.geo.BlockSize,
		"blockCount", f.geo.BlockCount,
		"capacityKiB", f.geo.CapacityKiB)
	return nil
}

// ID returns the JEDEC ID read by Init.
func (f *Flash) ID() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

// Variant returns the chip model, or VariantUnknown before a successful Init.
func (f *Flash) Variant() Variant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.variant
}

// UniqueID returns the factory programmed 64-bit unique ID.
func (f *Flash) UniqueID() [8]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uid
}

// Geometry returns the chip geometry, or the zero Geometry before Init.
func (f *Flash) Geometry() Geometry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.geo
}

// StatusRegisters returns the status register values from the most recent
// reads. They are not refreshed by this call.
func (f *Flash) StatusRegisters() [3]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *Flash) ready() error {
	if f.pr == nil {
		return ErrNotInitialized
	}
	return nil
}

func (f *Flash) fourByte() bool { return f.variant.FourByteAddressing() }

// frame wraps one command with chip select assertion.
func (f *Flash) frame(tx func() error) (err error) {
	if err = f.t.Select(); err != nil {
		return err
	}
	defer func() {
		if csErr := f.t.Deselect(); csErr != nil && err == nil {
			err = csErr
		}
	}()
	err = tx()
	return
}

// command sends parts as a single write-only frame.
func (f *Flash) command(parts ...[]byte) error {
	return f.frame(func() error {
		for _, p := range parts {
			if err := f.t.Write(p); err != nil {
				return err
			}
		}
		return nil
	})
}

// query sends w and reads len(r) response bytes in one frame.
func (f *Flash) query(w, r []byte) error {
	return f.frame(func() error {
		return f.t.WriteThenRead(w, r)
	})
}

func (f *Flash) readID() (uint32, error) {
	buf := make([]byte, 3)
	if err := f.query([]byte{flashCmdReadID}, buf); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
}

func (f *Flash) readUniqueID() (uid [8]byte, err error) {
	cmd := make([]byte, 1+uniqueIDDummyBytes)
	cmd[0] = flashCmdReadUniqueID
	err = f.query(cmd, uid[:])
	return
}

func (f *Flash) writeEnable() error {
	if err := f.command([]byte{flashCmdWriteEnable}); err != nil {
		return err
	}
	f.delay(f.settle())
	return nil
}

func (f *Flash) writeDisable() error {
	if err := f.command([]byte{flashCmdWriteDisable}); err != nil {
		return err
	}
	f.delay(f.settle())
	return nil
}

func (f *Flash) readStatus(r Register) (byte, error) {
	buf := make([]byte, 1)
	if err := f.query([]byte{r.readOpcode()}, buf); err != nil {
		return 0, err
	}
	f.status[r] = buf[0]
	return buf[0], nil
}

// busyWait polls status register 1 until BUSY clears or timeout elapses.
func (f *Flash) busyWait(op string, timeout time.Duration) error {
	start := time.Now()
	var slept time.Duration
	for {
		v, err := f.readStatus(Register1)
		if err != nil {
			return fmt.Errorf("%s: read status: %w", op, err)
		}
		sr := StatusRegister(v)
		if !sr.Busy() {
			return nil
		}
		if elapsed := max(time.Since(start), slept); elapsed >= timeout {
			return &StuckDeviceError{Op: op, Elapsed: elapsed, Status: sr}
		}
		d := f.pollInterval()
		f.delay(d)
		slept += d
	}
}

// writeCommand runs a command that needs the write enable latch: wait for
// any previous write, set WEL, send parts, then wait for the chip to finish.
// When sending fails it tries to clear WEL so no command is left armed.
func (f *Flash) writeCommand(op string, timeout time.Duration, parts ...[]byte) error {
	if err := f.busyWait(op, timeout); err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return fmt.Errorf("%s: write enable: %w", op, err)
	}
	if err := f.command(parts...); err != nil {
		if wdErr := f.writeDisable(); wdErr != nil {
			f.log.Debug("write disable failed", "op", op, "err", wdErr)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.busyWait(op, timeout); err != nil {
		return err
	}
	f.delay(f.settle())
	return nil
}

// BusyWait waits until the chip finishes its current program or erase, or
// returns a *StuckDeviceError after timeout. A zero timeout uses the chip
// erase limit, the longest operation the chip performs.
func (f *Flash) BusyWait(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if timeout == 0 {
		timeout = f.tEraseChip()
	}
	return f.busyWait("busy wait", timeout)
}

// ReadStatusRegister reads status register r and updates the cached copy.
func (f *Flash) ReadStatusRegister(r Register) (byte, error) {
	if !r.valid() {
		return 0, fmt.Errorf("w25q: invalid status register %v", r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readStatus(r)
}

// Status reads status register 1.
func (f *Flash) Status() (StatusRegister, error) {
	v, err := f.ReadStatusRegister(Register1)
	return StatusRegister(v), err
}

// WriteStatusRegister writes v to status register r. Protection bits written
// here persist across power cycles.
func (f *Flash) WriteStatusRegister(r Register, v byte) error {
	if !r.valid() {
		return fmt.Errorf("w25q: invalid status register %v", r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.Debug("write status register", "register", r, "value", fmt.Sprintf("%08b", v))
	if err := f.writeCommand("write "+r.String(), f.tW(), []byte{r.writeOpcode(), v}); err != nil {
		return err
	}
	_, err := f.readStatus(r)
	return err
}

// EraseChip erases the whole chip. This is by far the slowest operation:
// tens of seconds to minutes depending on capacity.
func (f *Flash) EraseChip() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ready(); err != nil {
		return err
	}

	start := time.Now()
	f.log.Debug("erase chip begin")
	if err := f.writeCommand("chip erase", f.tEraseChip(), []byte{flashCmdEraseChip}); err != nil {
		return err
	}
	f.log.Debug("erase chip done", "elapsed", time.Since(start))
	return nil
}

// EraseSector erases the 4KB sector with the given index.
func (f *Flash) EraseSector(sector uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ready(); err != nil {
		return err
	}
	if sector >= f.geo.SectorCount {
		return &AddressOutOfRangeError{Granule: "sector", Index: sector, Count: f.geo.SectorCount}
	}
	return f.eraseSector(sector)
}

func (f *Flash) eraseSector(sector uint32) error {
	start := time.Now()
	f.log.Debug("erase sector begin", "sector", sector)
	addr := sector * f.geo.SectorSize
	if err := f.writeCommand(cmdEraseSector.name, f.tErase4KB(), cmdEraseSector.encode(addr, f.fourByte())); err != nil {
		return err
	}
	f.log.Debug("erase sector done", "sector", sector, "elapsed", time.Since(start))
	return nil
}

// EraseBlock erases the 64KB block with the given index.
func (f *Flash) EraseBlock(block uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ready(); err != nil {
		return err
	}
	if block >= f.geo.BlockCount {
		return &AddressOutOfRangeError{Granule: "block", Index: block, Count: f.geo.BlockCount}
	}
	return f.eraseBlock(block)
}

func (f *Flash) eraseBlock(block uint32) error {
	start := time.Now()
	f.log.Debug("erase block begin", "block", block)
	addr := block * f.geo.BlockSize
	if !f.fourByte() {
		if err := f.writeCommand(cmdEraseBlock.name, f.tErase64KB(), cmdEraseBlock.encode(addr, false)); err != nil {
			return err
		}
	} else {
		// The 4-byte block erase opcode shares 0x21 with sector erase and
		// clears 4KB, so cover the block one sector at a time.
		for end := addr + f.geo.BlockSize; addr < end; addr += f.geo.SectorSize {
			if err := f.writeCommand(cmdEraseBlock.name, f.tErase4KB(), cmdEraseBlock.encode(addr, true)); err != nil {
				return err
			}
		}
	}
	f.log.Debug("erase block done", "block", block, "elapsed", time.Since(start))
	return nil
}

// EraseRange erases every sector touched by the n bytes starting at addr.
// Whole blocks inside the range are erased with one block erase, the rest
// sector by sector. The range is checked against the chip before anything
// is sent.
func (f *Flash) EraseRange(addr, n uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ready(); err != nil {
		return err
	}
	capacity := f.geo.Capacity()
	if addr >= capacity || n > capacity-addr {
		last := min(uint64(addr)+uint64(n)-1, math.MaxUint32)
		if n == 0 {
			last = uint64(addr)
		}
		return &AddressOutOfRangeError{Granule: "byte", Index: uint32(last), Count: capacity}
	}
	if n == 0 {
		return nil
	}

	first := addr / f.geo.SectorSize
	last := (addr + n - 1) / f.geo.SectorSize
	f.log.Debug("erase range", "addr", addr, "len", n, "first", first, "last", last)
	for s := first; s <= last; {
		if s%sectorsPerBlock == 0 && last-s >= sectorsPerBlock-1 {
			if err := f.eraseBlock(s / sectorsPerBlock); err != nil {
				return err
			}
			s += sectorsPerBlock
			continue
		}
		if err := f.eraseSector(s); err != nil {
			return err
		}
		s++
	}
	return nil
}

// PowerDown puts the chip into deep power-down. Only PowerUp is accepted
// until it is released.
func (f *Flash) PowerDown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.command([]byte{flashCmdPowerDown}); err != nil {
		return err
	}
	f.delay(f.tDP())
	return nil
}

// PowerUp releases the chip from deep power-down. It is harmless when the
// chip is already powered up.
func (f *Flash) PowerUp() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.command([]byte{flashCmdPowerUp}); err != nil {
		return err
	}
	f.delay(f.tRES1())
	return nil
}
