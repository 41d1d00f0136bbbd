package w25q

import (
	"fmt"
	"time"
)

// Variant identifies a supported W25Qxx chip. Variants are ordered by
// capacity, smallest first.
type Variant uint8

const (
	VariantUnknown Variant = iota
	W25Q10
	W25Q20
	W25Q40
	W25Q80
	W25Q16
	W25Q32
	W25Q64
	W25Q128
	W25Q256
	W25Q512
)

// FourByteAddressing reports whether the chip needs 4-byte address commands.
func (v Variant) FourByteAddressing() bool { return v >= W25Q256 }

func (v Variant) String() string {
	for _, p := range knownFlash {
		if p.variant == v {
			return p.name
		}
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

type flashParams struct {
	variant    Variant
	name       string
	blockCount uint32

	tRES1      time.Duration
	tDP        time.Duration
	tW         time.Duration
	tPP        time.Duration
	tErase4KB  time.Duration
	tErase64KB time.Duration
	tEraseChip time.Duration
}

// winbond fills in the timings shared by the whole W25Q family.
//
// [W25Q128|9.6 AC Electrical Characteristics] maximums:
// tRES1 3us, tDP 3us, tW 15ms, tPP 3ms, tSE 400ms, tBE2 2000ms.
// tCE grows with capacity and is given per chip.
func winbond(v Variant, name string, blocks uint32, tCE time.Duration) flashParams {
	return flashParams{
		variant:    v,
		name:       name,
		blockCount: blocks,
		tRES1:      3 * time.Microsecond,
		tDP:        3 * time.Microsecond,
		tW:         15 * time.Millisecond,
		tPP:        3 * time.Millisecond,
		tErase4KB:  400 * time.Millisecond,
		tErase64KB: 2000 * time.Millisecond,
		tEraseChip: tCE,
	}
}

// knownFlash is keyed by the capacity byte (the low byte of the JEDEC ID).
var knownFlash = map[byte]flashParams{
	0x11: winbond(W25Q10, "W25Q10", 2, 1*time.Second),
	0x12: winbond(W25Q20, "W25Q20", 4, 2*time.Second),
	0x13: winbond(W25Q40, "W25Q40", 8, 4*time.Second),
	0x14: winbond(W25Q80, "W25Q80", 16, 6*time.Second),
	0x15: winbond(W25Q16, "W25Q16", 32, 25*time.Second),
	0x16: winbond(W25Q32, "W25Q32", 64, 50*time.Second),
	0x17: winbond(W25Q64, "W25Q64", 128, 100*time.Second),
	0x18: winbond(W25Q128, "W25Q128", 256, 200*time.Second),
	0x19: winbond(W25Q256, "W25Q256", 512, 400*time.Second),
	0x20: winbond(W25Q512, "W25Q512", 1024, 800*time.Second),
}

// lookupID resolves a 24-bit JEDEC ID. Only the capacity byte is matched,
// the manufacturer and memory type bytes are ignored.
func lookupID(id uint32) (flashParams, bool) {
	p, ok := knownFlash[byte(id)]
	return p, ok
}

// Timing holds delays and busy-wait limits. A zero field means "use the
// default": datasheet maximums of the identified chip for the operation
// limits, or the largest value among all known chips before Init.
type Timing struct {
	// PollInterval is the delay between status register polls.
	PollInterval time.Duration `yaml:"pollInterval"`
	// Settle is slept after write enable and after each completed
	// program or erase.
	Settle time.Duration `yaml:"settle"`
	// InitSettle is slept after deasserting chip select in Init.
	InitSettle time.Duration `yaml:"initSettle"`

	PowerUp     time.Duration `yaml:"powerUp"`     // tRES1
	PowerDown   time.Duration `yaml:"powerDown"`   // tDP
	StatusWrite time.Duration `yaml:"statusWrite"` // tW
	PageProgram time.Duration `yaml:"pageProgram"` // tPP
	SectorErase time.Duration `yaml:"sectorErase"` // tSE
	BlockErase  time.Duration `yaml:"blockErase"`  // tBE2
	ChipErase   time.Duration `yaml:"chipErase"`   // tCE
}

const (
	defaultPollInterval = time.Millisecond
	defaultSettle       = time.Millisecond
	defaultInitSettle   = 100 * time.Millisecond
)

func (f *Flash) paramOrMax(override time.Duration, get func(*flashParams) time.Duration) time.Duration {
	if override > 0 {
		return override
	}

	// get parameter if identified
	if f.pr != nil {
		return get(f.pr)
	}

	// fall back to maximum duration from all known flash parameters
	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (f *Flash) tRES1() time.Duration {
	return f.paramOrMax(f.timing.PowerUp, func(p *flashParams) time.Duration { return p.tRES1 })
}
func (f *Flash) tDP() time.Duration {
	return f.paramOrMax(f.timing.PowerDown, func(p *flashParams) time.Duration { return p.tDP })
}
func (f *Flash) tW() time.Duration {
	return f.paramOrMax(f.timing.StatusWrite, func(p *flashParams) time.Duration { return p.tW })
}
func (f *Flash) tPP() time.Duration {
	return f.paramOrMax(f.timing.PageProgram, func(p *flashParams) time.Duration { return p.tPP })
}
func (f *Flash) tErase4KB() time.Duration {
	return f.paramOrMax(f.timing.SectorErase, func(p *flashParams) time.Duration { return p.tErase4KB })
}
func (f *Flash) tErase64KB() time.Duration {
	return f.paramOrMax(f.timing.BlockErase, func(p *flashParams) time.Duration { return p.tErase64KB })
}
func (f *Flash) tEraseChip() time.Duration {
	return f.paramOrMax(f.timing.ChipErase, func(p *flashParams) time.Duration { return p.tEraseChip })
}

func (f *Flash) pollInterval() time.Duration {
	if f.timing.PollInterval > 0 {
		return f.timing.PollInterval
	}
	return defaultPollInterval
}

func (f *Flash) settle() time.Duration {
	if f.timing.Settle > 0 {
		return f.timing.Settle
	}
	return defaultSettle
}

func (f *Flash) initSettle() time.Duration {
	if f.timing.InitSettle > 0 {
		return f.timing.InitSettle
	}
	return defaultInitSettle
}
