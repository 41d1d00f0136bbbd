package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/gentam/w25q"
	"periph.io/x/host/v3/ftdi"
)

type InfoCmd struct{}

func (cmd *InfoCmd) Run(c *Context) error {
	f := c.flash
	g := f.Geometry()
	uid := f.UniqueID()

	fmt.Printf("Chip:            %s\n", f.Variant())
	fmt.Printf("JEDEC ID:        %06X\n", f.ID())
	fmt.Printf("Unique ID:       % X\n", uid[:])
	fmt.Printf("Capacity:        %d KiB\n", g.CapacityKiB)
	fmt.Printf("Pages:           %d x %d\n", g.PageCount, g.PageSize)
	fmt.Printf("Sectors:         %d x %d\n", g.SectorCount, g.SectorSize)
	fmt.Printf("Blocks:          %d x %d\n", g.BlockCount, g.BlockSize)
	fmt.Printf("4-byte address:  %t\n", f.Variant().FourByteAddressing())

	if c.device == nil || c.device.FTDI == nil {
		return nil
	}

	// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
	ft := c.device.FTDI
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Adapter:         %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		return fmt.Errorf("failed to read EEPROM: %w", err)
	}
	fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
	fmt.Printf("Desc:            %s\n", ee.Desc)
	fmt.Printf("Serial:          %s\n", ee.Serial)
	return nil
}

type StatusCmd struct {
	Set []string `optional placeholder:"SRn=VALUE" help:"Write a status register before printing, e.g. SR2=0x02."`
}

func (cmd *StatusCmd) Run(c *Context) error {
	for _, kv := range cmd.Set {
		var n int
		var v uint
		if _, err := fmt.Sscanf(kv, "SR%d=%v", &n, &v); err != nil || n < 1 || n > 3 || v > 0xFF {
			return fmt.Errorf("invalid register assignment %q", kv)
		}
		if err := c.flash.WriteStatusRegister(w25q.Register(n-1), byte(v)); err != nil {
			return err
		}
	}

	sr1, err := c.flash.Status()
	if err != nil {
		return err
	}
	sr := c.flash.StatusRegisters()
	line := fmt.Sprintf("SR1: %s", sr1)
	if sr1.Busy() {
		line = color.RedString(line)
	}
	fmt.Println(line)
	fmt.Printf("SR2: %s\n", w25q.StatusRegister2(sr[w25q.Register2]))
	fmt.Printf("SR3: %s\n", w25q.StatusRegister3(sr[w25q.Register3]))
	return nil
}

type ReadCmd struct {
	Offset int64  `optional type:"int" default:"0" help:"Byte address to start at."`
	Length int64  `optional type:"int" short:"n" default:"256" help:"Number of bytes to read; 0 reads to the end."`
	Output string `optional short:"o" help:"Output file (default: hexdump)."`
}

func (cmd *ReadCmd) Run(c *Context) error {
	size := int64(c.flash.Geometry().Capacity())
	if cmd.Offset < 0 || cmd.Offset >= size {
		return fmt.Errorf("offset %#x outside the %d byte chip", cmd.Offset, size)
	}
	n := cmd.Length
	if n <= 0 || cmd.Offset+n > size {
		n = size - cmd.Offset
	}

	data := make([]byte, n)
	if _, err := c.flash.ReadAt(data, cmd.Offset); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read flash failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "CRC16: %04X\n", checksum(data))

	if cmd.Output == "" {
		hexdump(os.Stdout, data, cmd.Offset)
		return nil
	}
	return os.WriteFile(cmd.Output, data, 0644)
}

type WriteCmd struct {
	File     string `required short:"f" help:"File to write."`
	Offset   int64  `optional type:"int" default:"0" help:"Byte address to start at."`
	NoErase  bool   `optional help:"Skip erasing the covered blocks and sectors first."`
	NoVerify bool   `optional help:"Skip the read back and checksum comparison."`
}

func (cmd *WriteCmd) Run(c *Context) error {
	data, err := os.ReadFile(cmd.File)
	if err != nil {
		return err
	}
	f := c.flash
	g := f.Geometry()
	if cmd.Offset < 0 || cmd.Offset+int64(len(data)) > int64(g.Capacity()) {
		return fmt.Errorf("%d bytes at %#x do not fit the %d byte chip", len(data), cmd.Offset, g.Capacity())
	}
	if len(data) == 0 {
		return nil
	}

	if !cmd.NoErase {
		if err := f.EraseRange(uint32(cmd.Offset), uint32(len(data))); err != nil {
			return fmt.Errorf("erase failed: %w", err)
		}
	}

	if _, err := f.WriteAt(data, cmd.Offset); err != nil {
		return fmt.Errorf("write flash failed: %w", err)
	}
	want := checksum(data)
	fmt.Fprintf(os.Stderr, "wrote %d bytes at %#x, CRC16 %04X\n", len(data), cmd.Offset, want)

	if cmd.NoVerify {
		return nil
	}
	back := make([]byte, len(data))
	if _, err := f.ReadAt(back, cmd.Offset); err != nil {
		return fmt.Errorf("read back failed: %w", err)
	}
	if got := checksum(back); got != want {
		i := 0
		for i < len(data) && data[i] == back[i] {
			i++
		}
		return fmt.Errorf("verify failed: CRC16 %04X != %04X, first difference at %#x", got, want, cmd.Offset+int64(i))
	}
	color.Green("verified")
	return nil
}

type EraseCmd struct {
	Chip   bool  `optional help:"Erase the whole chip."`
	Sector int64 `optional type:"int" default:"-1" help:"Sector index to erase."`
	Block  int64 `optional type:"int" default:"-1" help:"Block index to erase."`
}

func (cmd *EraseCmd) Run(c *Context) error {
	switch {
	case cmd.Chip:
		return c.flash.EraseChip()
	case cmd.Sector >= 0:
		return c.flash.EraseSector(uint32(cmd.Sector))
	case cmd.Block >= 0:
		return c.flash.EraseBlock(uint32(cmd.Block))
	}
	return errors.New("one of --chip, --sector or --block is required")
}

type EmptyCmd struct {
	Page   int64  `optional type:"int" default:"-1" help:"Page index to check."`
	Sector int64  `optional type:"int" default:"-1" help:"Sector index to check."`
	Block  int64  `optional type:"int" default:"-1" help:"Block index to check."`
	Offset uint32 `optional type:"int" default:"0" help:"Offset inside the page, sector or block."`
	Length uint32 `optional type:"int" short:"n" default:"0" help:"Bytes to check; 0 checks to the end."`
}

func (cmd *EmptyCmd) Run(c *Context) error {
	var (
		empty bool
		err   error
		what  string
	)
	switch {
	case cmd.Page >= 0:
		what = fmt.Sprintf("page %d", cmd.Page)
		empty, err = c.flash.IsEmptyPage(uint32(cmd.Page), cmd.Offset, cmd.Length)
	case cmd.Sector >= 0:
		what = fmt.Sprintf("sector %d", cmd.Sector)
		empty, err = c.flash.IsEmptySector(uint32(cmd.Sector), cmd.Offset, cmd.Length)
	case cmd.Block >= 0:
		what = fmt.Sprintf("block %d", cmd.Block)
		empty, err = c.flash.IsEmptyBlock(uint32(cmd.Block), cmd.Offset, cmd.Length)
	default:
		return errors.New("one of --page, --sector or --block is required")
	}
	if err != nil {
		return err
	}
	if empty {
		fmt.Printf("%s: %s\n", what, color.GreenString("empty"))
	} else {
		fmt.Printf("%s: %s\n", what, color.YellowString("programmed"))
	}
	return nil
}
