package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gentam/w25q"
	"github.com/gentam/w25q/internal/sim"
)

type Context struct {
	flash  *w25q.Flash
	device *w25q.Device // nil for an emulated chip
	close  func() error
}

var CLI struct {
	Config string `optional help:"YAML board profile."`
	Bus    string `optional help:"SPI port: ftdi or a periph.io port name."`
	CS     string `optional name:"cs" help:"Chip select GPIO, e.g. D4."`
	Hold   string `optional help:"GPIO held low while the flash is in use."`
	Clock  string `optional help:"SPI clock, e.g. 30MHz."`
	Debug  bool   `optional help:"Trace every command and transferred byte."`

	Sim   string `optional help:"Use an emulated chip stored in this image file instead of hardware."`
	SimID int    `optional name:"sim-id" type:"hex" default:"18" help:"Capacity code of a newly created emulated chip."`

	Info   InfoCmd   `cmd help:"Show chip identity and geometry."`
	Status StatusCmd `cmd help:"Show status registers."`
	Read   ReadCmd   `cmd help:"Read flash memory."`
	Write  WriteCmd  `cmd help:"Write a file to flash memory."`
	Erase  EraseCmd  `cmd help:"Erase the whole chip, a sector or a block."`
	Empty  EmptyCmd  `cmd help:"Check whether a page, sector or block is erased."`
}

func main() {
	k, err := kong.New(&CLI,
		kong.Name("w25q"),
		kong.Description("Read, write and erase W25Qxx SPI flash."),
		kong.NamedMapper("int", intMapper{}),
		kong.NamedMapper("hex", intMapper{base: 16}))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, err := k.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	c, err := open()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = ctx.Run(c)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	ctx.FatalIfErrorf(err)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if CLI.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (w25q.Config, error) {
	cfg := w25q.DefaultConfig()
	if CLI.Config != "" {
		var err error
		if cfg, err = w25q.LoadConfig(CLI.Config); err != nil {
			return cfg, err
		}
	}
	if CLI.Bus != "" {
		cfg.Bus = CLI.Bus
	}
	if CLI.CS != "" {
		cfg.CS = CLI.CS
	}
	if CLI.Hold != "" {
		cfg.Hold = CLI.Hold
	}
	if CLI.Clock != "" {
		cfg.Clock = CLI.Clock
	}
	cfg.Debug = cfg.Debug || CLI.Debug
	return cfg, nil
}

// open binds the flash to either the emulator or real hardware and
// initializes it.
func open() (*Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger()

	var c *Context
	if CLI.Sim != "" {
		c, err = openSim(cfg, log)
	} else {
		c, err = openHardware(cfg, log)
	}
	if err != nil {
		return nil, err
	}

	if err := c.flash.Init(); err != nil {
		var unknown *w25q.UnknownDeviceError
		if errors.As(err, &unknown) {
			err = fmt.Errorf("unknown flash ID (%06X)", unknown.ID)
		}
		c.close()
		return nil, err
	}
	return c, nil
}

func openSim(cfg w25q.Config, log *slog.Logger) (*Context, error) {
	chip, err := sim.LoadFile(CLI.Sim)
	if errors.Is(err, os.ErrNotExist) {
		chip = sim.Winbond(byte(CLI.SimID))
		err = nil
	}
	if err != nil {
		return nil, err
	}

	var t w25q.Transport = chip
	if cfg.Debug {
		t = w25q.NewTraceTransport(chip, log)
	}
	opts := cfg.Options(log)
	opts.Delay = func(time.Duration) {}
	return &Context{
		flash: w25q.NewFlash(t, opts),
		close: func() error { return chip.SaveFile(CLI.Sim) },
	}, nil
}

func openHardware(cfg w25q.Config, log *slog.Logger) (*Context, error) {
	d, err := w25q.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := d.Flash.PowerUp(); err != nil {
		d.Close()
		return nil, fmt.Errorf("flash power up failed: %w", err)
	}
	return &Context{
		flash:  d.Flash,
		device: d,
		close: func() error {
			err := d.Flash.PowerDown()
			if cerr := d.Close(); cerr != nil && err == nil {
				err = cerr
			}
			return err
		},
	}, nil
}
