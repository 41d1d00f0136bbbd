package w25q

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// Device is a flash chip wired to a host SPI port.
type Device struct {
	FTDI  *ftdi.FT232H // set when Bus is "ftdi"
	Flash *Flash

	port  spi.PortCloser
	cs    gpio.PinOut // nil when the port drives chip select
	hold  gpio.PinOut // optional, held low while open
	clock physic.Frequency
	conn  spi.Conn
}

var hostInitialized atomic.Bool

// Open initializes the host drivers, connects to the SPI port described by
// cfg and returns a Device whose Flash still needs Init. log receives debug
// traces; it may be nil.
func Open(cfg Config, log *slog.Logger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	clock, err := cfg.Frequency()
	if err != nil {
		return nil, err
	}
	d := &Device{clock: clock}

	if cfg.Bus == "ftdi" {
		err = d.openFT2232H(cfg)
	} else {
		err = d.openPort(cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := d.connectSPI(spi.Mode(cfg.Mode)); err != nil {
		d.port.Close()
		return nil, err
	}
	if d.cs != nil {
		if err := d.cs.Out(gpio.High); err != nil {
			d.port.Close()
			return nil, fmt.Errorf("chip select: %w", err)
		}
	}
	// Keep other bus masters (an FPGA in configuration mode) off the bus.
	if d.hold != nil {
		if err := d.hold.Out(gpio.Low); err != nil {
			d.port.Close()
			return nil, fmt.Errorf("hold: %w", err)
		}
	}

	var t Transport = NewSPITransport(d.conn, d.cs)
	if cfg.Debug {
		t = NewTraceTransport(t, log)
	}
	d.Flash = NewFlash(t, cfg.Options(log))
	return d, nil
}

// Close releases the hold line and the SPI port.
func (d *Device) Close() error {
	var err error
	if d.hold != nil {
		err = d.hold.Out(gpio.High)
	}
	if cerr := d.port.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (d *Device) openFT2232H(cfg Config) error {
	const (
		vendorID  = 0x0403 // FTDI
		productID = 0x6010 // FT2232H
	)

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != vendorID || info.DevID != productID {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			break
		}
	}
	if d.FTDI == nil {
		return errors.New("FT2232H device not found")
	}

	// [FTDI-DS_FT2232H] / [iCEBreaker]
	// ADBUS0 | SCK
	// ADBUS1 | MOSI / FLASH_MOSI
	// ADBUS2 | MISO / FLASH_MISO
	// ADBUS4 | FLASH_SS
	// ADBUS7 | iCE_CRESET
	pins := map[string]gpio.PinIO{
		"D4": d.FTDI.D4, "D5": d.FTDI.D5, "D6": d.FTDI.D6, "D7": d.FTDI.D7,
		"C0": d.FTDI.C0, "C1": d.FTDI.C1, "C2": d.FTDI.C2, "C3": d.FTDI.C3,
		"C4": d.FTDI.C4, "C5": d.FTDI.C5, "C6": d.FTDI.C6, "C7": d.FTDI.C7,
	}
	var err error
	if d.cs, err = lookupPin(cfg.CS, func(name string) gpio.PinOut { return pins[name] }); err != nil {
		return err
	}
	if d.hold, err = lookupPin(cfg.Hold, func(name string) gpio.PinOut { return pins[name] }); err != nil {
		return err
	}

	d.port, err = d.FTDI.SPI()
	if err != nil {
		return fmt.Errorf("failed to get SPI port: %w", err)
	}
	return nil
}

func (d *Device) openPort(cfg Config) error {
	byName := func(name string) gpio.PinOut { return gpioreg.ByName(name) }
	var err error
	if d.cs, err = lookupPin(cfg.CS, byName); err != nil {
		return err
	}
	if d.hold, err = lookupPin(cfg.Hold, byName); err != nil {
		return err
	}

	d.port, err = spireg.Open(cfg.Bus)
	if err != nil {
		return fmt.Errorf("failed to open SPI port %q: %w", cfg.Bus, err)
	}
	return nil
}

// lookupPin resolves an optional pin name. An empty name yields a nil pin.
func lookupPin(name string, find func(string) gpio.PinOut) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	p := find(name)
	if p == nil {
		return nil, fmt.Errorf("unknown GPIO %q", name)
	}
	return p, nil
}

func (d *Device) connectSPI(mode spi.Mode) (err error) {
	// [FTDI-AN_114|1.2]> FTDI device can only support mode 0 and mode 2 due to the limitation of MPSSE engine
	// [W25Q128|6.1.1 Standard SPI Instructions] mode 0 and mode 3 are supported
	d.conn, err = d.port.Connect(d.clock, mode, 8)
	if err != nil {
		return fmt.Errorf("SPI connection failed: %w", err)
	}
	return nil
}
