package w25q

import (
	"context"
	"encoding/hex"
	"log/slog"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Transport is the byte level link to one flash chip. A command frame is
// Select, any number of Write calls and at most one trailing WriteThenRead,
// then Deselect.
type Transport interface {
	// Select asserts chip select.
	Select() error
	// Deselect deasserts chip select, ending the frame.
	Deselect() error
	// Write sends w and discards whatever is clocked in.
	Write(w []byte) error
	// WriteThenRead sends w, then clocks in len(r) bytes into r.
	WriteThenRead(w, r []byte) error
}

// maxTxSizer is implemented by transports that limit the size of a frame.
type maxTxSizer interface {
	MaxTxSize() int
}

// SPITransport adapts a periph.io SPI connection to Transport. Bytes written
// during a frame are buffered and sent as a single SPI transaction, so
// ports that drive chip select themselves work as well as ports with a
// separate GPIO chip select.
type SPITransport struct {
	conn    spi.Conn
	cs      gpio.PinOut // nil when the port drives chip select
	pending []byte
}

// NewSPITransport returns a Transport over conn. cs may be nil when the SPI
// port asserts chip select for the duration of each transaction.
func NewSPITransport(conn spi.Conn, cs gpio.PinOut) *SPITransport {
	return &SPITransport{conn: conn, cs: cs}
}

func (t *SPITransport) Select() error {
	t.pending = t.pending[:0]
	if t.cs == nil {
		return nil
	}
	return t.cs.Out(gpio.Low)
}

func (t *SPITransport) Deselect() (err error) {
	if len(t.pending) > 0 {
		err = t.conn.Tx(t.pending, nil)
		t.pending = t.pending[:0]
	}
	if t.cs != nil {
		if csErr := t.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}
	return err
}

func (t *SPITransport) Write(w []byte) error {
	t.pending = append(t.pending, w...)
	return nil
}

func (t *SPITransport) WriteThenRead(w, r []byte) error {
	head := len(t.pending) + len(w)
	buf := make([]byte, head+len(r))
	copy(buf, t.pending)
	copy(buf[len(t.pending):], w)
	t.pending = t.pending[:0]

	if err := t.conn.Tx(buf, buf); err != nil {
		return err
	}
	copy(r, buf[head:])
	return nil
}

// MaxTxSize returns the largest frame the port accepts, or 0 when unlimited.
func (t *SPITransport) MaxTxSize() int {
	if l, ok := t.conn.(conn.Limits); ok {
		return l.MaxTxSize()
	}
	return 0
}

// TraceTransport logs every frame boundary and transferred byte at debug
// level before forwarding to the wrapped Transport.
type TraceTransport struct {
	t   Transport
	log *slog.Logger
}

func NewTraceTransport(t Transport, log *slog.Logger) *TraceTransport {
	return &TraceTransport{t: t, log: log}
}

func (t *TraceTransport) Select() error {
	err := t.t.Select()
	t.trace("select", err)
	return err
}

func (t *TraceTransport) Deselect() error {
	err := t.t.Deselect()
	t.trace("deselect", err)
	return err
}

func (t *TraceTransport) Write(w []byte) error {
	err := t.t.Write(w)
	t.trace("write", err, slog.String("tx", hex.EncodeToString(w)))
	return err
}

func (t *TraceTransport) WriteThenRead(w, r []byte) error {
	err := t.t.WriteThenRead(w, r)
	t.trace("write-then-read", err,
		slog.String("tx", hex.EncodeToString(w)),
		slog.String("rx", hex.EncodeToString(r)))
	return err
}

func (t *TraceTransport) MaxTxSize() int {
	if l, ok := t.t.(maxTxSizer); ok {
		return l.MaxTxSize()
	}
	return 0
}

func (t *TraceTransport) trace(msg string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.Any("err", err))
	}
	t.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
