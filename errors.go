package w25q

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotInitialized    = errors.New("w25q: device not initialized")
	ErrUnknownDevice     = errors.New("w25q: unknown device")
	ErrOffsetOutOfRange  = errors.New("w25q: offset out of range")
	ErrAddressOutOfRange = errors.New("w25q: address out of range")
	ErrStuckDevice       = errors.New("w25q: device stuck busy")
)

// UnknownDeviceError is returned by Init when the JEDEC ID does not match a
// supported chip.
type UnknownDeviceError struct {
	ID uint32
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("w25q: unknown device (JEDEC ID %06X)", e.ID)
}

func (e *UnknownDeviceError) Is(target error) bool { return target == ErrUnknownDevice }

// OffsetOutOfRangeError is returned when the byte offset inside a page,
// sector or block is not smaller than its size. Nothing is transferred.
type OffsetOutOfRangeError struct {
	Granule string // "page", "sector" or "block"
	Offset  uint32
	Size    uint32
}

func (e *OffsetOutOfRangeError) Error() string {
	return fmt.Sprintf("w25q: %s offset %d out of range [0, %d)", e.Granule, e.Offset, e.Size)
}

func (e *OffsetOutOfRangeError) Is(target error) bool { return target == ErrOffsetOutOfRange }

// AddressOutOfRangeError is returned when a page, sector or block index or a
// byte address lies beyond the end of the chip.
type AddressOutOfRangeError struct {
	Granule string // "byte", "page", "sector" or "block"
	Index   uint32
	Count   uint32
}

func (e *AddressOutOfRangeError) Error() string {
	return fmt.Sprintf("w25q: %s %d out of range [0, %d)", e.Granule, e.Index, e.Count)
}

func (e *AddressOutOfRangeError) Is(target error) bool { return target == ErrAddressOutOfRange }

// StuckDeviceError is returned when the BUSY bit does not clear within the
// operation's time limit.
type StuckDeviceError struct {
	Op      string
	Elapsed time.Duration
	Status  StatusRegister
}

func (e *StuckDeviceError) Error() string {
	return fmt.Sprintf("w25q: %s still busy after %v (SR1 %v)", e.Op, e.Elapsed, e.Status)
}

func (e *StuckDeviceError) Is(target error) bool { return target == ErrStuckDevice }
