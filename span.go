package w25q

import (
	"errors"
	"io"
)

// pageSpan is the part of a request that falls into a single page.
type pageSpan struct {
	page   uint32 // absolute page index
	offset uint32 // byte offset inside the page
	n      uint32 // byte count, at most pageSize-offset
	bufOff uint32 // position of the first byte in the caller's buffer
}

// splitSpan splits n bytes starting offset bytes after the beginning of
// startPage into single page pieces. Only the first piece may start inside a
// page and only the last may end inside one.
func splitSpan(pageSize, startPage, offset, n uint32) []pageSpan {
	page := startPage + offset/pageSize
	local := offset % pageSize

	spans := make([]pageSpan, 0, (local+n+pageSize-1)/pageSize)
	for done := uint32(0); done < n; {
		chunk := min(n-done, pageSize-local)
		spans = append(spans, pageSpan{page: page, offset: local, n: chunk, bufOff: done})
		done += chunk
		page++
		local = 0
	}
	return spans
}

// granule is a page, sector or block of the chip. Constructors read the
// geometry, so call them with f.mu held.
type granule struct {
	name  string
	size  uint32
	count uint32
}

func (f *Flash) pages() granule   { return granule{"page", f.geo.PageSize, f.geo.PageCount} }
func (f *Flash) sectors() granule { return granule{"sector", f.geo.SectorSize, f.geo.SectorCount} }
func (f *Flash) blocks() granule  { return granule{"block", f.geo.BlockSize, f.geo.BlockCount} }

// locate validates index and offset and returns the byte address they point
// to together with the number of bytes left in the granule.
func (f *Flash) locate(g granule, index, offset uint32) (addr, left uint32, err error) {
	if err := f.ready(); err != nil {
		return 0, 0, err
	}
	if index >= g.count {
		return 0, 0, &AddressOutOfRangeError{Granule: g.name, Index: index, Count: g.count}
	}
	if offset >= g.size {
		return 0, 0, &OffsetOutOfRangeError{Granule: g.name, Offset: offset, Size: g.size}
	}
	return index*g.size + offset, g.size - offset, nil
}

// checkRange validates a chip-wide byte range.
func (f *Flash) checkRange(addr uint32, n int) error {
	if err := f.ready(); err != nil {
		return err
	}
	capacity := f.geo.Capacity()
	if uint64(addr)+uint64(n) > uint64(capacity) {
		last := uint64(addr) + uint64(max(n, 1)) - 1
		return &AddressOutOfRangeError{Granule: "byte", Index: uint32(min(last, 1<<32-1)), Count: capacity}
	}
	return nil
}

// programPage programs buf at offset inside page. buf must not cross the
// page boundary.
func (f *Flash) programPage(buf []byte, page, offset uint32) error {
	addr := page*f.geo.PageSize + offset
	f.log.Debug("write page", "page", page, "offset", offset, "n", len(buf))
	return f.writeCommand(cmdPageProgram.name, f.tPP(), cmdPageProgram.encode(addr, f.fourByte()), buf)
}

// readRaw streams len(buf) bytes starting at addr, split into frames no
// larger than the transport allows.
func (f *Flash) readRaw(buf []byte, addr uint32) error {
	maxData := len(buf)
	if l, ok := f.t.(maxTxSizer); ok && l.MaxTxSize() > 0 {
		hdr := len(readCommand(0, f.fourByte()))
		maxData = max(l.MaxTxSize()-hdr, 1)
	}

	for off := 0; off < len(buf); {
		chunk := min(len(buf)-off, maxData)
		if err := f.query(readCommand(addr, f.fourByte()), buf[off:off+chunk]); err != nil {
			return err
		}
		addr += uint32(chunk)
		off += chunk
	}
	return nil
}

// writeSpans programs buf page by page starting offset bytes into startPage.
func (f *Flash) writeSpans(buf []byte, startPage, offset uint32) error {
	for _, s := range splitSpan(f.geo.PageSize, startPage, offset, uint32(len(buf))) {
		if err := f.programPage(buf[s.bufOff:s.bufOff+s.n], s.page, s.offset); err != nil {
			return err
		}
	}
	return nil
}

// readSpans reads into buf page by page starting offset bytes into
// startPage.
func (f *Flash) readSpans(buf []byte, startPage, offset uint32) error {
	for _, s := range splitSpan(f.geo.PageSize, startPage, offset, uint32(len(buf))) {
		f.log.Debug("read page", "page", s.page, "offset", s.offset, "n", s.n)
		addr := s.page*f.geo.PageSize + s.offset
		if err := f.readRaw(buf[s.bufOff:s.bufOff+s.n], addr); err != nil {
			return err
		}
	}
	return nil
}

// writeGranule writes as much of buf as fits in the granule after offset.
// Bytes past the end of the granule are dropped, not carried into the next.
func (f *Flash) writeGranule(kind func(*Flash) granule, buf []byte, index, offset uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := kind(f)

	addr, left, err := f.locate(g, index, offset)
	if err != nil {
		return 0, err
	}
	n := min(uint32(len(buf)), left)
	f.log.Debug("write "+g.name, g.name, index, "offset", offset, "n", n)
	if err := f.writeSpans(buf[:n], addr/f.geo.PageSize, addr%f.geo.PageSize); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (f *Flash) readGranule(kind func(*Flash) granule, buf []byte, index, offset uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := kind(f)

	addr, left, err := f.locate(g, index, offset)
	if err != nil {
		return 0, err
	}
	n := min(uint32(len(buf)), left)
	f.log.Debug("read "+g.name, g.name, index, "offset", offset, "n", n)
	if err := f.readSpans(buf[:n], addr/f.geo.PageSize, addr%f.geo.PageSize); err != nil {
		return 0, err
	}
	return int(n), nil
}

// WritePage programs buf at offset inside page and returns the number of
// bytes written. Bytes that would cross the end of the page are dropped.
// Programming only clears bits; erase the sector first to store arbitrary
// data.
func (f *Flash) WritePage(buf []byte, page, offset uint32) (int, error) {
	return f.writeGranule((*Flash).pages, buf, page, offset)
}

// WriteSector programs buf at offset inside sector, one page at a time.
// Bytes that would cross the end of the sector are dropped.
func (f *Flash) WriteSector(buf []byte, sector, offset uint32) (int, error) {
	return f.writeGranule((*Flash).sectors, buf, sector, offset)
}

// WriteBlock programs buf at offset inside block, one page at a time.
// Bytes that would cross the end of the block are dropped.
func (f *Flash) WriteBlock(buf []byte, block, offset uint32) (int, error) {
	return f.writeGranule((*Flash).blocks, buf, block, offset)
}

// ReadPage fills buf from offset inside page. It reads at most up to the
// end of the page and returns the number of bytes read.
func (f *Flash) ReadPage(buf []byte, page, offset uint32) (int, error) {
	return f.readGranule((*Flash).pages, buf, page, offset)
}

// ReadSector fills buf from offset inside sector, up to the end of the
// sector.
func (f *Flash) ReadSector(buf []byte, sector, offset uint32) (int, error) {
	return f.readGranule((*Flash).sectors, buf, sector, offset)
}

// ReadBlock fills buf from offset inside block, up to the end of the block.
func (f *Flash) ReadBlock(buf []byte, block, offset uint32) (int, error) {
	return f.readGranule((*Flash).blocks, buf, block, offset)
}

// WriteByteAt programs a single byte.
func (f *Flash) WriteByteAt(b byte, addr uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRange(addr, 1); err != nil {
		return err
	}
	return f.programPage([]byte{b}, addr/f.geo.PageSize, addr%f.geo.PageSize)
}

// ReadByteAt reads a single byte.
func (f *Flash) ReadByteAt(addr uint32) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRange(addr, 1); err != nil {
		return 0, err
	}
	var b [1]byte
	if err := f.readRaw(b[:], addr); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBytes fills buf starting at addr with a continuous read that is not
// limited to a page, sector or block.
func (f *Flash) ReadBytes(buf []byte, addr uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRange(addr, len(buf)); err != nil {
		return err
	}
	f.log.Debug("read bytes", "addr", addr, "n", len(buf))
	return f.readRaw(buf, addr)
}

var errNegativeOffset = errors.New("w25q: negative offset")

// ReadAt implements io.ReaderAt over the whole chip.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ready(); err != nil {
		return 0, err
	}

	capacity := int64(f.geo.Capacity())
	if off >= capacity {
		return 0, io.EOF
	}
	n := int(min(int64(len(p)), capacity-off))
	if err := f.readRaw(p[:n], uint32(off)); err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt over the whole chip, splitting p at page
// boundaries. The covered range must have been erased beforehand.
func (f *Flash) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if off > int64(^uint32(0)) {
		return 0, &AddressOutOfRangeError{Granule: "byte", Index: ^uint32(0), Count: f.geo.Capacity()}
	}
	if err := f.checkRange(uint32(off), len(p)); err != nil {
		return 0, err
	}
	f.log.Debug("write bytes", "addr", off, "n", len(p))
	if err := f.writeSpans(p, 0, uint32(off)); err != nil {
		return 0, err
	}
	return len(p), nil
}

const emptyChunk = 32

// isEmpty reports whether n bytes from offset inside the granule all read
// as 0xFF. n of 0, or one running past the granule, means "to the end".
func (f *Flash) isEmpty(kind func(*Flash) granule, index, offset, n uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := kind(f)

	addr, left, err := f.locate(g, index, offset)
	if err != nil {
		return false, err
	}
	if n == 0 || n > left {
		n = left
	}
	f.log.Debug("check empty "+g.name, g.name, index, "offset", offset, "n", n)

	var buf [emptyChunk]byte
	i := uint32(0)
	for ; i+emptyChunk <= n; i += emptyChunk {
		if err := f.readRaw(buf[:], addr+i); err != nil {
			return false, err
		}
		for _, b := range buf {
			if b != 0xFF {
				return false, nil
			}
		}
	}
	for ; i < n; i++ {
		if err := f.readRaw(buf[:1], addr+i); err != nil {
			return false, err
		}
		if buf[0] != 0xFF {
			return false, nil
		}
	}
	return true, nil
}

// IsEmptyPage reports whether n bytes from offset inside page are erased.
// n == 0 checks to the end of the page.
func (f *Flash) IsEmptyPage(page, offset, n uint32) (bool, error) {
	return f.isEmpty((*Flash).pages, page, offset, n)
}

// IsEmptySector reports whether n bytes from offset inside sector are
// erased. n == 0 checks to the end of the sector.
func (f *Flash) IsEmptySector(sector, offset, n uint32) (bool, error) {
	return f.isEmpty((*Flash).sectors, sector, offset, n)
}

// IsEmptyBlock reports whether n bytes from offset inside block are erased.
// n == 0 checks to the end of the block.
func (f *Flash) IsEmptyBlock(block, offset, n uint32) (bool, error) {
	return f.isEmpty((*Flash).blocks, block, offset, n)
}
