package w25q

const (
	pageSize        = 256
	sectorSize      = 4096
	sectorsPerBlock = 16
	blockSize       = sectorSize * sectorsPerBlock
)

// Geometry describes the erase and program granularity of a chip.
// Page, sector and block addresses are plain indices; the byte address of an
// index is index times the corresponding size.
type Geometry struct {
	PageSize    uint32
	PageCount   uint32
	SectorSize  uint32
	SectorCount uint32
	BlockSize   uint32
	BlockCount  uint32
	CapacityKiB uint32
}

func newGeometry(blockCount uint32) Geometry {
	g := Geometry{
		PageSize:   pageSize,
		SectorSize: sectorSize,
		BlockSize:  blockSize,
		BlockCount: blockCount,
	}
	g.SectorCount = g.BlockCount * sectorsPerBlock
	g.PageCount = g.SectorCount * g.SectorSize / g.PageSize
	g.CapacityKiB = g.SectorCount * g.SectorSize / 1024
	return g
}

// Capacity returns the chip size in bytes.
func (g Geometry) Capacity() uint32 { return g.SectorCount * g.SectorSize }

func (g Geometry) PageToSector(page uint32) uint32 {
	return scale(page, g.PageSize, g.SectorSize)
}

func (g Geometry) PageToBlock(page uint32) uint32 {
	return scale(page, g.PageSize, g.BlockSize)
}

func (g Geometry) SectorToBlock(sector uint32) uint32 {
	return scale(sector, g.SectorSize, g.BlockSize)
}

// SectorToPage and BlockToPage are exact because sector and block sizes are
// multiples of the page size.
func (g Geometry) SectorToPage(sector uint32) uint32 {
	return scale(sector, g.SectorSize, g.PageSize)
}

func (g Geometry) BlockToPage(block uint32) uint32 {
	return scale(block, g.BlockSize, g.PageSize)
}

func (g Geometry) BlockToSector(block uint32) uint32 {
	return scale(block, g.BlockSize, g.SectorSize)
}

// scale converts n units of size from into units of size to. It returns 0
// for the zero Geometry that Flash reports before Init.
func scale(n, from, to uint32) uint32 {
	if to == 0 {
		return 0
	}
	return n * from / to
}
