package sim

import (
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// image is the on-disk form of a Chip. Only programmed sectors are stored.
type image struct {
	ID      [3]byte           `cbor:"1,keyasint"`
	UID     [8]byte           `cbor:"2,keyasint"`
	Size    uint32            `cbor:"3,keyasint"`
	Status  [3]byte           `cbor:"4,keyasint"`
	Sectors map[uint32][]byte `cbor:"5,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create image CBOR encoder mode: %v", err))
	}
}

// Save writes the chip contents and registers to w as CBOR.
func (c *Chip) Save(w io.Writer) error {
	c.mu.Lock()
	img := image{
		ID:      c.id,
		UID:     c.uid,
		Size:    c.size,
		Status:  c.sr,
		Sectors: make(map[uint32][]byte, len(c.sectors)),
	}
	img.Status[0] &^= srBusy | srWEL
	for n, s := range c.sectors {
		img.Sectors[n] = append([]byte(nil), s[:]...)
	}
	c.mu.Unlock()

	return encMode.NewEncoder(w).Encode(img)
}

// Load reads a chip saved with Save.
func Load(r io.Reader) (*Chip, error) {
	var img image
	if err := cbor.NewDecoder(r).Decode(&img); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Size == 0 || img.Size%BlockSize != 0 {
		return nil, fmt.Errorf("image size %d is not a multiple of %d", img.Size, BlockSize)
	}

	c := New(img.ID, img.Size)
	c.uid = img.UID
	c.sr = img.Status
	for n, data := range img.Sectors {
		if len(data) != SectorSize || n >= img.Size/SectorSize {
			return nil, fmt.Errorf("image sector %d is malformed", n)
		}
		s := new([SectorSize]byte)
		copy(s[:], data)
		c.sectors[n] = s
	}
	return c, nil
}

// LoadFile loads an image from path.
func LoadFile(path string) (*Chip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// SaveFile writes the image to path, replacing it.
func (c *Chip) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
