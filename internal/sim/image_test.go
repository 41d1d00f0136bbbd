package sim

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRoundTrip(t *testing.T) {
	c := Winbond(0x15)
	c.SetUniqueID([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	send(t, c, cmdWriteEnable)
	send(t, c, cmdWriteSR2, 0x02)
	send(t, c, cmdWriteEnable)
	send(t, c, cmdPageProgram, 0x1F, 0xF0, 0x00, 0xDE, 0xAD)
	send(t, c, cmdWriteEnable)

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Size(), loaded.Size())
	assert.Equal(t, []byte{0xDE, 0xAD, 0xFF}, loaded.Peek(0x1FF000, 3))
	assert.Equal(t, []byte{0xEF, 0x40, 0x15}, query(t, loaded, 3, cmdReadID))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, query(t, loaded, 8, cmdReadUniqueID, 0, 0, 0, 0))

	st := loaded.Status()
	assert.Equal(t, byte(0x02), st[1])
	assert.Zero(t, st[0]&srWEL, "the write enable latch is volatile")
}

func TestImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.cbor")
	c := Winbond(0x11)
	send(t, c, cmdWriteEnable)
	send(t, c, cmdPageProgram, 0, 0, 0x10, 0x42)
	require.NoError(t, c.SaveFile(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, loaded.Peek(0x10, 1))
}

func TestLoadRejectsMalformedImages(t *testing.T) {
	tests := []struct {
		name string
		img  image
	}{
		{"zero size", image{}},
		{"odd size", image{Size: 1000}},
		{"short sector", image{Size: BlockSize, Sectors: map[uint32][]byte{0: {1, 2}}}},
		{"sector out of range", image{Size: BlockSize, Sectors: map[uint32][]byte{16: make([]byte, SectorSize)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := cbor.Marshal(tt.img)
			require.NoError(t, err)
			_, err = Load(bytes.NewReader(data))
			assert.Error(t, err)
		})
	}

	_, err := Load(bytes.NewReader([]byte{0xFF, 0x00}))
	assert.Error(t, err)
}
