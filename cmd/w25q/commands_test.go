package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/gentam/w25q"
	"github.com/gentam/w25q/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimContext(t *testing.T) (*Context, *sim.Chip) {
	t.Helper()
	chip := sim.Winbond(0x14)
	f := w25q.NewFlash(chip, w25q.Options{Delay: func(time.Duration) {}})
	require.NoError(t, f.Init())
	return &Context{flash: f, close: func() error { return nil }}, chip
}

func TestWriteReadEraseCommands(t *testing.T) {
	c, chip := newSimContext(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	out := filepath.Join(dir, "out.bin")
	data := []byte(strings.Repeat("w25q flash image ", 40))
	require.NoError(t, os.WriteFile(in, data, 0o644))

	require.NoError(t, (&WriteCmd{File: in, Offset: 0x1234}).Run(c))
	assert.Equal(t, data, chip.Peek(0x1234, uint32(len(data))))

	require.NoError(t, (&ReadCmd{Offset: 0x1234, Length: int64(len(data)), Output: out}).Run(c))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, (&EraseCmd{Sector: 1, Block: -1}).Run(c))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), chip.Peek(0x1234, 16))
	require.NoError(t, (&EmptyCmd{Page: -1, Sector: 1, Block: -1}).Run(c))

	assert.Error(t, (&EraseCmd{Sector: -1, Block: -1}).Run(c))
	assert.Error(t, (&EmptyCmd{Page: -1, Sector: -1, Block: -1}).Run(c))
}

func TestWriteCommandRejectsOversizedFile(t *testing.T) {
	c, chip := newSimContext(t)
	in := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(in, make([]byte, 32), 0o644))

	err := (&WriteCmd{File: in, Offset: int64(chip.Size()) - 16}).Run(c)
	assert.ErrorContains(t, err, "do not fit")
}

func TestWriteCommandErasesWholeBlocks(t *testing.T) {
	c, chip := newSimContext(t)
	in := filepath.Join(t.TempDir(), "block.bin")
	data := bytes.Repeat([]byte{0xA5}, 0x10000)
	require.NoError(t, os.WriteFile(in, data, 0o644))
	chip.ResetFrames()

	require.NoError(t, (&WriteCmd{File: in, Offset: 0x20000}).Run(c))

	var blockErases, sectorErases int
	for _, fr := range chip.Frames() {
		switch fr[0] {
		case 0xD8:
			blockErases++
		case 0x20:
			sectorErases++
		}
	}
	assert.Equal(t, 1, blockErases)
	assert.Zero(t, sectorErases)
	assert.Equal(t, data, chip.Peek(0x20000, 0x10000))
}

func TestStatusCommandSet(t *testing.T) {
	c, chip := newSimContext(t)

	require.NoError(t, (&StatusCmd{Set: []string{"SR2=0x02"}}).Run(c))
	assert.Equal(t, byte(0x02), chip.Status()[1])

	assert.Error(t, (&StatusCmd{Set: []string{"SR4=1"}}).Run(c))
	assert.Error(t, (&StatusCmd{Set: []string{"SR1=0x100"}}).Run(c))
}

func TestHexdump(t *testing.T) {
	color.NoColor = true

	data := make([]byte, 0, 68)
	for i := range 16 {
		data = append(data, byte(i))
	}
	data = append(data, bytes.Repeat([]byte{0xFF}, 48)...)
	data = append(data, 'w', '2', '5', 'q')

	var out bytes.Buffer
	hexdump(&out, data, 0x100)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "00000100  00 01 02 03 04 05 06 07  08 09 0a 0b 0c 0d 0e 0f  |................|", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00000110  ff ff"))
	assert.Equal(t, "*", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "00000140  77 32 35 71"))
	assert.True(t, strings.HasSuffix(lines[3], "|w25q            |"))
}

func TestHexdumpTrailingErasedRows(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	hexdump(&out, bytes.Repeat([]byte{0xFF}, 64), 0)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "*", lines[1])
	assert.Equal(t, "00000040", lines[2])
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint16(0x31C3), checksum([]byte("123456789")))
}

func TestIntMapper(t *testing.T) {
	var cli struct {
		Offset int64  `type:"int"`
		Length uint32 `type:"int"`
		ID     int    `name:"id" type:"hex"`
	}
	parser, err := kong.New(&cli,
		kong.NamedMapper("int", intMapper{}),
		kong.NamedMapper("hex", intMapper{base: 16}))
	require.NoError(t, err)

	_, err = parser.Parse([]string{"--offset=0x1000", "--length=0b101", "--id=19"})
	require.NoError(t, err)
	assert.Equal(t, int64(0x1000), cli.Offset)
	assert.Equal(t, uint32(5), cli.Length)
	assert.Equal(t, 0x19, cli.ID)

	_, err = parser.Parse([]string{"--offset=ten"})
	assert.Error(t, err)
}
