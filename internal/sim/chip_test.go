package sim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// send runs one write-only frame.
func send(t *testing.T, c *Chip, frame ...byte) {
	t.Helper()
	require.NoError(t, c.Select())
	require.NoError(t, c.Write(frame))
	require.NoError(t, c.Deselect())
}

// query runs one frame that reads n bytes back.
func query(t *testing.T, c *Chip, n int, frame ...byte) []byte {
	t.Helper()
	r := make([]byte, n)
	require.NoError(t, c.Select())
	require.NoError(t, c.WriteThenRead(frame, r))
	require.NoError(t, c.Deselect())
	return r
}

func TestWinbondIdentity(t *testing.T) {
	c := Winbond(0x19)
	c.SetUniqueID([8]byte{8, 7, 6, 5, 4, 3, 2, 1})

	assert.Equal(t, uint32(32<<20), c.Size())
	assert.Equal(t, []byte{0xEF, 0x40, 0x19}, query(t, c, 3, cmdReadID))
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, query(t, c, 8, cmdReadUniqueID, 0, 0, 0, 0))
}

func TestNewRejectsOddSize(t *testing.T) {
	assert.Panics(t, func() { New([3]byte{}, 1000) })
}

func TestProgramNeedsWriteEnable(t *testing.T) {
	c := Winbond(0x11)

	send(t, c, cmdPageProgram, 0, 0, 0, 0x00)
	assert.Equal(t, []byte{0xFF}, c.Peek(0, 1))

	send(t, c, cmdWriteEnable)
	assert.Equal(t, byte(srWEL), c.Status()[0]&srWEL)
	send(t, c, cmdPageProgram, 0, 0, 0, 0x00)
	assert.Equal(t, []byte{0x00}, c.Peek(0, 1))
	assert.Zero(t, c.Status()[0]&srWEL, "program clears WEL")
}

func TestProgramClearsBitsAndWraps(t *testing.T) {
	c := Winbond(0x11)

	send(t, c, cmdWriteEnable)
	send(t, c, cmdPageProgram, 0, 0x01, 0xFE, 0xF0, 0x0F, 0xAA, 0x55)
	assert.Equal(t, []byte{0xF0, 0x0F}, c.Peek(0x1FE, 2))
	assert.Equal(t, []byte{0xAA, 0x55}, c.Peek(0x100, 2), "data past the page end wraps")

	send(t, c, cmdWriteEnable)
	send(t, c, cmdPageProgram, 0, 0x01, 0xFE, 0x3C)
	assert.Equal(t, []byte{0x30}, c.Peek(0x1FE, 1))
}

func TestErase(t *testing.T) {
	c := Winbond(0x14)
	for _, addr := range []uint32{0x0000, 0x1000, 0x10000, 0x1F000, 0x20000} {
		send(t, c, cmdWriteEnable)
		send(t, c, cmdPageProgram, byte(addr>>16), byte(addr>>8), byte(addr), 0x00)
	}

	send(t, c, cmdWriteEnable)
	send(t, c, cmdSectorErase, 0, 0x10, 0x20)
	assert.Equal(t, []byte{0xFF}, c.Peek(0x1000, 1))
	assert.Equal(t, []byte{0x00}, c.Peek(0x0000, 1))

	send(t, c, cmdWriteEnable)
	send(t, c, cmdBlockErase, 0x01, 0x80, 0x00)
	assert.Equal(t, []byte{0xFF, 0xFF}, []byte{c.Peek(0x10000, 1)[0], c.Peek(0x1F000, 1)[0]})
	assert.Equal(t, []byte{0x00}, c.Peek(0x20000, 1))

	send(t, c, cmdWriteEnable)
	send(t, c, cmdSectorErase4, 0, 0x02, 0x00, 0x00)
	assert.Equal(t, []byte{0xFF}, c.Peek(0x20000, 1))

	send(t, c, cmdWriteEnable)
	send(t, c, cmdChipErase)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), c.Peek(0, 16))
}

func TestFastRead(t *testing.T) {
	c := Winbond(0x19)
	send(t, c, cmdWriteEnable)
	send(t, c, cmdPageProgram4, 0x01, 0x00, 0x00, 0x00, 1, 2, 3)

	assert.Equal(t, []byte{1, 2, 3, 0xFF}, query(t, c, 4, cmdFastRead4, 0x01, 0x00, 0x00, 0x00, 0x00))

	require.NoError(t, c.Select())
	assert.Error(t, c.WriteThenRead([]byte{cmdFastRead, 0, 0, 0}, make([]byte, 1)), "missing dummy byte")
	require.NoError(t, c.Deselect())
}

func TestBusyPolls(t *testing.T) {
	c := Winbond(0x11)
	c.BusyPolls = 2

	send(t, c, cmdWriteEnable)
	send(t, c, cmdPageProgram, 0, 0, 0, 0x00)

	// Commands are ignored while busy.
	send(t, c, cmdWriteEnable)
	assert.Equal(t, []byte{srBusy}, query(t, c, 1, cmdReadSR1))
	assert.Equal(t, []byte{srBusy}, query(t, c, 1, cmdReadSR1))
	assert.Equal(t, []byte{0}, query(t, c, 1, cmdReadSR1))
}

func TestStuck(t *testing.T) {
	c := Winbond(0x11)
	c.Stuck = true

	assert.Equal(t, []byte{0}, query(t, c, 1, cmdReadSR1))
	send(t, c, cmdWriteEnable)
	send(t, c, cmdSectorErase, 0, 0, 0)
	for range 10 {
		assert.Equal(t, []byte{srBusy}, query(t, c, 1, cmdReadSR1))
	}
}

func TestStatusRegisterWrite(t *testing.T) {
	c := Winbond(0x18)

	send(t, c, cmdWriteSR2, 0x02)
	assert.Zero(t, c.Status()[1], "needs write enable")

	send(t, c, cmdWriteEnable)
	send(t, c, cmdWriteSR2, 0x02)
	assert.Equal(t, []byte{0x02}, query(t, c, 1, cmdReadSR2))

	send(t, c, cmdWriteEnable)
	send(t, c, cmdWriteSR1, 0xFF)
	assert.Equal(t, []byte{0xFC}, query(t, c, 1, cmdReadSR1), "BUSY and WEL are read-only")
}

func TestPowerDown(t *testing.T) {
	c := Winbond(0x18)
	send(t, c, cmdPowerDown)

	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, query(t, c, 3, cmdReadID))
	send(t, c, cmdWriteEnable)
	assert.Zero(t, c.Status()[0]&srWEL)

	send(t, c, cmdPowerUp)
	assert.Equal(t, []byte{0xEF, 0x40, 0x18}, query(t, c, 3, cmdReadID))
}

func TestFramesAndFail(t *testing.T) {
	c := Winbond(0x18)
	send(t, c, cmdWriteEnable)
	query(t, c, 1, cmdReadSR1)
	assert.Equal(t, [][]byte{{cmdWriteEnable}, {cmdReadSR1}}, c.Frames())

	c.ResetFrames()
	assert.Empty(t, c.Frames())

	errFail := assert.AnError
	c.Fail = func([]byte) error { return errFail }
	require.NoError(t, c.Select())
	require.NoError(t, c.Write([]byte{cmdWriteDisable}))
	assert.ErrorIs(t, c.Deselect(), errFail)
	assert.Equal(t, byte(srWEL), c.Status()[0]&srWEL, "failed frame is dropped")

	assert.ErrorIs(t, c.Write([]byte{0}), errNotSelected)
}
