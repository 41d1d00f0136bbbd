package w25q

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRegister(t *testing.T) {
	sr := StatusRegister(0b1000_0011)
	assert.True(t, sr.StatusRegisterProtect())
	assert.False(t, sr.SectorProtect())
	assert.False(t, sr.TopBottom())
	assert.False(t, sr.BlockProtect2())
	assert.False(t, sr.BlockProtect1())
	assert.False(t, sr.BlockProtect0())
	assert.True(t, sr.WriteEnabled())
	assert.True(t, sr.Busy())
	assert.Equal(t, "10000011 SRP,WEL,BUSY", sr.String())

	sr = StatusRegister(0b0111_1100)
	assert.True(t, sr.SectorProtect())
	assert.True(t, sr.TopBottom())
	assert.True(t, sr.BlockProtect2())
	assert.True(t, sr.BlockProtect1())
	assert.True(t, sr.BlockProtect0())
	assert.False(t, sr.Busy())
	assert.Equal(t, "01111100 SEC,TB,BP2,BP1,BP0", sr.String())

	assert.Equal(t, "00000000", StatusRegister(0).String())
}

func TestStatusRegister2And3(t *testing.T) {
	sr2 := StatusRegister2(0b1100_0110)
	assert.True(t, sr2.Suspended())
	assert.True(t, sr2.Complement())
	assert.False(t, sr2.SecurityLock3())
	assert.True(t, sr2.QuadEnable())
	assert.False(t, sr2.StatusRegisterProtect1())
	assert.Equal(t, "11000110 SUS,CMP,QE", sr2.String())

	sr3 := StatusRegister3(0b0110_0011)
	assert.False(t, sr3.HoldReset())
	assert.Equal(t, 3, sr3.DriveStrength())
	assert.False(t, sr3.WriteProtectSelect())
	assert.True(t, sr3.PowerUpFourByte())
	assert.True(t, sr3.FourByteMode())
	assert.Equal(t, "01100011 DRV1,DRV0,ADP,ADS", sr3.String())
}

func TestRegister(t *testing.T) {
	assert.Equal(t, "SR1", Register1.String())
	assert.Equal(t, "SR3", Register3.String())
	assert.Equal(t, "Register(5)", Register(5).String())
	assert.Equal(t, byte(0x35), Register2.readOpcode())
	assert.Equal(t, byte(0x11), Register3.writeOpcode())
	assert.False(t, Register(-1).valid())
	assert.False(t, registerCount.valid())
}
