package joycon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLEDCommand(t *testing.T) {
	cmd := LEDCommand(0x0f)
	assert.Len(t, cmd, 16)
	assert.Equal(t, []byte{0x09, 0x91, 0x01, 0x07, 0x00, 0x08, 0x00, 0x00}, cmd[:8])
	assert.Equal(t, byte(0x0f), cmd[8])
	for i := 9; i < 16; i++ {
		assert.Zero(t, cmd[i])
	}
}

func TestIndicatorCommands(t *testing.T) {
	a := IndicatorCommandA()
	b := IndicatorCommandB()
	assert.Equal(t, []byte{0x0c, 0x91, 0x01, 0x02, 0x00, 0x04, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00}, a)
	assert.Equal(t, []byte{0x0c, 0x91, 0x01, 0x04, 0x00, 0x04, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00}, b)

	// Callers hand these buffers to the transport; mutations must not leak
	// into the next connection's sequence.
	a[8] = 0
	assert.Equal(t, byte(0xff), IndicatorCommandA()[8])
}

func TestProductIDBytes(t *testing.T) {
	assert.Equal(t, [2]byte{0x67, 0x20}, ProductIDBytes(SideLeft))
	assert.Equal(t, [2]byte{0x66, 0x20}, ProductIDBytes(SideRight))
	assert.Equal(t, "Joy-Con 2 (L)", DeviceName(SideLeft))
	assert.Equal(t, "Joy-Con 2 (R)", DeviceName(SideRight))
}
