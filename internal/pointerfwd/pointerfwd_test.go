package pointerfwd

import (
	"testing"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/internal/sessionsvc"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestApplyMergesSides(t *testing.T) {
	f := New(zap.NewNop(), nil)

	report, changed := f.apply(sessionsvc.SideState{
		Side:    joycon.SideRight,
		State:   sessionsvc.StateStreaming,
		Pressed: []string{"ZR"},
		DX:      5,
		DY:      -3,
	})
	assert.True(t, changed)
	assert.Equal(t, []byte{0x01, 5, 0xfd}, report)

	// Left side adds its mapped button without clearing the right's.
	report, changed = f.apply(sessionsvc.SideState{
		Side:    joycon.SideLeft,
		State:   sessionsvc.StateStreaming,
		Pressed: []string{"ZL", "Up"},
	})
	assert.True(t, changed)
	assert.Equal(t, byte(0x03), report[0])
}

func TestApplyIgnoresIdleSnapshots(t *testing.T) {
	f := New(zap.NewNop(), nil)

	_, changed := f.apply(sessionsvc.SideState{
		Side:  joycon.SideLeft,
		State: sessionsvc.StateStreaming,
	})
	assert.False(t, changed)

	// A release is a change even with zero motion.
	f.apply(sessionsvc.SideState{
		Side:    joycon.SideLeft,
		State:   sessionsvc.StateStreaming,
		Pressed: []string{"ZL"},
	})
	_, changed = f.apply(sessionsvc.SideState{
		Side:  joycon.SideLeft,
		State: sessionsvc.StateStreaming,
	})
	assert.True(t, changed)
}

func TestApplyClampsDeltas(t *testing.T) {
	f := New(zap.NewNop(), nil)
	report, changed := f.apply(sessionsvc.SideState{
		Side:  joycon.SideRight,
		State: sessionsvc.StateStreaming,
		DX:    1000,
		DY:    -1000,
	})
	assert.True(t, changed)
	assert.Equal(t, byte(127), report[1])
	assert.Equal(t, byte(0x81), report[2])
}

func TestApplyDropsButtonsOnDisconnect(t *testing.T) {
	f := New(zap.NewNop(), nil)
	f.apply(sessionsvc.SideState{
		Side:    joycon.SideRight,
		State:   sessionsvc.StateStreaming,
		Pressed: []string{"ZR"},
	})
	report, changed := f.apply(sessionsvc.SideState{
		Side:    joycon.SideRight,
		State:   sessionsvc.StateDisconnected,
		Pressed: []string{"ZR"},
	})
	assert.True(t, changed)
	assert.Zero(t, report[0])
}

func TestCustomMapping(t *testing.T) {
	f := New(zap.NewNop(), nil, WithButtonMapping(map[string]int{"A": 0}))
	report, changed := f.apply(sessionsvc.SideState{
		Side:    joycon.SideRight,
		State:   sessionsvc.StateStreaming,
		Pressed: []string{"A", "ZR"},
	})
	assert.True(t, changed)
	assert.Equal(t, byte(0x01), report[0])
}
