package hidraw

import (
	"testing"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/sstallion/go-hid"
	"github.com/stretchr/testify/assert"
)

func TestSideFor(t *testing.T) {
	tests := []struct {
		name string
		info hid.DeviceInfo
		side joycon.Side
		ok   bool
	}{
		{
			name: "left by pid",
			info: hid.DeviceInfo{VendorID: 0x057e, ProductID: 0x2067},
			side: joycon.SideLeft,
			ok:   true,
		},
		{
			name: "right by pid",
			info: hid.DeviceInfo{VendorID: 0x057e, ProductID: 0x2066},
			side: joycon.SideRight,
			ok:   true,
		},
		{
			name: "right by name fallback",
			info: hid.DeviceInfo{ProductStr: "Joy-Con 2 (R)"},
			side: joycon.SideRight,
			ok:   true,
		},
		{
			name: "vendor match alone is not enough",
			info: hid.DeviceInfo{VendorID: 0x057e, ProductID: 0x2009},
			ok:   false,
		},
		{
			name: "unrelated device",
			info: hid.DeviceInfo{VendorID: 0x046d, ProductID: 0xc52b, ProductStr: "USB Receiver"},
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, ok := sideFor(tt.info)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.side, side)
			}
		})
	}
}

func TestControllerName(t *testing.T) {
	assert.Equal(t, "Nintendo Joy-Con 2 (L)", controllerName(hid.DeviceInfo{
		MfrStr:     "Nintendo",
		ProductStr: "Joy-Con 2 (L)",
	}))
	assert.Equal(t, "Joy-Con 2 (L)", controllerName(hid.DeviceInfo{
		ProductStr: "Joy-Con 2 (L)",
	}))
	assert.Equal(t, "057e:2067", controllerName(hid.DeviceInfo{
		VendorID:  0x057e,
		ProductID: 0x2067,
	}))
}
