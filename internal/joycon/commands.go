package joycon

import "time"

// Device identity. The controller advertises a manufacturer-data block
// starting with the company identifier followed by the little-endian
// product id of the side; environments without manufacturer-data filtering
// fall back to matching the advertised device name. CompanyID and
// ProductIDBytes belong to that BLE advertising filter and are for GATT
// transports; the hidraw backend matches on VendorID and ProductID
// instead.
const (
	CompanyID = 0x0553

	VendorID       = 0x057e
	ProductIDLeft  = 0x2067
	ProductIDRight = 0x2066

	DeviceNameLeft  = "Joy-Con 2 (L)"
	DeviceNameRight = "Joy-Con 2 (R)"
)

// ProductIDBytes returns the 2-byte little-endian product id pair matched
// against the advertising data of a side.
func ProductIDBytes(side Side) [2]byte {
	if side == SideLeft {
		return [2]byte{0x67, 0x20}
	}
	return [2]byte{0x66, 0x20}
}

// DeviceName returns the advertised-name fallback filter for a side.
func DeviceName(side Side) string {
	if side == SideLeft {
		return DeviceNameLeft
	}
	return DeviceNameRight
}

// GATT identifiers. One primary service, one notify characteristic for
// input reports, one write characteristic for commands. No negotiation.
const (
	ServiceUUID         = "ab7de9be-89fe-49ad-828f-118f09df7fd0"
	InputCharacteristic = "ab7de9be-89fe-49ad-828f-118f09df7fd2"
	WriteCharacteristic = "649d4ac9-8eb7-4e6c-af44-1ea54fe5f005"
)

// ConfigureDelay is the pause required between the LED command and the two
// indicator commands. Sending faster is not guaranteed correct by the
// device; the value is an empirically derived pacing control.
const ConfigureDelay = 500 * time.Millisecond

// LEDCommand builds the player-LED set command embedding one sequencer
// pattern nibble.
func LEDCommand(pattern uint8) []byte {
	return []byte{
		0x09, 0x91, 0x01, 0x07, 0x00, 0x08, 0x00, 0x00,
		pattern, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
}

// IndicatorCommandA is the first rumble/player-indicator initialization
// command, byte-for-byte constant.
func IndicatorCommandA() []byte {
	return []byte{0x0c, 0x91, 0x01, 0x02, 0x00, 0x04, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00}
}

// IndicatorCommandB is the second indicator initialization command.
func IndicatorCommandB() []byte {
	return []byte{0x0c, 0x91, 0x01, 0x04, 0x00, 0x04, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00}
}
