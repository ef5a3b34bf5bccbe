// Package joycon implements the Joy-Con 2 wire protocol: fixed-layout input
// report decoding, wrap-corrected pointer motion integration and the outbound
// LED/indicator configuration commands.
package joycon

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Side identifies one of the two controller units. All per-side state
// (layout, counters, pressed mask) is keyed by it and never shared.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	}
	return fmt.Sprintf("side(%d)", uint8(s))
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "left", "l", "L":
		return SideLeft, nil
	case "right", "r", "R":
		return SideRight, nil
	}
	return 0, fmt.Errorf("invalid side: %q", s)
}

func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSide(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Revision selects between the two observed report layouts. The button byte
// moved between hardware revisions, so layouts are data rather than derived.
type Revision uint8

const (
	// RevisionRetail is the layout reported by retail units.
	RevisionRetail Revision = iota
	// RevisionPreview is the layout of early units with a different
	// pid/offset pairing.
	RevisionPreview
)

// ReportLayout describes where the decode fields of one side live inside an
// input report. Pure data, defined at build time.
type ReportLayout struct {
	Side       Side
	ButtonByte int
	// MotionX and MotionY are byte offsets of the little-endian 16-bit
	// pointer counters. Present only on the mouse-capable report variant.
	MotionX int
	MotionY int
	// ButtonBits names the logical button behind each bit of the button
	// byte, LSB first. The two sides are not mirror images of each other.
	ButtonBits [8]string
}

var layouts = map[Revision]map[Side]ReportLayout{
	RevisionRetail: {
		SideRight: {
			Side:       SideRight,
			ButtonByte: 4,
			MotionX:    16,
			MotionY:    18,
			ButtonBits: [8]string{"Y", "X", "B", "A", "SR", "SL", "R", "ZR"},
		},
		SideLeft: {
			Side:       SideLeft,
			ButtonByte: 6,
			MotionX:    16,
			MotionY:    18,
			ButtonBits: [8]string{"Down", "Up", "Right", "Left", "SR", "SL", "L", "ZL"},
		},
	},
	RevisionPreview: {
		SideRight: {
			Side:       SideRight,
			ButtonByte: 3,
			MotionX:    16,
			MotionY:    18,
			ButtonBits: [8]string{"Y", "X", "B", "A", "SR", "SL", "R", "ZR"},
		},
		SideLeft: {
			Side:       SideLeft,
			ButtonByte: 5,
			MotionX:    16,
			MotionY:    18,
			ButtonBits: [8]string{"Down", "Up", "Right", "Left", "SR", "SL", "L", "ZL"},
		},
	},
}

// LayoutFor returns the retail report layout for a side.
func LayoutFor(side Side) ReportLayout {
	return layouts[RevisionRetail][side]
}

// LayoutForRevision returns the report layout of a specific hardware revision.
func LayoutForRevision(rev Revision, side Side) (ReportLayout, error) {
	sides, ok := layouts[rev]
	if !ok {
		return ReportLayout{}, fmt.Errorf("unknown revision: %d", rev)
	}
	return sides[side], nil
}

// ErrMalformedReport is returned when a report buffer is too short to cover
// the fields a decode needs. The report is dropped; prior state stands.
var ErrMalformedReport = errors.New("malformed report")

// ButtonMask is the raw pressed-button bitmask of one side, replaced
// wholesale on every report. Bit meaning comes from ReportLayout.ButtonBits.
type ButtonMask uint8

func (m ButtonMask) Test(bit int) bool {
	return m&(1<<bit) != 0
}

// DecodeButtons reads the button byte verbatim. No validation beyond length.
func (l ReportLayout) DecodeButtons(report []byte) (ButtonMask, error) {
	if len(report) <= l.ButtonByte {
		return 0, fmt.Errorf("%w: %d bytes, button byte at %d", ErrMalformedReport, len(report), l.ButtonByte)
	}
	return ButtonMask(report[l.ButtonByte]), nil
}

// HasMotion reports whether the buffer is the mouse-capable report variant.
func (l ReportLayout) HasMotion(report []byte) bool {
	return len(report) >= l.MotionY+2
}

// DecodeMotion reads the raw 16-bit pointer counters. The counters wrap
// modulo 65536; see Integrator for delta reconstruction.
func (l ReportLayout) DecodeMotion(report []byte) (x, y uint16, err error) {
	if !l.HasMotion(report) {
		return 0, 0, fmt.Errorf("%w: %d bytes, motion counters end at %d", ErrMalformedReport, len(report), l.MotionY+2)
	}
	x = binary.LittleEndian.Uint16(report[l.MotionX:])
	y = binary.LittleEndian.Uint16(report[l.MotionY:])
	return x, y, nil
}

// Pressed expands a mask into logical button names using the layout's table.
func (l ReportLayout) Pressed(m ButtonMask) []string {
	var names []string
	for bit := 0; bit < 8; bit++ {
		if m.Test(bit) {
			names = append(names, l.ButtonBits[bit])
		}
	}
	return names
}
