package joycon

import "go.uber.org/atomic"

// ledPatterns is the fixed player-indicator cycle. Each value is the nibble
// embedded into the LED command of a new connection.
var ledPatterns = [8]uint8{0x01, 0x03, 0x07, 0x0f, 0x09, 0x05, 0x0d, 0x06}

// PatternSequencer hands out successive LED patterns from the fixed cycle.
// A single sequencer is shared by both sides so consecutive connections get
// distinct patterns; the cursor only ever advances and wraps after the
// eighth element. Safe for concurrent connection attempts.
type PatternSequencer struct {
	cursor atomic.Uint64
}

func NewPatternSequencer() *PatternSequencer {
	return &PatternSequencer{}
}

// Next advances the shared cursor and returns the pattern for the
// connection being set up. Call exactly once per new connection.
func (s *PatternSequencer) Next() uint8 {
	n := s.cursor.Inc() - 1
	return ledPatterns[n%uint64(len(ledPatterns))]
}
