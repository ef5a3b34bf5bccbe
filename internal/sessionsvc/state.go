package sessionsvc

import (
	"encoding/json"
	"fmt"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/pkg/bus"
)

// State is the per-side session state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConfiguring
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

type (
	StateBus        = bus.Bus[joycon.Side, SideState]
	StatePublisher  = bus.Publisher[SideState]
	StateSubscriber = bus.Subscriber[joycon.Side, SideState]
)

// SideState is a read-only snapshot of one side's decoded state, published
// on the state bus after every session transition and every decoded report.
// Consumers (CLI watch, pointer forwarder) never mutate it.
type SideState struct {
	Side    joycon.Side       `json:"side"`
	State   State             `json:"state"`
	Buttons joycon.ButtonMask `json:"buttons"`
	Pressed []string          `json:"pressed,omitempty"`
	X       int64             `json:"x"`
	Y       int64             `json:"y"`
	DX      int32             `json:"dx"`
	DY      int32             `json:"dy"`
}
