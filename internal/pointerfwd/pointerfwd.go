// Package pointerfwd re-emits decoded controller state as a virtual
// relative pointer device, so the reconstructed motion drives the host
// cursor directly.
package pointerfwd

import (
	"context"
	"fmt"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/internal/sessionsvc"
	"github.com/psanford/uhid"
	"go.uber.org/zap"
)

// mouseDescriptor is a 3-button relative mouse: one button byte, signed
// 8-bit X and Y. No report id.
var mouseDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xa1, 0x01, // Collection (Application)
	0x09, 0x01, //   Usage (Pointer)
	0xa1, 0x00, //   Collection (Physical)
	0x05, 0x09, //     Usage Page (Button)
	0x19, 0x01, //     Usage Minimum (1)
	0x29, 0x03, //     Usage Maximum (3)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x95, 0x03, //     Report Count (3)
	0x75, 0x01, //     Report Size (1)
	0x81, 0x02, //     Input (Data, Variable, Absolute)
	0x95, 0x01, //     Report Count (1)
	0x75, 0x05, //     Report Size (5)
	0x81, 0x03, //     Input (Constant)
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x30, //     Usage (X)
	0x09, 0x31, //     Usage (Y)
	0x15, 0x81, //     Logical Minimum (-127)
	0x25, 0x7f, //     Logical Maximum (127)
	0x75, 0x08, //     Report Size (8)
	0x95, 0x02, //     Report Count (2)
	0x81, 0x06, //     Input (Data, Variable, Relative)
	0xc0, //   End Collection
	0xc0, // End Collection
}

// defaultMapping assigns logical controller buttons to pointer buttons.
// Values are bit positions in the mouse button byte.
var defaultMapping = map[string]int{
	"ZR": 0,
	"ZL": 1,
	"R":  2,
}

type Option func(*Forwarder)

func WithButtonMapping(mapping map[string]int) Option {
	return func(f *Forwarder) {
		f.mapping = mapping
	}
}

type Forwarder struct {
	log      *zap.Logger
	sessions *sessionsvc.Service
	mapping  map[string]int
	ready    chan struct{}

	sideMasks   map[joycon.Side]uint8
	lastButtons uint8
}

func New(log *zap.Logger, sessions *sessionsvc.Service, opts ...Option) *Forwarder {
	f := &Forwarder{
		log:       log,
		sessions:  sessions,
		mapping:   defaultMapping,
		ready:     make(chan struct{}),
		sideMasks: make(map[joycon.Side]uint8),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Forwarder) Ready() <-chan struct{} {
	return f.ready
}

// Start creates the virtual pointer and forwards decoded snapshots until
// ctx is cancelled. Snapshots of both sides merge into one pointer: either
// side can move the cursor and press its mapped buttons.
func (f *Forwarder) Start(ctx context.Context) error {
	dev, err := uhid.NewDevice("jc2-pointer", mouseDescriptor)
	if err != nil {
		return fmt.Errorf("failed to create uhid device: %w", err)
	}
	dev.Data.Bus = 0x06 // virtual
	dev.Data.VendorID = joycon.VendorID
	dev.Data.ProductID = 0x0001

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := dev.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open uhid device: %w", err)
	}
	go func() {
		// A pointer has no output reports; drain the kernel events.
		for range events {
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-f.sessions.Ready():
	}
	ch := f.sessions.SubscribeState(ctx)
	close(f.ready)
	f.log.Info("Pointer forwarder started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			report, changed := f.apply(msg.Message)
			if !changed {
				continue
			}
			if err := dev.InjectEvent(report); err != nil {
				return fmt.Errorf("failed to inject pointer event: %w", err)
			}
		}
	}
}

// apply folds one side snapshot into the pointer state and builds the next
// input report. It reports false when the snapshot moves nothing and
// changes no buttons.
func (f *Forwarder) apply(s sessionsvc.SideState) ([]byte, bool) {
	var mask uint8
	if s.State == sessionsvc.StateStreaming {
		for _, name := range s.Pressed {
			if bit, ok := f.mapping[name]; ok {
				mask |= 1 << bit
			}
		}
	}
	f.sideMasks[s.Side] = mask

	var buttons uint8
	for _, m := range f.sideMasks {
		buttons |= m
	}
	changed := buttons != f.lastButtons || s.DX != 0 || s.DY != 0
	f.lastButtons = buttons

	return []byte{buttons, byte(clampInt8(s.DX)), byte(clampInt8(s.DY))}, changed
}

func clampInt8(v int32) int8 {
	switch {
	case v > 127:
		return 127
	case v < -127:
		return -127
	}
	return int8(v)
}
