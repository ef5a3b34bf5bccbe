package sessionsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joyconduit/jc2-agent/internal/joycon"
	"go.uber.org/zap"
)

// session owns one side's connection state machine:
//
//	Disconnected -> Connecting -> Configuring -> Streaming -> Disconnected
//
// All decoded per-side state (pressed mask, integrator) is owned here and
// never touched by the other side's session. The only shared resource is
// the LED pattern sequencer.
type session struct {
	log     *zap.Logger
	side    joycon.Side
	layout  joycon.ReportLayout
	seq     *joycon.PatternSequencer
	delay   time.Duration
	publish StatePublisher

	mu         sync.Mutex
	busCtx     context.Context
	state      State
	link       Link
	cancel     context.CancelFunc
	integrator *joycon.Integrator
	buttons    joycon.ButtonMask
}

func newSession(log *zap.Logger, side joycon.Side, layout joycon.ReportLayout, seq *joycon.PatternSequencer, delay time.Duration, publish StatePublisher) *session {
	return &session{
		log:        log,
		side:       side,
		layout:     layout,
		seq:        seq,
		delay:      delay,
		publish:    publish,
		busCtx:     context.Background(),
		integrator: joycon.NewIntegrator(),
	}
}

// start binds the session to the service's run context. Teardown snapshots
// publish on it, so they reach subscribers even after the connection
// context that produced them is cancelled.
func (s *session) start(ctx context.Context) {
	s.mu.Lock()
	s.busCtx = ctx
	s.mu.Unlock()
}

// connect drives the state machine from Disconnected to Streaming. Any
// failure before Streaming moves the session back to Disconnected without
// touching the decoded state of a previous connection. A user-cancelled
// selection is a silent abort, not an error.
func (s *session) connect(ctx context.Context, backend Backend) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrSessionBusy, s.side, s.state)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateConnecting
	s.mu.Unlock()
	s.publishSnapshot(ctx)

	link, err := backend.Connect(ctx, s.side)
	if err != nil {
		s.toDisconnected(nil)
		if errors.Is(err, ErrUserCancelled) {
			s.log.Debug("Selection cancelled", zap.Stringer("side", s.side))
			return nil
		}
		return fmt.Errorf("failed to connect %s: %w", s.side, err)
	}

	s.mu.Lock()
	s.link = link
	s.state = StateConfiguring
	s.mu.Unlock()
	s.publishSnapshot(ctx)

	if err := s.configure(ctx, link); err != nil {
		s.toDisconnected(link)
		return err
	}

	// Fresh decoded state for the new connection. The previous session's
	// accumulator and counter baseline are never inherited.
	s.mu.Lock()
	s.integrator.Reset()
	s.buttons = 0
	s.state = StateStreaming
	s.mu.Unlock()
	s.publishSnapshot(ctx)
	s.log.Info("Streaming", zap.Stringer("side", s.side))

	go s.stream(ctx, link)
	return nil
}

// configure issues the fixed outbound command sequence: the LED command
// with the next shared pattern, the mandated pause, then the two indicator
// commands. Cancellation mid-sequence abandons the remaining commands;
// they are idempotent indicator sets, not negotiation steps.
func (s *session) configure(ctx context.Context, link Link) error {
	pattern := s.seq.Next()
	s.log.Debug("Configuring", zap.Stringer("side", s.side), zap.Uint8("pattern", pattern))
	if err := link.Write(ctx, joycon.LEDCommand(pattern)); err != nil {
		return &TransportError{Op: "led write", Err: err}
	}

	t := time.NewTimer(s.delay)
	select {
	case <-ctx.Done():
		if !t.Stop() {
			<-t.C
		}
		return ctx.Err()
	case <-t.C:
	}

	if err := link.Write(ctx, joycon.IndicatorCommandA()); err != nil {
		return &TransportError{Op: "indicator write", Err: err}
	}
	if err := link.Write(ctx, joycon.IndicatorCommandB()); err != nil {
		return &TransportError{Op: "indicator write", Err: err}
	}
	return nil
}

// stream drains the inbound report channel in arrival order. Reports are
// handled synchronously, one at a time, so decoded state always reflects a
// prefix of the report stream.
func (s *session) stream(ctx context.Context, link Link) {
	defer s.toDisconnected(link)
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-link.Reports():
			if !ok {
				s.log.Info("Link lost", zap.Stringer("side", s.side))
				return
			}
			s.handleReport(ctx, report)
		}
	}
}

func (s *session) handleReport(ctx context.Context, report []byte) {
	mask, err := s.layout.DecodeButtons(report)
	if err != nil {
		// Drop the report, keep prior decoded state.
		s.log.Debug("Dropping report", zap.Stringer("side", s.side), zap.Error(err))
		return
	}
	var dx, dy int32
	s.mu.Lock()
	s.buttons = mask
	if s.layout.HasMotion(report) {
		x, y, _ := s.layout.DecodeMotion(report)
		dx, dy = s.integrator.Update(x, y)
	}
	snap := s.snapshotLocked()
	snap.DX = dx
	snap.DY = dy
	s.mu.Unlock()
	s.publish(ctx, snap)
}

func (s *session) disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *session) toDisconnected(link Link) {
	if link != nil {
		link.Close()
	}
	s.mu.Lock()
	s.state = StateDisconnected
	s.link = nil
	cancel := s.cancel
	s.cancel = nil
	pubCtx := s.busCtx
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	// A user-initiated disconnect cancels the connection context before
	// teardown runs, so the final snapshot publishes on the service
	// context instead.
	s.publish(pubCtx, s.snapshot())
}

func (s *session) snapshot() SideState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *session) snapshotLocked() SideState {
	x, y := s.integrator.Position()
	return SideState{
		Side:    s.side,
		State:   s.state,
		Buttons: s.buttons,
		Pressed: s.layout.Pressed(s.buttons),
		X:       x,
		Y:       y,
	}
}

func (s *session) publishSnapshot(ctx context.Context) {
	s.publish(ctx, s.snapshot())
}
