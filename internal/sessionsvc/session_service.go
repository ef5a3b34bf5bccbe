// Package sessionsvc manages the two controller connection sessions: it
// runs the transport backends, drives the per-side state machines, keeps
// controller metadata and publishes decoded state for consumers.
package sessionsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/pkg/bus"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

var defaultOptions = serviceOptions{
	backends:       make(map[string]Backend),
	backoffTimeout: 5 * time.Second,
	configureDelay: joycon.ConfigureDelay,
	revision:       joycon.RevisionRetail,
}

type serviceOptions struct {
	backends       map[string]Backend
	backoffTimeout time.Duration
	configureDelay time.Duration
	revision       joycon.Revision
}

type Option func(*serviceOptions)

func WithBackend(name string, backend Backend) Option {
	return func(o *serviceOptions) {
		o.backends[name] = backend
	}
}

func WithBackoffTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.backoffTimeout = d
	}
}

// WithConfigureDelay overrides the inter-command pacing delay. Tests only;
// real devices require the protocol default.
func WithConfigureDelay(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.configureDelay = d
	}
}

func WithRevision(rev joycon.Revision) Option {
	return func(o *serviceOptions) {
		o.revision = rev
	}
}

type availableController struct {
	backend string
	info    BackendController
}

type Service struct {
	log     *zap.Logger
	db      *badger.DB
	options serviceOptions
	now     func() time.Time
	ready   chan struct{}

	backendBus *BackendBus
	stateBus   *StateBus
	seq        *joycon.PatternSequencer
	sessions   map[joycon.Side]*session
	available  *xsync.MapOf[joycon.Side, availableController]
}

func New(db *badger.DB, log *zap.Logger, now func() time.Time, opts ...Option) *Service {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	s := &Service{
		db:         db,
		log:        log,
		options:    options,
		now:        now,
		ready:      make(chan struct{}),
		backendBus: bus.NewBus[string, BackendEvent](log),
		stateBus:   bus.NewBus[joycon.Side, SideState](log),
		seq:        joycon.NewPatternSequencer(),
		sessions:   make(map[joycon.Side]*session),
		available:  xsync.NewMapOf[joycon.Side, availableController](),
	}
	for _, side := range []joycon.Side{joycon.SideLeft, joycon.SideRight} {
		layout, _ := joycon.LayoutForRevision(options.revision, side)
		s.sessions[side] = newSession(
			log.Named("session").With(zap.Stringer("side", side)),
			side, layout, s.seq, options.configureDelay,
			s.stateBus.CreatePublisher(side),
		)
	}
	return s
}

func (s *Service) Start(ctx context.Context) error {
	err := s.backendBus.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start backend bus: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.backendBus.Ready():
	}

	err = s.stateBus.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start state bus: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-s.stateBus.Ready():
	}
	for _, sess := range s.sessions {
		sess.start(ctx)
	}

	s.consumeEvents(ctx)

	for backendID := range s.options.backends {
		go s.runBackend(ctx, backendID)
	}
	for _, backend := range s.options.backends {
		select {
		case <-ctx.Done():
			return nil
		case <-backend.Ready():
		}
	}
	close(s.ready)
	s.log.Info("Session service started")
	<-ctx.Done()
	return nil
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) runBackend(ctx context.Context, backendID string) {
	backend := s.options.backends[backendID]
	for {
		err := backend.Start(ctx, s.backendBus.CreatePublisher(backendID))
		if err != nil {
			s.log.Error("failed to start the backend", zap.String("backend", backendID), zap.Error(err))
		}
		t := time.NewTimer(s.options.backoffTimeout)
		// retry after backoff
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}
	}
}

func (s *Service) consumeEvents(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		ch := s.backendBus.Subscribe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				s.handleBackendEvent(msg.Key, msg.Message)
			}
		}
	}()
}

func (s *Service) handleBackendEvent(backendID string, event BackendEvent) {
	if event.ControllersChanged == nil {
		return
	}
	for _, side := range event.ControllersChanged.Disconnected {
		s.available.Delete(side)
		s.log.Debug("controller gone", zap.String("backend", backendID), zap.Stringer("side", side))
	}
	for _, info := range event.ControllersChanged.Connected {
		s.available.Store(info.Side, availableController{backend: backendID, info: info})
		s.log.Debug("controller available", zap.String("backend", backendID), zap.Stringer("side", info.Side), zap.String("name", info.Name))
		if err := s.recordController(info); err != nil {
			s.log.Error("failed to record controller", zap.Error(err))
		}
	}
}

// Connect runs one user-initiated connection attempt for a side. The
// backend is the one currently advertising the controller; with a single
// configured backend it is used even without an advertisement, so explicit
// connects can block in link establishment until the controller appears.
func (s *Service) Connect(ctx context.Context, side joycon.Side) error {
	backend, err := s.backendFor(side)
	if err != nil {
		return err
	}
	return s.sessions[side].connect(ctx, backend)
}

// ConnectWhenAvailable waits for a backend to advertise the controller of
// a side, then runs a single connection attempt. Failed attempts are not
// retried.
func (s *Service) ConnectWhenAvailable(ctx context.Context, side joycon.Side) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Subscribe before checking the availability map so an advertisement
	// landing in between is not missed.
	ch := s.backendBus.Subscribe(subCtx)
	if avail, ok := s.available.Load(side); ok {
		return s.sessions[side].connect(ctx, s.options.backends[avail.backend])
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			changed := msg.Message.ControllersChanged
			if changed == nil {
				continue
			}
			for _, info := range changed.Connected {
				if info.Side == side {
					return s.sessions[side].connect(ctx, s.options.backends[msg.Key])
				}
			}
		}
	}
}

// Disconnect tears down a side's session. Remaining configuration commands,
// if any, are abandoned.
func (s *Service) Disconnect(side joycon.Side) {
	s.sessions[side].disconnect()
}

// State returns the current decoded snapshot of a side.
func (s *Service) State(side joycon.Side) SideState {
	return s.sessions[side].snapshot()
}

// SubscribeState delivers decoded state snapshots for the given sides, or
// for both when none are given.
func (s *Service) SubscribeState(ctx context.Context, sides ...joycon.Side) <-chan bus.Message[joycon.Side, SideState] {
	return s.stateBus.Subscribe(ctx, sides...)
}

func (s *Service) backendFor(side joycon.Side) (Backend, error) {
	if avail, ok := s.available.Load(side); ok {
		return s.options.backends[avail.backend], nil
	}
	if len(s.options.backends) == 1 {
		for _, b := range s.options.backends {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: no backend advertises %s", ErrTransportUnavailable, side)
}

// ControllerRecord is the persisted metadata of a controller that has been
// seen by any backend.
type ControllerRecord struct {
	Side        joycon.Side `json:"side"`
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	FirstSeenAt time.Time   `json:"firstSeenAt"`
	LastSeenAt  time.Time   `json:"lastSeenAt"`
}

func controllerKey(side joycon.Side, id string) []byte {
	return []byte(fmt.Sprintf("controllers/%s/%s", side, id))
}

func (s *Service) recordController(info BackendController) error {
	now := s.now()
	err := s.db.Update(func(txn *badger.Txn) error {
		key := controllerKey(info.Side, info.ID)
		var rec ControllerRecord
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			rec = ControllerRecord{FirstSeenAt: now}
		case err != nil:
			return err
		default:
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal controller: %w", err)
			}
		}
		rec.Side = info.Side
		rec.ID = info.ID
		rec.Name = info.Name
		if rec.FirstSeenAt.IsZero() {
			rec.FirstSeenAt = now
		}
		rec.LastSeenAt = now
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal controller: %w", err)
		}
		return txn.Set(key, b)
	})
	if err != nil {
		return fmt.Errorf("failed to store controller: %w", err)
	}
	return nil
}

// ListControllers returns every controller ever recorded, both sides.
func (s *Service) ListControllers() ([]ControllerRecord, error) {
	var records []ControllerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		iter := txn.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()
		prefix := []byte("controllers/")
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var rec ControllerRecord
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list controllers: %w", err)
	}
	return records, nil
}
