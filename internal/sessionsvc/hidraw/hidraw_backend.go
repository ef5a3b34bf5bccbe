// Package hidraw implements a sessionsvc transport backend for hosts that
// pair the controller at the OS level and expose it as a hidraw node. It
// stands in for environments without a direct GATT client: the kernel owns
// the link and this backend only moves report and command bytes.
package hidraw

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/joyconduit/jc2-agent/internal/configsvc"
	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/internal/sessionsvc"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"
)

var defaultBackendOptions = backendOptions{
	pollInterval: 1 * time.Second,
}

type backendOptions struct {
	pollInterval time.Duration
}

type Option func(*backendOptions)

func WithPollInterval(d time.Duration) Option {
	return func(o *backendOptions) {
		o.pollInterval = d
	}
}

// Config is the live-reloaded devices file. Overrides pin a side to an
// explicit hidraw path, bypassing enumeration.
type Config struct {
	PollInterval string         `json:"pollInterval,omitempty"`
	Overrides    []PathOverride `json:"overrides,omitempty"`
}

type PathOverride struct {
	Side joycon.Side `json:"side"`
	Path string      `json:"path"`
}

type Backend struct {
	log     *zap.Logger
	options backendOptions

	config      *configsvc.Service
	devicesPath string

	controllers *xsync.MapOf[joycon.Side, hid.DeviceInfo]
	overrides   *xsync.MapOf[joycon.Side, string]

	udev *udev.Udev

	ready chan struct{}

	publisher sessionsvc.BackendPublisher
}

func NewBackend(log *zap.Logger, configSvc *configsvc.Service, devicesPath string, opts ...Option) *Backend {
	options := defaultBackendOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Backend{
		options:     options,
		log:         log,
		config:      configSvc,
		devicesPath: devicesPath,
		ready:       make(chan struct{}),
		controllers: xsync.NewMapOf[joycon.Side, hid.DeviceInfo](),
		overrides:   xsync.NewMapOf[joycon.Side, string](),
	}
}

func (b *Backend) Ready() <-chan struct{} {
	return b.ready
}

func (b *Backend) Start(ctx context.Context, publisher sessionsvc.BackendPublisher) error {
	hid.Init()
	b.udev = &udev.Udev{}
	b.publisher = publisher

	b.log.Info("Starting hidraw backend")
	select {
	case <-ctx.Done():
		return nil
	case <-b.config.Ready():
	}

	cfg, err := configsvc.Register(b.config, b.devicesPath, Config{}, func(cfg Config, err error) {
		b.onConfigChange(cfg, err)
	})
	if err != nil {
		return fmt.Errorf("failed to register devices config: %w", err)
	}
	b.applyConfig(cfg)

	if err := b.refreshControllers(ctx); err != nil {
		return fmt.Errorf("failed to enumerate controllers: %w", err)
	}

	close(b.ready)
	b.log.Info("hidraw backend started")

	pollTicker := time.NewTicker(b.options.pollInterval)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			if err := b.refreshControllers(ctx); err != nil {
				b.log.Error("failed to refresh controllers", zap.Error(err))
			}
		}
	}
}

func (b *Backend) onConfigChange(cfg Config, err error) {
	if err != nil {
		b.log.Error("failed to parse devices config", zap.Error(err))
		return
	}
	b.applyConfig(cfg)
}

func (b *Backend) applyConfig(cfg Config) {
	b.overrides.Clear()
	for _, o := range cfg.Overrides {
		b.overrides.Store(o.Side, o.Path)
	}
}

// sideFor matches a HID device against the controller identity: the
// vendor/product pair first, the advertised product name as a fallback for
// stacks that do not report the pid.
func sideFor(info hid.DeviceInfo) (joycon.Side, bool) {
	if info.VendorID == joycon.VendorID {
		switch info.ProductID {
		case joycon.ProductIDLeft:
			return joycon.SideLeft, true
		case joycon.ProductIDRight:
			return joycon.SideRight, true
		}
	}
	switch info.ProductStr {
	case joycon.DeviceNameLeft:
		return joycon.SideLeft, true
	case joycon.DeviceNameRight:
		return joycon.SideRight, true
	}
	return 0, false
}

func (b *Backend) enumerateControllers() (map[joycon.Side]hid.DeviceInfo, error) {
	found := make(map[joycon.Side]hid.DeviceInfo)
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		if side, ok := sideFor(*info); ok {
			found[side] = *info
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (b *Backend) refreshControllers(ctx context.Context) error {
	found, err := b.enumerateControllers()
	if err != nil {
		return err
	}
	var disconnected []joycon.Side
	var connected []sessionsvc.BackendController
	b.controllers.Range(func(side joycon.Side, _ hid.DeviceInfo) bool {
		if _, ok := found[side]; !ok {
			disconnected = append(disconnected, side)
			b.controllers.Delete(side)
			return true
		}
		delete(found, side)
		return true
	})
	for side, info := range found {
		b.controllers.Store(side, info)
		connected = append(connected, sessionsvc.BackendController{
			Side: side,
			ID:   b.controllerID(info),
			Name: controllerName(info),
		})
	}
	if len(connected) > 0 || len(disconnected) > 0 {
		b.publisher(ctx, sessionsvc.BackendEvent{
			ControllersChanged: &sessionsvc.BackendEventControllersChanged{
				Connected:    connected,
				Disconnected: disconnected,
			},
		})
	}
	return nil
}

// controllerID resolves the controller's link address from udev; the hidraw
// node path is unstable across reconnects, the address is not.
func (b *Backend) controllerID(info hid.DeviceInfo) string {
	dev := b.udev.NewDeviceFromSubsystemSysname("hidraw", filepath.Base(info.Path))
	if dev == nil {
		return info.SerialNbr
	}
	parent := dev.Parent()
	if parent == nil {
		return info.SerialNbr
	}
	if uniq := parent.PropertyValue("HID_UNIQ"); uniq != "" {
		return uniq
	}
	return info.SerialNbr
}

func controllerName(info hid.DeviceInfo) string {
	var parts []string
	if info.MfrStr != "" {
		parts = append(parts, info.MfrStr)
	}
	if info.ProductStr != "" {
		parts = append(parts, info.ProductStr)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%04x:%04x", info.VendorID, info.ProductID)
	}
	return strings.Join(parts, " ")
}

func (b *Backend) Connect(ctx context.Context, side joycon.Side) (sessionsvc.Link, error) {
	path, ok := b.overrides.Load(side)
	if !ok {
		info, found := b.controllers.Load(side)
		if !found {
			return nil, fmt.Errorf("%w: no hidraw node for %s", sessionsvc.ErrTransportUnavailable, side)
		}
		path = info.Path
	}
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	link := &hidrawLink{
		log:     b.log.With(zap.Stringer("side", side)),
		dev:     dev,
		reports: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go link.readLoop()
	return link, nil
}

type hidrawLink struct {
	log     *zap.Logger
	dev     *hid.Device
	reports chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// reportBufferSize covers the largest observed input report variant.
const reportBufferSize = 64

func (l *hidrawLink) readLoop() {
	defer close(l.reports)
	for {
		buf := make([]byte, reportBufferSize)
		n, err := l.dev.Read(buf)
		if err != nil {
			select {
			case <-l.done:
			default:
				l.log.Debug("read failed, link lost", zap.Error(err))
			}
			return
		}
		select {
		case <-l.done:
			return
		case l.reports <- buf[:n]:
		}
	}
}

func (l *hidrawLink) Reports() <-chan []byte {
	return l.reports
}

func (l *hidrawLink) Write(ctx context.Context, cmd []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return fmt.Errorf("link closed")
	default:
	}
	if _, err := l.dev.Write(cmd); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

func (l *hidrawLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.dev.Close()
	})
	return err
}
