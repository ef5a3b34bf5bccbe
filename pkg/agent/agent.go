package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/joyconduit/jc2-agent/internal/configsvc"
	"github.com/joyconduit/jc2-agent/internal/joycon"
	"github.com/joyconduit/jc2-agent/internal/pointerfwd"
	"github.com/joyconduit/jc2-agent/internal/sessionsvc"
	"github.com/joyconduit/jc2-agent/internal/sessionsvc/hidraw"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type Agent struct {
	config Config

	log        *zap.Logger
	db         *badger.DB
	configSvc  *configsvc.Service
	sessionSvc *sessionsvc.Service
	pointerFwd *pointerfwd.Forwarder
}

func NewAgent(config Config) (*Agent, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	configSvc := configsvc.New(logger.Named("config"))
	backend := hidraw.NewBackend(logger.Named("hidraw"), configSvc, config.DevicesConfig)
	sessionSvc := sessionsvc.New(db, logger.Named("session"), time.Now,
		sessionsvc.WithBackend("hidraw", backend))

	a := &Agent{
		config:     config,
		log:        logger,
		db:         db,
		configSvc:  configSvc,
		sessionSvc: sessionSvc,
	}
	if config.EnablePointer {
		a.pointerFwd = pointerfwd.New(logger.Named("pointer"), sessionSvc)
	}
	return a, nil
}

func (a *Agent) Close() error {
	return a.db.Close()
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts the agent services and blocks until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.sessionSvc.Start(groupCtx)
	})
	if a.pointerFwd != nil {
		group.Go(func() error {
			return a.pointerFwd.Start(groupCtx)
		})
	}

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

// ConnectSides runs one connection attempt per requested side, each
// starting as soon as a backend advertises the controller. Failed attempts
// are reported, not retried.
func (a *Agent) ConnectSides(ctx context.Context, sides []joycon.Side) {
	select {
	case <-ctx.Done():
		return
	case <-a.sessionSvc.Ready():
	}
	for _, side := range sides {
		side := side
		go func() {
			err := a.sessionSvc.ConnectWhenAvailable(ctx, side)
			if err != nil && ctx.Err() == nil {
				a.log.Error("connection attempt failed", zap.Stringer("side", side), zap.Error(err))
			}
		}()
	}
}

func (a *Agent) Sessions() *sessionsvc.Service {
	return a.sessionSvc
}
