package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/padforge/padforge/internal/configsvc"
	"github.com/padforge/padforge/internal/devsvc"
	"github.com/padforge/padforge/internal/devsvc/linux"
	"github.com/padforge/padforge/internal/mapsvc"
	"github.com/padforge/padforge/internal/padsvc"
	"github.com/padforge/padforge/internal/quirks"
)

type Agent struct {
	config Config

	log       *zap.Logger
	db        *badger.DB
	configSvc *configsvc.Service
	devSvc    *devsvc.Service
	padSvc    *padsvc.Service
	mapSvc    *mapsvc.Service
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

	quirkReg, err := quirks.Load(logger.Named("quirks"), config.QuirksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load quirks: %w", err)
	}

	configSvc := configsvc.New(logger.Named("config"))
	backend := linux.NewBackend(logger.Named("dev.linux"))
	devSvc := devsvc.New(db, logger.Named("dev"), quirkReg, time.Now, devsvc.WithBackend("linux", backend))

	padSvc := padsvc.New(logger.Named("pad"))
	sink, err := padSvc.CreateSink(config.Pad)
	if err != nil {
		return nil, err
	}

	engine := mapsvc.NewEngine(logger.Named("engine"), devSvc, sink)
	mapSvc := mapsvc.New(logger.Named("map"), configSvc, config.ProfilesConfig, engine)

	return &Agent{
		config:    config,
		log:       logger,
		db:        db,
		configSvc: configSvc,
		devSvc:    devSvc,
		padSvc:    padSvc,
		mapSvc:    mapSvc,
	}, nil
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

// Run starts the agent and blocks until the context is cancelled.
// Startup fails if the initial configuration is not valid. If the
// configuration becomes invalid later, the agent keeps running with
// the last valid profile.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.devSvc.Start(groupCtx)
	})
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-a.devSvc.Ready():
		}
		return a.mapSvc.Start(groupCtx)
	})

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

func (a *Agent) Devices() *devsvc.Service {
	return a.devSvc
}

func (a *Agent) Mapper() *mapsvc.Service {
	return a.mapSvc
}

func (a *Agent) Pads() *padsvc.Service {
	return a.padSvc
}
