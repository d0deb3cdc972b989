package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/prohmpiriya/event-studio/internal/gateway"
	"github.com/prohmpiriya/event-studio/internal/journal"
	"github.com/prohmpiriya/event-studio/internal/session"
	"github.com/prohmpiriya/event-studio/pkg/config"
	"github.com/prohmpiriya/event-studio/pkg/logger"
	"github.com/prohmpiriya/event-studio/pkg/telemetry"
)

// app holds the wiring shared by every command. Stores are opened on
// first use so commands such as keygen run without them.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *telemetry.Metrics
	gw      *gateway.Client
	stdout  io.Writer

	session *session.Controller
	journal *journal.Journal
	closers []func()
}

func newApp(ctx context.Context, configPath string, debug bool, stdout io.Writer) (*app, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadWithPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  cfg.Log.Output,
	}
	if debug || cfg.App.Debug {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()

	a := &app{cfg: cfg, log: log, stdout: stdout}

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		log.Warn("telemetry disabled", zap.Error(err))
	} else {
		a.closers = append(a.closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				log.Warn("telemetry shutdown failed", zap.Error(err))
			}
		})
	}
	a.metrics = telemetry.NewMetrics()

	a.gw = gateway.New(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		Timeout:   cfg.Gateway.Timeout,
		UserAgent: cfg.Gateway.UserAgent,
		Logger:    log,
		Metrics:   a.metrics,
	})
	return a, nil
}

// controller opens the credential store and builds the session controller
func (a *app) controller(ctx context.Context) (*session.Controller, error) {
	if a.session != nil {
		return a.session, nil
	}
	store, closeStore, err := session.OpenStore(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := closeStore(); err != nil {
			a.log.Warn("closing credential store", zap.Error(err))
		}
	})
	a.session = session.NewController(a.gw, store, session.Options{
		Logger:  a.log,
		Metrics: a.metrics,
	})
	return a.session, nil
}

// restore re-establishes the persisted session
func (a *app) restore(ctx context.Context) error {
	ctrl, err := a.controller(ctx)
	if err != nil {
		return err
	}
	return ctrl.Initialize(ctx)
}

// submissions opens the configured journal; nil when disabled
func (a *app) submissions(ctx context.Context) (*journal.Journal, error) {
	if a.journal != nil {
		return a.journal, nil
	}
	j, closeJournal, err := journal.Open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening submission journal: %w", err)
	}
	a.closers = append(a.closers, closeJournal)
	a.journal = j
	return j, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}
