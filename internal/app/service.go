package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"timekeeper/internal/alarm"
	"timekeeper/internal/api"
	"timekeeper/internal/clock"
	"timekeeper/internal/config"
	"timekeeper/internal/domain"
	"timekeeper/internal/logging"
	"timekeeper/internal/metrics"
	"timekeeper/internal/notify"
	"timekeeper/internal/sound"
	"timekeeper/internal/store"
	"timekeeper/internal/timer"

	"github.com/spf13/afero"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable timekeeper service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	clock     clock.Clock
	store     store.Store
	metrics   *metrics.Metrics
	alarmSnd  *sound.Player
	timerSnd  *sound.Player
	channel   *notify.Channel
	events    *notify.NATSPresenter
	alarms    *alarm.Scheduler
	timers    *timer.Scheduler
	handler   http.Handler
	httpSrv   *http.Server
	readyFlag atomic.Bool
}

// NewService builds service instance from config source.
// Params: config source and clock implementation (nil selects the configured location).
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service, err := newService(cfg, logger, clk)
	if err != nil {
		closeLog()
		return nil, err
	}
	service.closeLog = closeLog
	return service, nil
}

func newService(cfg config.Config, logger *slog.Logger, clk clock.Clock) (*Service, error) {
	if clk == nil {
		loc, err := cfg.Service.LoadLocation()
		if err != nil {
			return nil, fmt.Errorf("service.location: %w", err)
		}
		clk = clock.RealClock{Location: loc}
	}
	logger = logger.With("service", cfg.Service.Name)

	st, err := buildStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	renderer, err := notify.NewRenderer(cfg.Notify.Templates)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	presenters, events, err := buildPresenters(cfg.Notify, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	backend := buildSoundBackend(cfg.Sound, logger)
	alarmSnd := sound.NewPlayer(backend, cfg.Sound.Dir, logger.With("player", "alarm"), m)
	timerSnd := sound.NewPlayer(backend, cfg.Sound.Dir, logger.With("player", "timer"), m)
	channel := notify.NewChannel(domain.Theme(cfg.Notify.Theme), presenters, logger, m, clk.Now)

	alarms := alarm.NewScheduler(alarm.Deps{
		Clock:    clk,
		Store:    st,
		Sound:    alarmSnd,
		Notifier: channel,
		Renderer: renderer,
		Logger:   logger,
		Metrics:  m,
	})
	timers := timer.NewScheduler(timer.Deps{
		Clock:    clk,
		Store:    st,
		Sound:    timerSnd,
		Notifier: channel,
		Renderer: renderer,
		Logger:   logger,
		Metrics:  m,
	})

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		store:    st,
		metrics:  m,
		alarmSnd: alarmSnd,
		timerSnd: timerSnd,
		channel:  channel,
		events:   events,
		alarms:   alarms,
		timers:   timers,
	}
	service.handler = api.NewRouter(api.Deps{
		Alarms:        alarms,
		Timers:        timers,
		Notifications: channel,
		Metrics:       m,
		Logger:        logger,
	}, api.Options{
		HealthPath:   cfg.HTTP.HealthPath,
		MetricsPath:  cfg.HTTP.MetricsPath,
		Ready:        service.readyFlag.Load,
		AllowOrigins: cfg.HTTP.AllowOrigins,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	if cfg.HTTP.Enabled {
		service.httpSrv = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           service.handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return service, nil
}

// Handler exposes HTTP API handler.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Run restores persisted triggers, starts tick tasks, and blocks until shutdown.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	s.alarms.Load(ctx)
	s.timers.Load(ctx)

	errChan := make(chan error, 1)
	if s.httpSrv != nil {
		go func() {
			s.logger.Info("http server starting", "listen", s.cfg.HTTP.Listen)
			err := s.httpSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	interval := s.cfg.Service.TickInterval()
	alarmTask := clock.StartTask(ctx, interval, s.alarms.Tick)
	timerTask := clock.StartTask(ctx, interval, s.timers.Tick)
	s.readyFlag.Store(true)
	s.logger.Info("service started", "tick", interval.String(), "storage", s.cfg.Storage.Backend, "sound", s.cfg.Sound.Backend)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-ctx.Done():
	case <-sigChan:
	case err := <-errChan:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	alarmTask.Stop()
	timerTask.Stop()
	if err := s.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown failed", "error", err.Error())
			markErr(fmt.Errorf("http shutdown: %w", err))
		}
	}
	s.alarmSnd.StopAll()
	s.timerSnd.StopAll()
	s.channel.Close()
	if err := s.events.Shutdown(); err != nil {
		markErr(fmt.Errorf("notify events close: %w", err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	s.logger.Info("service stopped")
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// buildStore creates snapshot store backend from config.
// Params: storage config section.
// Returns: selected store backend.
func buildStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StorageBackendMemory:
		return store.NewMemoryStore(), nil
	case config.StorageBackendSQLite:
		return store.NewSQLiteStore(cfg.SQLitePath)
	case config.StorageBackendNATS:
		return store.NewNATSStore(store.NATSSettings{URL: cfg.NATSURL, Bucket: cfg.NATSBucket})
	default:
		return store.NewFileStore(afero.NewOsFs(), cfg.Dir)
	}
}

func buildSoundBackend(cfg config.SoundConfig, logger *slog.Logger) sound.Backend {
	if cfg.Backend == config.SoundBackendExec {
		return sound.ExecBackend{Command: cfg.Command}
	}
	return sound.LogBackend{Logger: logger}
}

// buildPresenters assembles notification mirrors from config.
// Params: notify config section and logger.
// Returns: presenters in fan-out order, optional NATS events presenter, and connect error.
func buildPresenters(cfg config.NotifyConfig, logger *slog.Logger) ([]notify.Presenter, *notify.NATSPresenter, error) {
	presenters := []notify.Presenter{notify.LogPresenter{Logger: logger}}
	if cfg.Telegram.Enabled {
		presenters = append(presenters, notify.NewTelegramPresenter(cfg.Telegram))
	}
	if !cfg.NATS.Enabled {
		return presenters, nil, nil
	}
	events, err := notify.NewNATSPresenter(cfg.NATS)
	if err != nil {
		return nil, nil, err
	}
	return append(presenters, events), events, nil
}
