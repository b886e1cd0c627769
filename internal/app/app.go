// Package app assembles the cinesync process from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cinesync/internal/core/ports"
	"cinesync/internal/core/services"
	httphandlers "cinesync/internal/handlers/http"
	"cinesync/internal/infrastructure/monitoring"
	"cinesync/internal/infrastructure/repositories"
	"cinesync/internal/infrastructure/signal"
	"cinesync/pkg/config"
	"cinesync/pkg/logger"
	"cinesync/pkg/tracing"
	"cinesync/pkg/utils"
)

// Mode selects which surfaces the process serves.
type Mode int

const (
	// ModeServer serves REST, the websocket and the bus subscriber.
	ModeServer Mode = iota
	// ModeRelay serves only the websocket and the bus subscriber.
	ModeRelay
)

// LoadConfig loads the first config file that exists. With none present the
// defaults plus CINESYNC_* overrides apply.
func LoadConfig(paths ...string) (*config.Config, string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cfg, err := config.Load("")
	return cfg, "", err
}

type App struct {
	cfg        *config.Config
	mode       Mode
	instanceID string
	logger     *zap.SugaredLogger

	factory   *repositories.RepositoryFactory
	tracer    *tracing.TracerProvider
	relay     services.RelayService
	websocket *signal.WebSocketServer
	router    *gin.Engine
	server    *http.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New wires every component. Nothing is listening until Start.
func New(ctx context.Context, cfg *config.Config, mode Mode, zl *zap.Logger) (*App, error) {
	log := zl.Sugar()
	a := &App{
		cfg:        cfg,
		mode:       mode,
		instanceID: utils.InstanceID(),
		logger:     log,
	}
	log = log.With("instance_id", a.instanceID)
	a.logger = log

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, err
	}
	a.tracer = tp

	factory, err := repositories.NewRepositoryFactory(ctx, cfg, a.instanceID, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}
	a.factory = factory

	var (
		metrics      ports.MetricsRecorder = services.NopMetrics{}
		metricsRoute http.Handler
	)
	if cfg.Monitoring.PrometheusEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector := monitoring.NewPrometheusCollector(reg)
		metrics, metricsRoute = collector, collector.Handler()
	}

	registry := signal.NewRegistry()
	a.relay = services.NewRelayService(factory.MessageBus(), factory.HistoryStore(), registry, nil, metrics, log)
	presence := services.NewPresenceService(factory.PresenceStore(), registry, a.relay, log)

	closed := &services.RoomClosedListeners{}
	closed.Add(a.relay)
	rooms, err := services.NewRoomService(factory.RoomRepository(), services.RoomServiceOptions{
		CodeAttempts: cfg.Rooms.CodeAttempts,
		Events:       closed,
		Metrics:      metrics,
	}, log)
	if err != nil {
		a.closeResources(ctx)
		return nil, err
	}

	a.websocket = signal.NewWebSocketServer(signal.Dependencies{
		Presence: presence,
		Relay:    a.relay,
		Registry: registry,
		Access:   rooms,
		Hosts:    rooms,
		Metrics:  metrics,
	}, signal.OptionsFromConfig(cfg), log)

	health := monitoring.NewHealthChecker()
	health.AddCheck("dependencies", factory.HealthCheck, 2*time.Second)

	deps := httphandlers.RouterDeps{
		Config:    cfg,
		Logger:    logger.NewContextLogger(zl),
		Relay:     a.relay,
		Presence:  presence,
		WebSocket: a.websocket.HandleWebSocket,
		Health:    health,
		Metrics:   metricsRoute,
	}
	if mode == ModeServer {
		deps.Rooms = rooms
		streams := services.NewStreamService(rooms, factory.StreamRepository(), factory.SnapshotStore(),
			services.StreamServiceOptions{
				Locker:  factory.StreamLocker(),
				Events:  a.relay,
				Metrics: metrics,
			}, log)
		closed.Add(streams)
		deps.Streams = streams
	}
	a.router = httphandlers.NewRouter(deps)

	address := cfg.Server.Address
	if mode == ModeRelay {
		address = cfg.Realtime.Address
	}
	a.server = &http.Server{
		Addr:         address,
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a, nil
}

func (a *App) Handler() http.Handler { return a.router }

// Start launches the listener and the bus subscriber. The returned channel
// yields the first error that stops either of them.
func (a *App) Start(ctx context.Context) <-chan error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	a.group = g

	g.Go(func() error {
		return a.relay.Run(gctx)
	})
	g.Go(func() error {
		a.logger.Infow("Listening", "address", a.server.Addr, "mode", a.mode.String())
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	failed := make(chan error, 1)
	go func() {
		if err := g.Wait(); err != nil {
			failed <- err
		}
		close(failed)
	}()
	return failed
}

// Shutdown stops accepting connections, closes open sockets, detaches from
// the bus and releases storage.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down")
	a.websocket.Shutdown()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
		_ = a.server.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	errs = append(errs, a.closeResources(ctx))
	return errors.Join(errs...)
}

func (a *App) closeResources(ctx context.Context) error {
	return errors.Join(a.factory.Close(), a.tracer.Shutdown(ctx))
}

func (m Mode) String() string {
	if m == ModeRelay {
		return "relay"
	}
	return "server"
}
