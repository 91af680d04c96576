package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/madiyar29925/UavHealthTracker12/internal/api"
	"github.com/madiyar29925/UavHealthTracker12/internal/config"
	"github.com/madiyar29925/UavHealthTracker12/internal/live"
	"github.com/madiyar29925/UavHealthTracker12/internal/metrics"
	"github.com/madiyar29925/UavHealthTracker12/internal/service"
	"github.com/madiyar29925/UavHealthTracker12/internal/storage"
	"github.com/madiyar29925/UavHealthTracker12/internal/tracing"
	"github.com/madiyar29925/UavHealthTracker12/internal/tsdb"
)

func main() {
	configPath := flag.String("config", getenv("UAV_CONFIG", ""), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run serves until ctx is cancelled
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a, err := build(ctx, cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer a.close()
	return a.serve(ctx, ln)
}

// app is the wired server
type app struct {
	cfg      config.Config
	store    storage.Store
	registry *live.Registry
	relay    *live.RedisRelay
	redis    *redis.Client
	sink     *tsdb.InfluxSink
	handler  http.Handler
	logger   *slog.Logger
	shutdown []func(context.Context) error
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = store
	if cfg.Store.Seed {
		seeded, err := storage.Seed(ctx, store, time.Now())
		if err != nil {
			a.close()
			return nil, err
		}
		logger.Info("store ready", "kind", cfg.Store.Kind, "seeded", seeded)
	}

	a.registry = live.NewRegistry(store, live.RegistryOptions{
		Logger:  logger,
		OnOpen:  func(c live.Conn) { logger.Info("client connected", "conn", c.ID()) },
		OnClose: func(c live.Conn) { logger.Info("client disconnected", "conn", c.ID()) },
	})

	var publisher live.Publisher
	if cfg.Relay.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Relay.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("relay redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.relay = live.NewRedisRelay(a.redis, cfg.Relay.Channel, a.registry, logger)
		publisher = a.relay
	}

	var sink service.TelemetrySink
	if cfg.Influx.URL != "" {
		a.sink = tsdb.NewInfluxSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, logger)
		sink = a.sink
	}

	serviceName := ""
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Setup(cfg.Tracing.ServiceName, os.Stdout)
		if err != nil {
			a.close()
			return nil, err
		}
		a.shutdown = append(a.shutdown, shutdown)
		serviceName = cfg.Tracing.ServiceName
	}

	broadcaster := live.NewBroadcaster(a.registry, store, publisher, logger)
	fleetSvc := service.NewFleet(store, broadcaster, service.Options{Sink: sink, Logger: logger})
	dispatcher := live.NewDispatcher(fleetSvc, live.DispatcherOptions{
		Rate:   cfg.Live.InboundRate,
		Burst:  cfg.Live.InboundBurst,
		Logger: logger,
	})
	ws := live.NewHandler(a.registry, dispatcher, live.ConnOptions{
		SendQueue: cfg.Live.SendQueue,
		WriteWait: cfg.Live.WriteWait,
		ReadLimit: cfg.Live.ReadLimit,
		Logger:    logger,
	})

	a.handler = api.NewRouter(fleetSvc, api.Options{
		Live:        ws,
		Metrics:     metrics.Handler(),
		Logger:      logger,
		ServiceName: serviceName,
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Kind {
	case config.StorePostgres:
		return storage.OpenPostgres(ctx, storage.PostgresConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnectTimeout:  10 * time.Second,
		})
	default:
		return storage.NewMemoryStore(), nil
	}
}

// serve runs the HTTP server and the relay subscriber until ctx is
// cancelled, then shuts down gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server listening", "addr", ln.Addr().String())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if a.relay != nil {
		g.Go(func() error {
			// relay failures degrade to single-instance delivery
			if err := a.relay.Run(gctx); err != nil {
				a.logger.Error("relay stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not tracked by Shutdown
		a.registry.CloseAll()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			a.logger.Warn("shutdown hook", "error", err)
		}
	}
	if a.sink != nil {
		a.sink.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
