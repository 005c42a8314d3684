package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commerce-api/cache"
	"commerce-api/config"
	"commerce-api/events"
	"commerce-api/handler"
	"commerce-api/observability"
	"commerce-api/service"
	"commerce-api/store"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// container holds the long-lived dependencies of the process.
type container struct {
	cfg            *config.Config
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	store          store.Store
	cache          cache.ProductCache
	publisher      events.Publisher

	// closers run in reverse order on shutdown
	closers []func(context.Context) error
}

// newContainer wires telemetry, storage, cache and publisher from cfg. On
// failure everything built so far is released.
func newContainer(ctx context.Context, cfg *config.Config, migrate bool) (_ *container, err error) {
	c := &container{cfg: cfg}
	defer func() {
		if err != nil {
			_ = c.shutdown(context.Background())
		}
	}()

	settings := observability.Settings{Endpoint: cfg.OtelEndpoint, AuthHeader: cfg.OtelAuthHeader}

	logShutdown, err := observability.SetupLoggingSDK(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	c.closers = append(c.closers, logShutdown)

	c.logger, err = observability.NewLogger(cfg.LogLevel, settings.Enabled())
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error {
		_ = c.logger.Sync()
		return nil
	})

	tp, traceShutdown, err := observability.SetupTracingSDK(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	c.closers = append(c.closers, traceShutdown)
	c.tracerProvider = noop.NewTracerProvider()
	if tp != nil {
		c.tracerProvider = tp
	}

	c.store, err = openStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error { return c.store.Close() })

	// a memory store starts empty and no route creates users
	if cfg.DatabaseDriver == config.DriverMemory {
		users, products, err := seed(ctx, c.store, time.Now())
		if err != nil {
			return nil, err
		}
		c.logger.Info("memory store seeded", zap.Int("users", users), zap.Int("products", products))
	}

	c.cache = cache.NopProductCache{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisProductCache(ctx, cfg.RedisURL, cfg.ProductCacheTTL)
		if err != nil {
			return nil, err
		}
		c.cache = rc
		c.closers = append(c.closers, func(context.Context) error { return rc.Close() })
		c.logger.Info("product cache enabled", zap.Duration("ttl", cfg.ProductCacheTTL))
	}

	c.publisher = events.NopPublisher{}
	if cfg.KafkaBroker != "" {
		producer, err := events.NewKafkaWriter(cfg.KafkaBroker, cfg.OrderEventsTopic, observability.ServiceName, c.tracerProvider)
		if err != nil {
			return nil, err
		}
		pub := events.NewKafkaPublisher(producer, c.logger)
		c.publisher = pub
		c.closers = append(c.closers, func(context.Context) error { return pub.Close() })
		c.logger.Info("order events enabled",
			zap.String("broker", cfg.KafkaBroker),
			zap.String("topic", cfg.OrderEventsTopic))
	}

	return c, nil
}

// openStore returns the configured store. Postgres stores get the schema
// applied when migrate is set.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (store.Store, error) {
	if cfg.DatabaseDriver == config.DriverMemory {
		return store.NewMemoryStore(), nil
	}
	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	return pg, nil
}

func (c *container) router() *mux.Router {
	tracer := c.tracerProvider.Tracer(observability.ServiceName)
	orders := service.NewOrderService(c.store, c.publisher, c.cache, c.logger, tracer)
	products := service.NewProductService(c.store, c.cache, c.logger, tracer)
	limiter := rate.NewLimiter(rate.Limit(c.cfg.RateLimitRPS), c.cfg.RateLimitBurst)

	r := mux.NewRouter()
	handler.NewHandler(orders, products, c.store, c.logger, limiter).RegisterRoutes(r)
	return r
}

func (c *container) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
