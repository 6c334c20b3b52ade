package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/a-nagdy/anasityshop/internal/config"
	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/event"
	handler "github.com/a-nagdy/anasityshop/internal/handler/http"
	"github.com/a-nagdy/anasityshop/internal/repository"
	esindex "github.com/a-nagdy/anasityshop/internal/repository/elasticsearch"
	"github.com/a-nagdy/anasityshop/internal/repository/mongodb"
	"github.com/a-nagdy/anasityshop/internal/repository/postgres"
	redisrepo "github.com/a-nagdy/anasityshop/internal/repository/redis"
	"github.com/a-nagdy/anasityshop/internal/service"
	"github.com/a-nagdy/anasityshop/pkg/cache"
	"github.com/a-nagdy/anasityshop/pkg/database"
	"github.com/a-nagdy/anasityshop/pkg/health"
	pkgkafka "github.com/a-nagdy/anasityshop/pkg/kafka"
	"github.com/a-nagdy/anasityshop/pkg/middleware"
	"github.com/a-nagdy/anasityshop/pkg/tracing"
)

const serviceName = "anasityshop-api"

// App wires together all dependencies and runs the storefront API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	mongoDB        *mongo.Database
	producer       *pkgkafka.Producer
	searchIndex    *esindex.ProductIndex
	products       *service.ProductService
	reconciler     *service.Reconciler
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc

	// stop cancels the background work started in NewApp: cache sweeps and
	// rate limiter cleanup.
	stop context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	var tracer *database.QueryTracer
	if cfg.SlowQueryThresholdMs > 0 {
		tracer = database.NewQueryTracer(logger, time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond)
	}
	a.pool, err = database.NewPostgresPool(ctx, database.PostgresConfig{
		URL:             cfg.PostgresDSN(),
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		Tracer:          tracer,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, a.pool, postgres.Migrations, postgres.MigrationsDir, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis client for carts.
	a.rdb, err = database.NewRedisClient(ctx, database.RedisConfig{URL: cfg.RedisURL}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to Redis")

	// Review store.
	var reviewRepo repository.ReviewRepository = postgres.NewReviewRepository(a.pool)
	if cfg.ReviewStore == config.ReviewStoreMongo {
		a.mongoDB, err = database.NewMongoDatabase(ctx, database.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDB,
		}, logger)
		if err != nil {
			return nil, err
		}
		mongoReviews := mongodb.NewReviewRepository(a.mongoDB, logger)
		if err := mongoReviews.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure review indexes: %w", err)
		}
		reviewRepo = mongoReviews
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDB))
	}

	// Metrics registry.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := database.RegisterPoolMetrics(reg, a.pool); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	cacheMetrics := cache.NewMetrics(reg)

	// Initialize Kafka producer. Without brokers events are dropped.
	var publisher event.Publisher
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers},
			pkgkafka.NewProducerMetrics(reg), logger)
		publisher = pkgkafka.NewBreakerPublisher(a.producer, pkgkafka.DefaultBreakerConfig("kafka-producer"),
			pkgkafka.NewBreakerMetrics(reg), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events are disabled")
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Background work lives until Shutdown.
	bg, stop := context.WithCancel(context.Background())
	a.stop = stop
	cacheOpts := func(name string) []cache.Option {
		return []cache.Option{
			cache.WithSweepInterval(cfg.CacheSweepInterval),
			cache.WithMetrics(cacheMetrics, name),
		}
	}

	// Build the dependency graph.
	productRepo := postgres.NewProductRepository(a.pool)
	categoryRepo := postgres.NewCategoryRepository(a.pool)

	ratings := service.NewRatingAggregator(productRepo, reviewRepo, eventProducer, service.NewRatingMetrics(reg), logger)
	productService := service.NewProductService(productRepo, categoryRepo, reviewRepo, eventProducer,
		cache.New[*domain.Product](bg, cfg.CacheTTL, cacheOpts("products")...),
		cache.New[string](bg, cfg.CacheTTL, cacheOpts("product_slugs")...),
		logger,
	)
	categoryService := service.NewCategoryService(categoryRepo,
		cache.New[[]domain.Category](bg, cfg.CacheTTL, cacheOpts("categories")...), logger)
	homepageService := service.NewHomepageService(
		postgres.NewThemeRepository(a.pool),
		postgres.NewBannerRepository(a.pool),
		productRepo,
		categoryService,
		cache.New[*domain.Homepage](bg, cfg.CacheTTL, cacheOpts("homepage")...),
		logger,
	)
	ratings.AddListener(productService)
	ratings.AddListener(homepageService)
	a.products = productService

	// Optional Elasticsearch product search.
	if cfg.SearchEnabled() {
		a.searchIndex, err = esindex.NewProductIndex(esindex.Config{
			URL:   cfg.ElasticsearchURL,
			Index: cfg.ElasticsearchIndex,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := a.searchIndex.EnsureIndex(ctx); err != nil {
			return nil, fmt.Errorf("ensure search index: %w", err)
		}
		productService.UseSearchIndex(a.searchIndex)
		logger.Info("elasticsearch search enabled", slog.String("index", cfg.ElasticsearchIndex))
	}

	services := handler.Services{
		Products:   productService,
		Reviews:    service.NewReviewService(reviewRepo, productRepo, ratings, eventProducer, logger),
		Categories: categoryService,
		Storefront: homepageService,
		Cart:       service.NewCartService(redisrepo.NewCartRepository(a.rdb, cfg.CartTTL), productRepo, logger, cfg.CartTTL),
		Ratings:    ratings,
	}
	a.reconciler = service.NewReconciler(ratings, cfg.RatingResyncInterval, logger)

	// Health checks.
	healthHandler := health.NewHandler(3 * time.Second)
	healthHandler.Register("postgres", a.pool.Ping)
	healthHandler.Register("redis", func(ctx context.Context) error {
		return a.rdb.Ping(ctx).Err()
	})
	if a.mongoDB != nil {
		healthHandler.Register("mongodb", func(ctx context.Context) error {
			return a.mongoDB.Client().Ping(ctx, nil)
		})
	}
	if a.producer != nil {
		healthHandler.Register("kafka", a.producer.Ping)
	}
	if a.searchIndex != nil {
		healthHandler.Register("elasticsearch", a.searchIndex.Ping)
	}

	// HTTP router.
	router := handler.NewRouter(services, handler.RouterOptions{
		Validate:    middleware.HMACValidator(cfg.JWTSecret, cfg.JWTIssuer),
		CORS:        middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, MaxAge: 600},
		HTTPMetrics: middleware.NewHTTPMetrics(reg),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		WriteLimit:  middleware.RateLimit(bg, cfg.ReviewRateLimitRPS, cfg.ReviewRateLimitBurst, logger),
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
		CacheMaxAge: cfg.HTTPCacheMaxAge,
	}, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and the rating reconciler and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.reconciler.Run(ctx)

	if a.searchIndex != nil {
		go func() {
			if _, err := a.products.ReindexSearch(ctx); err != nil {
				a.logger.Error("search reindex failed", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: drain HTTP requests,
// flush spans, then close the producer and the stores.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases whatever NewApp managed to open.
func (a *App) closeResources() []error {
	var errs []error

	if a.stop != nil {
		a.stop()
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.mongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongoDB.Client().Disconnect(ctx); err != nil {
			a.logger.Error("mongodb disconnect error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errs
}
