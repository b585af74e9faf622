package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"storefront-offers/internal/cache"
	"storefront-offers/internal/catalog"
	"storefront-offers/internal/config"
	"storefront-offers/internal/database"
	"storefront-offers/internal/events"
	"storefront-offers/internal/features"
	"storefront-offers/internal/handler"
	"storefront-offers/internal/lifecycle"
	"storefront-offers/internal/logging"
	"storefront-offers/internal/middleware"
	"storefront-offers/internal/models"
	"storefront-offers/internal/pricing"
	"storefront-offers/internal/producer"
	"storefront-offers/internal/selector"
	"storefront-offers/internal/service"
	"storefront-offers/internal/shipping"
	"storefront-offers/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "JSON config file path")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	port := flag.String("port", "", "Server port (overrides config)")
	dbPath := flag.String("db", "", "Database file path (overrides config)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.LoadFile(cfg.Catalog.Path); err != nil {
			return err
		}
	}

	kv, closeKV, err := newCache(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	flags := features.NewDefaultManager(cfg.Features)
	em := events.NewManager(true, logger)
	defer em.Shutdown()

	store := lifecycle.NewStore(kv, em, logger)
	unsubscribe := store.Subscribe(func(ctx context.Context, profile string, offer *models.Offer) {
		ev := logger.Info().Str("profile", profile)
		if offer == nil {
			ev.Msg("active offer cleared")
			return
		}
		ev.Str("offer_id", offer.ID).Msg("active offer changed")
	})
	defer unsubscribe()

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		ap, err := producer.NewAsyncProducer(brokers)
		if err != nil {
			return fmt.Errorf("failed to start kafka producer: %w", err)
		}
		publisher := producer.NewOfferChangePublisher(ap, cfg.Kafka.Topic, flags, logger)
		detach := publisher.Attach(em)
		defer func() {
			detach()
			publisher.Close()
			sent, failed := publisher.Stats()
			logger.Info().Int64("sent", sent).Int64("failed", failed).Msg("kafka bridge closed")
		}()
		logger.Info().Strs("brokers", brokers).Str("topic", cfg.Kafka.Topic).Msg("offer changes bridged to kafka")
	}

	pricer := &pricing.Pricer{
		Addons: pricing.AddonPrices{
			Keychain:  cfg.Pricing.KeychainPrice,
			GiftWrap:  cfg.Pricing.GiftWrapPrice,
			CarMirror: cfg.Pricing.CarMirrorPrice,
		},
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		GroupSize:             cfg.Pricing.GroupSize,
	}

	var quoter shipping.Quoter = shipping.NewTableQuoter(db, shipping.TableOptions{
		DefaultCharge: cfg.Shipping.DefaultCharge,
		SlabGrams:     cfg.Shipping.SlabGrams,
		PerSlab:       cfg.Shipping.PerSlab,
	}, logger)
	if flags.IsEnabled(features.FeatureShippingBreaker) {
		quoter = shipping.NewBreakerQuoter(quoter, shipping.BreakerOptions{
			FailureThreshold: cfg.Shipping.BreakerThreshold,
			OpenTimeout:      time.Duration(cfg.Shipping.BreakerTimeout) * time.Second,
		}, logger)
	}
	quoter = shipping.NewCachedQuoter(quoter, kv, flags, cfg.Shipping.QuoteCacheTTLDuration(), logger)

	svc := service.NewService(service.Dependencies{
		Catalog:  cat,
		Selector: selector.New(cat, kv, nil, logger),
		Offers:   store,
		Products: db,
		Pricer:   pricer,
		Quoter:   quoter,
		Flags:    flags,
		Events:   em,
		Logger:   logger,
	})

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
		Logger:      logger,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.ProfileHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.TracingMiddleware())
	r.Use(middleware.ProfileMiddleware)

	h.Routes(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		protocol := "HTTP"
		if cfg.Server.EnableTLS {
			protocol = "HTTPS"
		}
		logger.Info().
			Str("addr", server.Addr).
			Str("protocol", protocol).
			Str("database", cfg.Database.Path).
			Int("offers", cat.Len()).
			Msg("starting server")

		var err error
		if cfg.Server.EnableTLS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		errCh <- err
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-sigint:
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newCache picks Redis when an address is configured, else process memory.
func newCache(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (cache.Cache, func(), error) {
	if cfg.Addr == "" {
		logger.Warn().Msg("REDIS_ADDR not set, offers are kept in memory and lost on restart")
		return cache.NewInMemoryCache(), func() {}, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedisCache(pingCtx, cfg.Addr, cfg.Password, cfg.DB, cfg.Prefix)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return rc, func() { rc.Close() }, nil
}
