package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/tracing"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("order api stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis
	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Stock ledger
	var (
		stockStore inventory.Store
		seeder     inventory.Seeder
	)
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		s := inventory.NewRedisStore(rdb)
		stockStore, seeder = s, s
	default:
		s := &inventory.PostgresStore{DB: db}
		stockStore, seeder = s, s
	}
	ledger := inventory.NewLedger(stockStore,
		inventory.WithMaxTries(cfg.StockMaxRetries),
		inventory.WithBaseDelay(cfg.StockRetryBaseDelay),
		inventory.WithLogger(log),
		inventory.WithMetrics(m),
	)
	coord := inventory.NewCoordinator(ledger, log, m, cfg.CompensationTimeout)

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start()

	store := &orders.CachedStore{Store: &orders.Repo{DB: db}, Redis: rdb, TTL: cfg.OrderCacheTTL}
	svc := checkout.NewService(coord, store,
		checkout.WithPublisher(prod),
		checkout.WithLogger(log),
		checkout.WithMetrics(m),
		checkout.WithProducerName(cfg.ServiceName),
		checkout.WithPublishTimeout(cfg.PublishTimeout),
	)

	router := httpx.NewRouter(log, reg)
	(&httpx.OrdersHandler{Service: svc, Redis: rdb, Log: log, Timeout: cfg.RequestTimeout}).Register(router)
	(&httpx.StockHandler{Ledger: ledger, Seeder: seeder, Log: log, Timeout: cfg.RequestTimeout}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("ledger", cfg.LedgerBackend).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		// handlers are done; flush queued events
		prod.Close()
		prod.WaitClosed()
		return err
	})
	return g.Wait()
}
