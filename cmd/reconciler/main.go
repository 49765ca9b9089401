package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/logging"
	"github.com/ariefcatur/go-storefront-orders/internal/metrics"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.ServiceName+"-reconciler", cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("reconciler stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var store inventory.Store
	if cfg.LedgerBackend == config.LedgerRedis {
		store = inventory.NewRedisStore(rdb)
	} else {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		store = &inventory.PostgresStore{DB: db}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rec := &inventory.Reconciler{
		Ledger: inventory.NewLedger(store,
			inventory.WithMaxTries(cfg.StockMaxRetries),
			inventory.WithBaseDelay(cfg.StockRetryBaseDelay),
			inventory.WithLogger(log),
			inventory.WithMetrics(m),
		),
		Redis:       rdb,
		Log:         log,
		Metrics:     m,
		ServiceName: cfg.ServiceName + "-reconciler",
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReconcilerGroup, orders.TopicStockRestoreFailed, cfg.ReconcilerWorkers, log)
	msrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("group", cfg.ReconcilerGroup).Str("topic", orders.TopicStockRestoreFailed).
			Int("workers", cfg.ReconcilerWorkers).Msg("reconciler consuming")
		return cons.Start(gctx, rec.HandleRestoreFailed)
	})
	g.Go(func() error {
		if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return msrv.Shutdown(sctx)
	})
	return g.Wait()
}
