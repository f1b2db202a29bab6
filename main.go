package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	appcatalog "github.com/Zhima-Mochi/minishop-orders/internal/application/catalog"
	appdelivery "github.com/Zhima-Mochi/minishop-orders/internal/application/delivery"
	apporder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-orders/internal/application/payment"
	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domdelivery "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	domorder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/config"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/redisx"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/minishop-orders/internal/presentation/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, baseLogger); err != nil {
		baseLogger.Error("service_failed", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

type stores struct {
	catalog     domcatalog.Catalog
	ledger      domorder.Ledger
	deliveries  domdelivery.Scheduler
	idempotency apporder.IdempotencyStore
	close       func()
}

func run(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) error {
	logger := zaplogger.New(baseLogger)

	oteltrace.InstallPropagator()
	counters, histograms := prometrics.Instruments(prometrics.New(prometheus.DefaultRegisterer, "", ""))
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if err := seedCatalog(ctx, cfg.CatalogFile, st.catalog, logger); err != nil {
		return err
	}

	bus := outbox.NewBus(logger)

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), 0, logger)
		producer.Start()
		sinkSubscriber := workerpresentation.NewSubscriber(bus, tel, "kafka_sink")
		kafka.NewSink(sinkSubscriber, producer, cfg.ServiceName, tel).Start()
		logger.Info("kafka_sink_enabled",
			observability.F("brokers", cfg.KafkaBrokers),
			observability.F("topic", cfg.KafkaTopic),
		)
	}

	gateway := payment.NewGateway(payment.GatewayConfig{
		Latency:     cfg.PaymentLatency,
		SuccessRate: cfg.PaymentSuccessRate,
		MaxAmount:   cfg.PaymentMaxAmount,
	})

	orders := apporder.NewOrchestrator(apporder.Dependencies{
		Catalog:     st.catalog,
		Ledger:      st.ledger,
		Payments:    apppayment.NewTracedProcessor(gateway, tel),
		Deliveries:  st.deliveries,
		Idempotency: st.idempotency,
		IDs:         id.NewUUIDGenerator(),
		Publisher:   bus,
	}, apporder.Options{
		HoldTimeout: cfg.HoldTimeout,
		LedgerRetry: apporder.RetryPolicy{
			BaseDelay:  cfg.LedgerRetryBase,
			MaxDelay:   cfg.LedgerRetryMax,
			AlertAfter: cfg.LedgerAlertAfter,
		},
	}, tel)

	if cfg.AutoScheduleDelivery {
		schedule := application.UseCaseFunc[apporder.ScheduleDeliveryInput, *domdelivery.Task](orders.ScheduleDelivery)
		appdelivery.NewAutoScheduleWorker(workerpresentation.NewSubscriber(bus, tel, "delivery_auto_schedule"), schedule, tel).Start()
	}

	bus.Start(ctx)

	handler := httppresentation.NewHandler(httppresentation.Services{
		Orders:         orders,
		ReplenishStock: appcatalog.NewReplenishStockUseCase(st.catalog, bus, tel),
		UpdatePrice:    appcatalog.NewUpdatePriceUseCase(st.catalog, tel),
		GetDelivery:    appdelivery.NewGetDeliveryUseCase(st.deliveries, tel),
		ListDeliveries: appdelivery.NewListDeliveriesUseCase(st.deliveries, tel),
		UpdateDelivery: appdelivery.NewUpdateStatusUseCase(st.deliveries, bus, tel),
	}, httppresentation.Options{
		APIKey:  cfg.APIKey,
		Metrics: promhttp.Handler(),
	}, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http_server_shutdown_error", observability.F("error", err))
		} else {
			logger.Info("http_server_stopped")
		}
		bus.Stop(shutdownCtx)
		if producer != nil {
			producer.Close()
			if err := producer.WaitClosed(shutdownCtx); err != nil {
				logger.Warn("kafka_flush_incomplete", observability.F("error", err))
			}
		}
		return nil
	})
	return g.Wait()
}

// openStores uses Postgres for the catalog and ledger when a DSN is set and
// Redis for idempotency keys when an address is set; memory otherwise.
func openStores(ctx context.Context, cfg config.Config, logger observability.Logger) (*stores, error) {
	st := &stores{
		catalog:     memory.NewCatalog(),
		ledger:      memory.NewLedger(),
		deliveries:  memory.NewDeliveryScheduler(),
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
	}
	var closers []func()
	st.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			st.close()
			return nil, err
		}
		st.catalog = postgres.NewCatalog(pool)
		st.ledger = postgres.NewLedger(pool)
		logger.Info("store_selected", observability.F("store", "postgres"))
	}

	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		closers = append(closers, func() { _ = rdb.Close() })
		if err := redisx.Ping(ctx, rdb); err != nil {
			st.close()
			return nil, err
		}
		st.idempotency = redisx.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		logger.Info("idempotency_store_selected", observability.F("store", "redis"))
	}
	return st, nil
}

// seedCatalog adds the configured products. Products that already exist keep
// their stock, so restarting against Postgres does not reset inventory.
func seedCatalog(ctx context.Context, path string, catalog domcatalog.Catalog, logger observability.Logger) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	products, err := config.Products(seed)
	if err != nil {
		return err
	}
	added := 0
	for _, p := range products {
		if err := catalog.Add(ctx, p); err != nil {
			if errors.Is(err, domcatalog.ErrDuplicateProduct) {
				continue
			}
			return fmt.Errorf("seed catalog: %w", err)
		}
		added++
	}
	logger.Info("catalog_seeded", observability.F("products", len(products)), observability.F("added", added))
	return nil
}
