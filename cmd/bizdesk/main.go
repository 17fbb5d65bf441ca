package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bizdesk/internal/app"
	"github.com/odyssey-erp/bizdesk/internal/audit"
	"github.com/odyssey-erp/bizdesk/internal/customers"
	"github.com/odyssey-erp/bizdesk/internal/inventory"
	"github.com/odyssey-erp/bizdesk/internal/observability"
	"github.com/odyssey-erp/bizdesk/internal/payments"
	"github.com/odyssey-erp/bizdesk/internal/platform/cache"
	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/purchasing"
	"github.com/odyssey-erp/bizdesk/internal/receipts"
	"github.com/odyssey-erp/bizdesk/internal/reports"
	"github.com/odyssey-erp/bizdesk/internal/sales"
	"github.com/odyssey-erp/bizdesk/internal/shared"
	"github.com/odyssey-erp/bizdesk/internal/suppliers"
	"github.com/odyssey-erp/bizdesk/internal/users"
	"github.com/odyssey-erp/bizdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := db.ApplySchema(ctx, dbpool); err != nil {
			logger.Error("apply schema", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema applied")
	}

	// Redis backs the report cache, the job queue and optionally the
	// sequence counters. Only the redis sequence backend makes it mandatory.
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		if cfg.SequenceBackend == app.BackendRedis {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("redis unavailable, report cache and jobs disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	runner := db.NewRunner(dbpool, observability.TxLogger{Logger: logger, Next: metrics})
	sequencer, err := app.NewSequencer(cfg, redisClient, metrics)
	if err != nil {
		logger.Error("init sequencer", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("sequencer ready",
		slog.String("strategy", cfg.SequenceStrategy),
		slog.String("backend", cfg.SequenceBackend),
		slog.String("malformed", cfg.SequenceMalformed),
	)

	auditLogger := shared.NewAuditLogger(dbpool)

	var reportCache *reports.Cache
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}
	reportService := reports.NewService(reports.NewRepository(dbpool), reportCache)

	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool, runner, sequencer), auditLogger)
	customerService := customers.NewService(customers.NewRepository(dbpool, runner, sequencer), auditLogger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool, runner, sequencer), auditLogger,
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock, Reports: reportService})
	purchasingService := purchasing.NewService(purchasing.NewRepository(dbpool, runner, sequencer), auditLogger,
		purchasing.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock, Reports: reportService})
	paymentService := payments.NewService(payments.NewRepository(dbpool, runner, sequencer), auditLogger)
	receiptService := receipts.NewService(receipts.NewRepository(dbpool, runner, sequencer), auditLogger)
	salesService := sales.NewService(sales.NewRepository(dbpool, runner, sequencer), auditLogger,
		sales.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock, Reports: reportService})
	userService := users.NewService(users.NewRepository(dbpool, runner, sequencer), auditLogger, cfg.BcryptCost)

	var (
		inspector *asynq.Inspector
		jobClient *jobs.Client
	)
	if redisClient != nil {
		inspector = asynq.NewInspector(cfg.AsynqRedis())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err = jobs.NewClient(cfg.AsynqRedis())
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		DB:                dbpool,
		SuppliersHandler:  suppliers.NewHandler(logger, supplierService),
		CustomersHandler:  customers.NewHandler(logger, customerService),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		PurchasingHandler: purchasing.NewHandler(logger, purchasingService),
		PaymentsHandler:   payments.NewHandler(logger, paymentService),
		ReceiptsHandler:   receipts.NewHandler(logger, receiptService),
		SalesHandler:      sales.NewHandler(logger, salesService),
		UsersHandler:      users.NewHandler(logger, userService),
		ReportsHandler:    reports.NewHandler(logger, reportService),
		AuditHandler:      audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool))),
		JobHandler:        jobs.NewHandler(inspector, jobClient, logger),
		Access:            users.Middleware{Service: userService, Logger: logger, Enforce: cfg.EnforceRoles},
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
