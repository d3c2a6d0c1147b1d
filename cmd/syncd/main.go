package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dropsync/backend/internal/application/ordersync"
	"github.com/dropsync/backend/internal/application/productsync"
	"github.com/dropsync/backend/internal/infrastructure/cache"
	"github.com/dropsync/backend/internal/infrastructure/config"
	"github.com/dropsync/backend/internal/infrastructure/deadletter"
	"github.com/dropsync/backend/internal/infrastructure/logger"
	"github.com/dropsync/backend/internal/infrastructure/persistence"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
	"github.com/dropsync/backend/internal/infrastructure/shopify"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: ./config.toml)")
		runOrders  = flag.Bool("orders", false, "run the order sync pass")
		runCatalog = flag.Bool("products", false, "run the catalog sync pass")
	)
	flag.Parse()

	if !*runOrders && !*runCatalog {
		// No selection means the full cycle
		*runOrders = true
		*runCatalog = true
	}

	os.Exit(run(*configPath, *runOrders, *runCatalog))
}

func run(configPath string, runOrders, runCatalog bool) int {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync(log) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := persistence.NewDatabaseWithLogger(cfg.State.Path,
		logger.NewGormLogger(log, gormlogger.Warn))
	if err != nil {
		log.Error("open state database", zap.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	if err := db.Migrate(); err != nil {
		log.Error("migrate state schema", zap.Error(err))
		return 1
	}
	mappings := persistence.NewGormMappingStore(db.DB)

	productCache, err := cache.NewFileProductCache(cfg.Cache.Dir, cfg.Cache.TTL, log)
	if err != nil {
		log.Error("open product cache", zap.Error(err))
		return 1
	}

	deadLetters, err := deadletter.NewFileQueue(cfg.DeadLetter.Dir, log)
	if err != nil {
		log.Error("open dead letter queue", zap.Error(err))
		return 1
	}

	shop, err := shopify.NewClient(&shopify.Config{
		ShopDomain:     cfg.Shopify.ShopDomain,
		AccessToken:    cfg.Shopify.AccessToken,
		APIVersion:     cfg.Shopify.APIVersion,
		TimeoutSeconds: cfg.Shopify.TimeoutSeconds,
		MaxRetries:     cfg.Shopify.MaxRetries,
		MinCallSpacing: cfg.Shopify.MinCallSpacing,
	}, log)
	if err != nil {
		log.Error("create shopify client", zap.Error(err))
		return 1
	}

	supplier, err := powerbody.NewClient(&powerbody.Config{
		Endpoint:         cfg.PowerBody.Endpoint,
		Username:         cfg.PowerBody.Username,
		APIKey:           cfg.PowerBody.APIKey,
		TimeoutSeconds:   cfg.PowerBody.TimeoutSeconds,
		MaxRetries:       cfg.PowerBody.MaxRetries,
		SessionLifetime:  cfg.PowerBody.SessionLifetime,
		RetryBackoffBase: cfg.PowerBody.RetryBackoffBase,
	}, productCache, log)
	if err != nil {
		log.Error("create powerbody client", zap.Error(err))
		return 1
	}

	exitCode := 0

	if runCatalog {
		orch, err := productsync.New(supplier, shop, mappings, productsync.Config{
			MarkupPercent:        cfg.ProductSync.MarkupPercent,
			TitleCleanupPatterns: cfg.ProductSync.TitleCleanupPatterns,
			BatchSize:            cfg.ProductSync.BatchSize,
			StartBatch:           cfg.ProductSync.StartBatch,
			ChunkSize:            cfg.ProductSync.ChunkSize,
			PublishZeroInventory: cfg.ProductSync.PublishZeroInventory,
		}, log)
		if err != nil {
			log.Error("create product orchestrator", zap.Error(err))
			return 1
		}
		report, err := orch.Run(ctx)
		if err != nil {
			log.Error("product sync aborted", zap.Error(err))
			return 1
		}
		if code := report.ExitCode(); code != 0 {
			exitCode = code
		}
	}

	if runOrders {
		orch := ordersync.New(shop, supplier, mappings, deadLetters, ordersync.Config{
			SyncTag:        cfg.OrderSync.SyncTag,
			OrderBatchFile: cfg.OrderSync.OrderBatchFile,
		}, log)
		report, err := orch.Run(ctx)
		if err != nil {
			log.Error("order sync aborted", zap.Error(err))
			return 1
		}
		if code := report.ExitCode(); code != 0 {
			exitCode = code
		}
	}

	return exitCode
}
