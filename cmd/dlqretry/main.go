package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dropsync/backend/internal/application/deadretry"
	"github.com/dropsync/backend/internal/infrastructure/cache"
	"github.com/dropsync/backend/internal/infrastructure/config"
	"github.com/dropsync/backend/internal/infrastructure/deadletter"
	"github.com/dropsync/backend/internal/infrastructure/logger"
	"github.com/dropsync/backend/internal/infrastructure/persistence"
	"github.com/dropsync/backend/internal/infrastructure/powerbody"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: ./config.toml)")
		all        = flag.Bool("all", false, "replay every pending record instead of the most recent one")
	)
	flag.Parse()

	os.Exit(run(*configPath, *all))
}

func run(configPath string, all bool) int {
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

	productCache, err := cache.NewFileProductCache(cfg.Cache.Dir, cfg.Cache.TTL, log)
	if err != nil {
		log.Error("open product cache", zap.Error(err))
		return 1
	}

	queue, err := deadletter.NewFileQueue(cfg.DeadLetter.Dir, log)
	if err != nil {
		log.Error("open dead letter queue", zap.Error(err))
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

	retrier := deadretry.New(queue, supplier, persistence.NewGormMappingStore(db.DB), log)
	ctx := context.Background()

	if all {
		results, err := retrier.RetryAll(ctx)
		if err != nil {
			log.Error("replay failed", zap.Error(err))
			return 1
		}
		code := 0
		for _, result := range results {
			if !result.Processed {
				code = 1
			}
		}
		log.Info("replay finished", zap.Int("records", len(results)))
		return code
	}

	result, err := retrier.RetryMostRecent(ctx)
	if err != nil {
		if errors.Is(err, deadretry.ErrNothingPending) {
			log.Info("nothing to replay")
			return 0
		}
		log.Error("replay failed", zap.Error(err))
		return 1
	}
	if !result.Processed {
		return 1
	}
	return 0
}
