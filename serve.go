package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/archive"
	"github.com/stupid-simple/foldershare/cascade"
	"github.com/stupid-simple/foldershare/config"
	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/fileutils"
	"github.com/stupid-simple/foldershare/folders"
	"github.com/stupid-simple/foldershare/metrics"
	"github.com/stupid-simple/foldershare/notify"
	"github.com/stupid-simple/foldershare/objectstore"
	"github.com/stupid-simple/foldershare/refresh"
	"github.com/stupid-simple/foldershare/scheduler"
	"github.com/stupid-simple/foldershare/server"
	"github.com/stupid-simple/foldershare/signedurl"
	"github.com/stupid-simple/foldershare/upload"
	"github.com/stupid-simple/foldershare/ziparchiver"
)

const configPollInterval = 30 * time.Second

func serveCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Serve.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	cfg, err := config.LoadFromFile(args.Serve.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	db, err := openCatalog(ctx, args.Serve.Database, logger, args.Serve.DryRun)
	if err != nil {
		return err
	}

	store, err := objectstore.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("could not configure object storage: %w", err)
	}
	logger.Info().Object("storage", cfg.Storage).Msg("object storage configured")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewPrometheusObserver("", registry)
	if err != nil {
		return fmt.Errorf("could not register metrics: %w", err)
	}

	links := newLinkBroker(cfg, store, db, logger)

	zipper, err := ziparchiver.New(ziparchiver.ArchiverParams{
		Blobs:         store,
		MediaBucket:   cfg.Storage.MediaBucket,
		ArchiveBucket: cfg.Storage.ArchiveBucket,
		Logger:        logger.With().Str("component", "archiver").Logger(),
	},
		ziparchiver.WithMaxEntryBytes(cfg.Archive.MaxEntrySize.Size),
		ziparchiver.WithTempDir(cfg.Archive.TempDir),
	)
	if err != nil {
		return fmt.Errorf("could not create archiver: %w", err)
	}

	var archiver archive.Archiver = zipper
	if cfg.Archive.ServiceURL != "" {
		logger.Info().Str("url", cfg.Archive.ServiceURL).Msg("using remote archiving service")
		archiver = archive.NewRemoteArchiver(cfg.Archive.ServiceURL, nil, logger)
	}

	notifier := notify.NewBroker(notify.BrokerParams{
		Catalog:  db,
		Observer: observer,
		Logger:   logger.With().Str("component", "notify").Logger(),
	})
	defer notifier.Stop()

	refreshJob := newRefreshJob(ctx, cfg, db, links, observer, logger)
	sched := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})
	scheduleRefresh(sched, cfg, refreshJob, logger)

	ticker := time.NewTicker(configPollInterval)
	defer ticker.Stop()
	startConfigFileWatcher(ctx, args.Serve.Config, logger, ticker, func(cfg *config.Config) {
		scheduleRefresh(sched, cfg, refreshJob, logger)
		logger.Info().Msg("refresh schedule reloaded. Other settings apply on restart")
	})

	sched.Start()
	defer sched.Stop()

	if cfg.Refresh.OnStart {
		go refreshJob.Run()
	}

	srv := server.New(server.ServerParams{
		Folders: folders.NewService(folders.ServiceParams{
			Catalog: db,
			Links:   links,
			Logger:  logger,
		}),
		Uploads: upload.NewRegistrar(upload.RegistrarParams{
			Catalog: db,
			Links:   links,
			Logger:  logger,
		}),
		Deleter: cascade.NewManager(cascade.ManagerParams{
			Catalog: db,
			Blobs:   store,
			Buckets: links.Buckets(),
			Logger:  logger.With().Str("component", "cascade").Logger(),
		}),
		Archives: archive.NewCache(archive.CacheParams{
			Catalog:  db,
			Archiver: archiver,
			Links:    links,
			Observer: observer,
			Logger:   logger.With().Str("component", "archive").Logger(),
		}),
		Notifier:       notifier,
		Catalog:        db,
		Downloader:     zipper,
		Gatherer:       registry,
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger.With().Str("component", "http").Logger(),
	})
	return srv.Run(ctx, cfg.Listen)
}

func newLinkBroker(cfg *config.Config, store *objectstore.Client, db *database.Database, logger zerolog.Logger) *signedurl.Broker {
	return signedurl.NewBroker(signedurl.BrokerParams{
		Signer: store,
		Names:  db,
		Buckets: signedurl.Buckets{
			Media:     cfg.Storage.MediaBucket,
			Thumbnail: cfg.Storage.ThumbnailBucket,
			Archive:   cfg.Storage.ArchiveBucket,
		},
		WriteTTL: cfg.Links.WriteTTL.Duration,
		ReadTTL:  cfg.Links.ReadTTL.Duration,
		Logger:   logger.With().Str("component", "links").Logger(),
	})
}

func newRefreshJob(
	ctx context.Context,
	cfg *config.Config,
	db *database.Database,
	links *signedurl.Broker,
	observer refresh.Observer,
	logger zerolog.Logger,
) *refresh.Job {
	return refresh.NewJob(ctx, refresh.JobParams{
		Catalog:     db,
		Links:       links,
		Observer:    observer,
		Concurrency: cfg.Refresh.Concurrency,
		Logger:      logger.With().Str("component", "refresh").Logger(),
	})
}

func scheduleRefresh(sched *scheduler.Scheduler, cfg *config.Config, job *refresh.Job, logger zerolog.Logger) {
	if !cfg.Refresh.Enable {
		sched.RemoveJobs()
		logger.Info().Msg("link refresh disabled")
		return
	}
	if err := sched.Reschedule(cfg.Refresh.Schedule, job); err != nil {
		logger.Error().Err(err).Msg("could not schedule link refresh")
		return
	}
	logger.Info().Object("refresh", cfg.Refresh).Msg("link refresh scheduled")
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, ticker.C, func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher:
				if !ok {
					return
				}
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}
