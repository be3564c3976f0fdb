package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/config"
	"github.com/stupid-simple/foldershare/objectstore"
)

func refreshCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Refresh.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	cfg, err := config.LoadFromFile(args.Refresh.Config)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	db, err := openCatalog(ctx, args.Refresh.Database, logger, args.Refresh.DryRun)
	if err != nil {
		return err
	}

	store, err := objectstore.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("could not configure object storage: %w", err)
	}

	links := newLinkBroker(cfg, store, db, logger)
	job := newRefreshJob(ctx, cfg, db, links, nil, logger)

	summary, err := job.Refresh(ctx)
	if err != nil {
		return err
	}
	if summary.MediaFailed > 0 || summary.FoldersFailed > 0 {
		return fmt.Errorf("%d media and %d archive links could not be refreshed", summary.MediaFailed, summary.FoldersFailed)
	}
	return nil
}
