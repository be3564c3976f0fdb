// Package refresh re-signs the read links stored in the catalog before they expire.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stupid-simple/foldershare/database"
)

var ErrAlreadyRunning = errors.New("refresh already running")

const (
	KindMedia   = "media"
	KindArchive = "archive"
)

type Catalog interface {
	LiveMedia(ctx context.Context) iter.Seq[database.Media]
	ArchivedFolders(ctx context.Context) iter.Seq[database.Folder]
	UpdateMediaURLs(ctx context.Context, snapshot *database.Media, url, thumbnailURL string) error
	UpdateArchiveURL(ctx context.Context, folderID, key, url string) (bool, error)
}

type Links interface {
	MediaReadURL(ctx context.Context, filename string) (string, error)
	ThumbnailReadURL(ctx context.Context, filename string) (string, error)
	ArchiveReadURL(ctx context.Context, key string) (string, error)
}

type Observer interface {
	RecordRefreshItem(kind string, err error)
	RecordRefreshRun(duration time.Duration)
}

type JobParams struct {
	Catalog     Catalog
	Links       Links
	Observer    Observer
	Concurrency int
	Logger      zerolog.Logger
}

// Job refreshes every live media link, then every stored archive link.
// It implements cron.Job.
type Job struct {
	ctx         context.Context
	catalog     Catalog
	links       Links
	observer    Observer
	concurrency int
	logger      zerolog.Logger

	running sync.Mutex
}

func NewJob(ctx context.Context, p JobParams) *Job {
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Job{
		ctx:         ctx,
		catalog:     p.Catalog,
		links:       p.Links,
		observer:    p.Observer,
		concurrency: concurrency,
		logger:      p.Logger,
	}
}

type Summary struct {
	Media         int
	MediaFailed   int
	Folders       int
	FoldersFailed int
}

func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("media", s.Media)
	e.Int("media_failed", s.MediaFailed)
	e.Int("folders", s.Folders)
	e.Int("folders_failed", s.FoldersFailed)
}

func (j *Job) Run() {
	if _, err := j.Refresh(j.ctx); err != nil {
		j.logger.Warn().Err(err).Msg("refresh not run")
	}
}

// Refresh re-signs all links once. Individual failures are logged and
// counted without stopping the run.
func (j *Job) Refresh(ctx context.Context) (Summary, error) {
	if !j.running.TryLock() {
		return Summary{}, ErrAlreadyRunning
	}
	defer j.running.Unlock()

	startTime := time.Now()
	j.logger.Info().Int("concurrency", j.concurrency).Msg("refreshing links")

	summary := Summary{}
	summary.Media, summary.MediaFailed = fanOut(ctx, j.concurrency, j.catalog.LiveMedia(ctx), func(m database.Media) error {
		err := j.refreshMedia(ctx, m)
		j.record(KindMedia, err)
		if err != nil {
			j.logger.Error().Err(err).Object("media", &m).Msg("could not refresh media links")
		}
		return err
	})
	summary.Folders, summary.FoldersFailed = fanOut(ctx, j.concurrency, j.catalog.ArchivedFolders(ctx), func(f database.Folder) error {
		err := j.refreshArchive(ctx, f)
		j.record(KindArchive, err)
		if err != nil {
			j.logger.Error().Err(err).Object("folder", &f).Msg("could not refresh archive link")
		}
		return err
	})

	took := time.Since(startTime)
	if j.observer != nil {
		j.observer.RecordRefreshRun(took)
	}
	if ctx.Err() != nil {
		j.logger.Info().Object("summary", summary).Msg("refresh cancelled")
		return summary, ctx.Err()
	}
	j.logger.Info().Object("summary", summary).Float64("seconds", took.Seconds()).Msg("links refreshed")
	return summary, nil
}

func (j *Job) refreshMedia(ctx context.Context, m database.Media) error {
	if m.OriginalFilename == "" {
		return fmt.Errorf("media %s has no filename", m.ID)
	}

	link, err := j.links.MediaReadURL(ctx, m.OriginalFilename)
	if err != nil {
		return err
	}

	thumbnail := ""
	if m.ThumbnailURL != "" {
		thumbnail, err = j.links.ThumbnailReadURL(ctx, m.OriginalFilename)
		if err != nil {
			return err
		}
	}
	return j.catalog.UpdateMediaURLs(ctx, &m, link, thumbnail)
}

func (j *Job) refreshArchive(ctx context.Context, f database.Folder) error {
	link, err := j.links.ArchiveReadURL(ctx, f.ZipKey)
	if err != nil {
		return err
	}
	updated, err := j.catalog.UpdateArchiveURL(ctx, f.ID, f.ZipKey, link)
	if err != nil {
		return err
	}
	if !updated {
		j.logger.Debug().Str("folder", f.ID).Str("key", f.ZipKey).Msg("archive superseded, link dropped")
	}
	return nil
}

func (j *Job) record(kind string, err error) {
	if j.observer != nil {
		j.observer.RecordRefreshItem(kind, err)
	}
}

// fanOut runs fn over items with at most limit calls in flight and returns
// how many items were processed and how many failed.
func fanOut[T any](ctx context.Context, limit int, items iter.Seq[T], fn func(T) error) (total, failed int) {
	var failures atomic.Int64
	g := errgroup.Group{}
	g.SetLimit(limit)

	for item := range items {
		if ctx.Err() != nil {
			break
		}
		total++
		g.Go(func() error {
			if err := fn(item); err != nil {
				failures.Add(1)
			}
			// Failures stay isolated to their item.
			return nil
		})
	}
	_ = g.Wait()
	return total, int(failures.Load())
}
