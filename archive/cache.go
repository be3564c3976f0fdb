// Package archive serves zip archives of folders, rebuilding them only when
// the folder's live files change.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/database"
)

type Catalog interface {
	GetFolder(ctx context.Context, id string) (*database.Folder, error)
	ListMedia(ctx context.Context, folderID string, opts ...database.ListMediaOption) ([]database.Media, error)
	SaveArchive(ctx context.Context, folderID, key, url, hash string) error
}

// Archiver builds an archive of the named blobs and returns its object key.
type Archiver interface {
	Build(ctx context.Context, folderName string, filenames []string) (string, error)
}

type ReadSigner interface {
	ArchiveReadURL(ctx context.Context, key string) (string, error)
}

type Observer interface {
	RecordArchiveHit()
	RecordArchiveRebuild(duration time.Duration, err error)
}

type CacheParams struct {
	Catalog  Catalog
	Archiver Archiver
	Links    ReadSigner
	Observer Observer
	Logger   zerolog.Logger
}

type Cache struct {
	catalog  Catalog
	archiver Archiver
	links    ReadSigner
	observer Observer
	logger   zerolog.Logger
	flight   singleflight.Group
}

func NewCache(p CacheParams) *Cache {
	return &Cache{
		catalog:  p.Catalog,
		archiver: p.Archiver,
		links:    p.Links,
		observer: p.Observer,
		logger:   p.Logger,
	}
}

type Location struct {
	URL  string
	Hash string
	// Rebuilt is false when the stored archive was still current.
	Rebuilt bool
}

// GetArchive returns the archive of the folder's live media, rebuilding it
// if the media changed since the last build. Concurrent callers for the same
// folder content share one rebuild. A caller giving up does not cancel it.
func (c *Cache) GetArchive(ctx context.Context, folderID, password string) (Location, error) {
	folder, err := c.catalog.GetFolder(ctx, folderID)
	if err != nil {
		return Location{}, err
	}
	if !folder.PasswordMatches(password) {
		return Location{}, fmt.Errorf("%w: invalid folder password", apperr.ErrUnauthorized)
	}

	media, err := c.catalog.ListMedia(ctx, folderID)
	if err != nil {
		return Location{}, err
	}
	if len(media) == 0 {
		return Location{}, fmt.Errorf("%w: folder %s has no live media", apperr.ErrNotFound, folderID)
	}

	names := filenames(media)
	hash := Fingerprint(names)
	if folder.ZipHash == hash && folder.ZipURL != "" {
		if c.observer != nil {
			c.observer.RecordArchiveHit()
		}
		c.logger.Debug().Str("folder", folderID).Str("hash", hash).Msg("archive is current")
		return Location{URL: folder.ZipURL, Hash: hash}, nil
	}

	ch := c.flight.DoChan(folderID+"/"+hash, func() (any, error) {
		detached := context.WithoutCancel(ctx)

		// A rebuild for this content may have finished since the lookup above.
		current, err := c.catalog.GetFolder(detached, folderID)
		if err != nil {
			return nil, err
		}
		if current.ZipHash == hash && current.ZipURL != "" {
			if c.observer != nil {
				c.observer.RecordArchiveHit()
			}
			return Location{URL: current.ZipURL, Hash: hash}, nil
		}
		return c.rebuild(detached, current, names, hash)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Location{}, res.Err
		}
		return res.Val.(Location), nil
	case <-ctx.Done():
		return Location{}, ctx.Err()
	}
}

func (c *Cache) rebuild(ctx context.Context, folder *database.Folder, names []string, hash string) (loc Location, err error) {
	logger := c.logger.With().Object("folder", folder).Str("hash", hash).Logger()
	startTime := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.RecordArchiveRebuild(time.Since(startTime), err)
		}
		if err != nil {
			logger.Error().Err(err).Msg("archive rebuild failed")
		}
	}()

	logger.Info().Int("files", len(names)).Msg("rebuilding archive")
	key, err := c.archiver.Build(ctx, folder.Name, names)
	if err != nil {
		return Location{}, fmt.Errorf("%w: could not build archive of folder %s: %w", apperr.ErrInternal, folder.ID, err)
	}

	link, err := c.links.ArchiveReadURL(ctx, key)
	if err != nil {
		return Location{}, err
	}

	if err := c.catalog.SaveArchive(ctx, folder.ID, key, link, hash); err != nil {
		return Location{}, err
	}

	logger.Info().
		Str("key", key).
		Float64("seconds", time.Since(startTime).Seconds()).
		Msg("archive rebuilt")
	return Location{URL: link, Hash: hash, Rebuilt: true}, nil
}
