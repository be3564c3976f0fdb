// Package cascade soft deletes media and the folders they leave empty.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/database"
	"github.com/stupid-simple/foldershare/signedurl"
)

type Catalog interface {
	GetMedia(ctx context.Context, id string) (*database.Media, error)
	GetFolder(ctx context.Context, id string) (*database.Folder, error)
	ListMedia(ctx context.Context, folderID string, opts ...database.ListMediaOption) ([]database.Media, error)
	TombstoneMedia(ctx context.Context, media *database.Media, tombstoneName string) (bool, error)
	SoftDeleteFolder(ctx context.Context, id string) (bool, error)
}

type Renamer interface {
	Rename(ctx context.Context, bucket, oldKey, newKey string) error
}

type ManagerParams struct {
	Catalog Catalog
	Blobs   Renamer
	Buckets signedurl.Buckets
	Logger  zerolog.Logger
}

type Manager struct {
	catalog Catalog
	blobs   Renamer
	buckets signedurl.Buckets
	logger  zerolog.Logger
}

func NewManager(p ManagerParams) *Manager {
	return &Manager{
		catalog: p.Catalog,
		blobs:   p.Blobs,
		buckets: p.Buckets,
		logger:  p.Logger,
	}
}

// DeleteMedia moves the media blob to its tombstone key, then tombstones the
// catalog row. If the media was the last live one of its folder the folder is
// deleted too. A failed blob move leaves the catalog untouched.
func (m *Manager) DeleteMedia(ctx context.Context, id string) (*database.Media, error) {
	media, err := m.catalog.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	if media.URL == "" || media.OriginalFilename == "" {
		return nil, fmt.Errorf("%w: media %s has no url or filename", apperr.ErrInternal, id)
	}

	logger := m.logger.With().Object("media", media).Logger()
	filename := media.OriginalFilename
	tombstone := signedurl.TombstoneName(media.ID, filename)

	err = m.blobs.Rename(ctx, m.buckets.Media, filename, tombstone)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		// Nothing left to protect, the row can go.
		logger.Warn().Err(err).Msg("media blob already gone")
	case err != nil:
		return nil, fmt.Errorf("%w: could not move blob of media %s: %w", apperr.ErrInternal, id, err)
	}

	if media.ThumbnailURL != "" {
		err := m.blobs.Rename(ctx, m.buckets.Thumbnail, signedurl.ThumbnailKey(filename), signedurl.ThumbnailKey(tombstone))
		if err != nil {
			logger.Warn().Err(err).Msg("could not move thumbnail blob")
		}
	}

	folderDeleted, err := m.catalog.TombstoneMedia(ctx, media, tombstone)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("tombstone", tombstone).Msg("media deleted")
	if folderDeleted {
		logger.Info().Str("folder", media.FolderID).Msg("folder deleted with its last media")
	}
	return media, nil
}

// DeleteFolder deletes every live media of the folder, then the folder.
// It is not atomic: on error some media may already be deleted, and calling
// it again resumes with the rest.
func (m *Manager) DeleteFolder(ctx context.Context, id string) (int, error) {
	if _, err := m.catalog.GetFolder(ctx, id); err != nil {
		return 0, err
	}

	media, err := m.catalog.ListMedia(ctx, id)
	if err != nil {
		return 0, err
	}

	logger := m.logger.With().Str("folder", id).Logger()
	logger.Info().Int("media", len(media)).Msg("deleting folder")

	deleted := 0
	var errs []error
	for _, item := range media {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := m.DeleteMedia(ctx, item.ID)
		if errors.Is(err, apperr.ErrNotFound) {
			// Deleted concurrently.
			continue
		}
		if err != nil {
			logger.Error().Err(err).Str("media", item.ID).Msg("could not delete media of folder")
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if len(errs) > 0 {
		return deleted, fmt.Errorf("folder %s partially deleted (%d of %d media): %w", id, deleted, len(media), errors.Join(errs...))
	}

	if _, err := m.catalog.SoftDeleteFolder(ctx, id); err != nil {
		return deleted, err
	}
	return deleted, nil
}
