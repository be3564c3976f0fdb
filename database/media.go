package database

import (
	"context"
	"fmt"
	"iter"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stupid-simple/foldershare/apperr"
)

func (d *Database) CreateMedia(ctx context.Context, media *Media) error {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	d.Logger.Debug().Object("media", media).Msg("create media")
	if d.skipWrite("create media") {
		return nil
	}
	if err := d.Cli.WithContext(ctx).Create(media).Error; err != nil {
		return fmt.Errorf("%w: could not create media: %w", apperr.ErrInternal, err)
	}
	return nil
}

// GetMedia returns a live media row.
func (d *Database) GetMedia(ctx context.Context, id string) (*Media, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	media := &Media{}
	err := d.Cli.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(media).Error
	if err != nil {
		return nil, notFound(err, "media %s", id)
	}
	return media, nil
}

// FindMediaByFilename returns the oldest live media with this original filename.
func (d *Database) FindMediaByFilename(ctx context.Context, filename string) (*Media, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	media := &Media{}
	err := d.Cli.WithContext(ctx).
		Where("original_filename = ? AND deleted = ?", filename, false).
		Order("created_at, id").
		First(media).Error
	if err != nil {
		return nil, notFound(err, "media with filename %s", filename)
	}
	return media, nil
}

// CountMediaWithPrefix counts live media whose original filename starts with prefix.
// The comparison is case sensitive.
func (d *Database) CountMediaWithPrefix(ctx context.Context, prefix string) (int64, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	var count int64
	err := d.Cli.WithContext(ctx).Model(&Media{}).
		Where("deleted = ? AND substr(original_filename, 1, ?) = ?", false, utf8.RuneCountInString(prefix), prefix).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: could not count media with prefix %s: %w", apperr.ErrInternal, prefix, err)
	}
	return count, nil
}

func (d *Database) MediaFilenameExists(ctx context.Context, filename string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	var count int64
	err := d.Cli.WithContext(ctx).Model(&Media{}).
		Where("deleted = ? AND original_filename = ?", false, filename).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: could not look up filename %s: %w", apperr.ErrInternal, filename, err)
	}
	return count > 0, nil
}

// ListMedia returns the live media of a folder.
func (d *Database) ListMedia(ctx context.Context, folderID string, opts ...ListMediaOption) ([]Media, error) {
	o := listMediaOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	order := "created_at, id"
	if o.newestFirst {
		order = "created_at DESC, id DESC"
	}

	var media []Media
	err := d.Cli.WithContext(ctx).
		Where("folder_id = ? AND deleted = ?", folderID, false).
		Order(order).
		Find(&media).Error
	if err != nil {
		return nil, fmt.Errorf("%w: could not list media of folder %s: %w", apperr.ErrInternal, folderID, err)
	}
	return media, nil
}

func (d *Database) CountMedia(ctx context.Context, folderID string) (int64, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	var count int64
	err := d.Cli.WithContext(ctx).Model(&Media{}).
		Where("folder_id = ? AND deleted = ?", folderID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: could not count media of folder %s: %w", apperr.ErrInternal, folderID, err)
	}
	return count, nil
}

// SetThumbnail stores the thumbnail url on every media sharing the filename.
// Returns the number of rows updated.
func (d *Database) SetThumbnail(ctx context.Context, filename, thumbnailURL string) (int64, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.skipWrite("set thumbnail") {
		return 0, nil
	}
	res := d.Cli.WithContext(ctx).Model(&Media{}).
		Where("original_filename = ?", filename).
		Update("thumbnail_url", thumbnailURL)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: could not set thumbnail of %s: %w", apperr.ErrInternal, filename, res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateMediaURLs stores freshly signed links for a media read earlier as
// snapshot. The thumbnail link is only replaced while the row still holds the
// snapshot's thumbnail, so a concurrent worker callback is never overwritten.
func (d *Database) UpdateMediaURLs(ctx context.Context, snapshot *Media, url, thumbnailURL string) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.skipWrite("update media urls") {
		return nil
	}
	return d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Media{}).
			Where("id = ? AND deleted = ?", snapshot.ID, false).
			Update("url", url)
		if res.Error != nil {
			return fmt.Errorf("%w: could not update url of media %s: %w", apperr.ErrInternal, snapshot.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: media %s", apperr.ErrNotFound, snapshot.ID)
		}

		if snapshot.ThumbnailURL == "" || thumbnailURL == "" {
			return nil
		}
		res = tx.Model(&Media{}).
			Where("id = ? AND thumbnail_url = ?", snapshot.ID, snapshot.ThumbnailURL).
			Update("thumbnail_url", thumbnailURL)
		if res.Error != nil {
			return fmt.Errorf("%w: could not update thumbnail of media %s: %w", apperr.ErrInternal, snapshot.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			d.Logger.Debug().Str("media", snapshot.ID).Msg("thumbnail changed since read, keeping it")
		}
		return nil
	})
}

// TombstoneMedia soft deletes a live media row and renames its original
// filename. When it was the last live media of its folder, the folder is
// soft deleted in the same transaction.
func (d *Database) TombstoneMedia(ctx context.Context, media *Media, tombstoneName string) (folderDeleted bool, err error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.skipWrite("tombstone media") {
		return false, nil
	}

	err = d.Cli.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Media{}).
			Where("id = ? AND deleted = ?", media.ID, false).
			Updates(map[string]any{"deleted": true, "original_filename": tombstoneName})
		if res.Error != nil {
			return fmt.Errorf("%w: could not delete media %s: %w", apperr.ErrInternal, media.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: media %s", apperr.ErrNotFound, media.ID)
		}

		var remaining int64
		err := tx.Model(&Media{}).
			Where("folder_id = ? AND deleted = ?", media.FolderID, false).
			Count(&remaining).Error
		if err != nil {
			return fmt.Errorf("%w: could not count media of folder %s: %w", apperr.ErrInternal, media.FolderID, err)
		}
		if remaining > 0 {
			return nil
		}

		res = tx.Model(&Folder{}).
			Where("id = ? AND deleted = ?", media.FolderID, false).
			Update("deleted", true)
		if res.Error != nil {
			return fmt.Errorf("%w: could not delete folder %s: %w", apperr.ErrInternal, media.FolderID, res.Error)
		}
		folderDeleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	media.Deleted = true
	media.OriginalFilename = tombstoneName
	return folderDeleted, nil
}

// LiveMedia iterates every live media row in batches.
func (d *Database) LiveMedia(ctx context.Context) iter.Seq[Media] {
	return func(yield func(Media) bool) {
		lastID := ""
		for {
			media := []Media{}

			d.Lock.Lock()
			err := d.Cli.WithContext(ctx).
				Where("deleted = ? AND id > ?", false, lastID).
				Order("id").
				Limit(iterateBatchSize).
				Find(&media).Error
			d.Lock.Unlock()

			if err != nil {
				d.Logger.Error().Err(err).Msg("error fetching media from database")
				return
			}
			if len(media) == 0 {
				return
			}

			for _, m := range media {
				if ctx.Err() != nil {
					return
				}
				if !yield(m) {
					return
				}
			}
			lastID = media[len(media)-1].ID
		}
	}
}
