package database

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/stupid-simple/foldershare/apperr"
)

func (d *Database) CreateFolder(ctx context.Context, folder *Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	d.Logger.Debug().Object("folder", folder).Msg("create folder")
	if d.skipWrite("create folder") {
		return nil
	}
	if err := d.Cli.WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("%w: could not create folder: %w", apperr.ErrInternal, err)
	}
	return nil
}

// GetFolder returns a live folder.
func (d *Database) GetFolder(ctx context.Context, id string) (*Folder, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	folder := &Folder{}
	err := d.Cli.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(folder).Error
	if err != nil {
		return nil, notFound(err, "folder %s", id)
	}
	return folder, nil
}

// ListFolders returns live folders, newest first, with their live media count.
func (d *Database) ListFolders(ctx context.Context) ([]FolderSummary, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	var rows []FolderSummary
	err := d.Cli.WithContext(ctx).
		Table("folder").
		Select("folder.*, COUNT(media.id) AS media_count").
		Joins("LEFT JOIN media ON media.folder_id = folder.id AND media.deleted = ?", false).
		Where("folder.deleted = ?", false).
		Group("folder.id").
		Order("folder.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: could not list folders: %w", apperr.ErrInternal, err)
	}
	return rows, nil
}

// SaveArchive records the location and fingerprint of a freshly built archive.
func (d *Database) SaveArchive(ctx context.Context, folderID, key, url, hash string) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.skipWrite("save archive") {
		return nil
	}
	res := d.Cli.WithContext(ctx).Model(&Folder{}).
		Where("id = ? AND deleted = ?", folderID, false).
		Updates(map[string]any{"zip_key": key, "zip_url": url, "zip_hash": hash})
	if res.Error != nil {
		return fmt.Errorf("%w: could not save archive of folder %s: %w", apperr.ErrInternal, folderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: folder %s", apperr.ErrNotFound, folderID)
	}
	return nil
}

// UpdateArchiveURL stores a freshly signed link for the archive at key. It
// reports false, without error, when the folder no longer points at key
// because a newer archive was saved or the folder was deleted.
func (d *Database) UpdateArchiveURL(ctx context.Context, folderID, key, url string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	if d.skipWrite("update archive url") {
		return true, nil
	}
	res := d.Cli.WithContext(ctx).Model(&Folder{}).
		Where("id = ? AND deleted = ? AND zip_key = ?", folderID, false, key).
		Update("zip_url", url)
	if res.Error != nil {
		return false, fmt.Errorf("%w: could not update archive url of folder %s: %w", apperr.ErrInternal, folderID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SoftDeleteFolder marks a folder deleted. Returns false if it was already deleted.
func (d *Database) SoftDeleteFolder(ctx context.Context, id string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	d.Logger.Info().Str("folder", id).Msg("soft delete folder")
	if d.skipWrite("delete folder") {
		return true, nil
	}
	res := d.Cli.WithContext(ctx).Model(&Folder{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("deleted", true)
	if res.Error != nil {
		return false, fmt.Errorf("%w: could not delete folder %s: %w", apperr.ErrInternal, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ArchivedFolders iterates live folders that have a stored archive.
func (d *Database) ArchivedFolders(ctx context.Context) iter.Seq[Folder] {
	return func(yield func(Folder) bool) {
		lastID := ""
		for {
			folders := []Folder{}

			d.Lock.Lock()
			err := d.Cli.WithContext(ctx).
				Where("deleted = ? AND zip_key <> ? AND id > ?", false, "", lastID).
				Order("id").
				Limit(iterateBatchSize).
				Find(&folders).Error
			d.Lock.Unlock()

			if err != nil {
				d.Logger.Error().Err(err).Msg("error fetching archived folders from database")
				return
			}
			if len(folders) == 0 {
				return
			}

			for _, f := range folders {
				if ctx.Err() != nil {
					return
				}
				if !yield(f) {
					return
				}
			}
			lastID = folders[len(folders)-1].ID
		}
	}
}
