package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/stupid-simple/foldershare/apperr"
)

const iterateBatchSize = 50

// Database is the catalog of folders and media. All reads skip soft-deleted rows.
type Database struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
	DryRun bool
}

func (d *Database) Migrate(ctx context.Context) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	return d.Cli.WithContext(ctx).AutoMigrate(Models()...)
}

func (d *Database) skipWrite(what string) bool {
	if !d.DryRun {
		return false
	}
	d.Logger.Info().Str("write", what).Msg("skipping catalog write (dry run)")
	return true
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrInternal, fmt.Sprintf(format, args...), err)
}
