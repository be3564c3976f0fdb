// Package dbtest opens throwaway in-memory catalogs for tests.
package dbtest

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/stupid-simple/foldershare/database"
)

// New returns a migrated catalog backed by a private in-memory SQLite database.
func New(t testing.TB) *database.Database {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	// Every new connection to ":memory:" is a new empty database.
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := &database.Database{
		Lock:   sync.Mutex{},
		Cli:    gormDB,
		Logger: zerolog.Nop(),
		DryRun: false,
	}
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// Folder creates a live folder.
func Folder(t testing.TB, db *database.Database, name string) *database.Folder {
	t.Helper()

	folder := &database.Folder{Name: name, CreatedBy: "tester"}
	require.NoError(t, db.CreateFolder(context.Background(), folder))
	return folder
}

// Media creates a live photo in folderID.
func Media(t testing.TB, db *database.Database, folderID, filename string) *database.Media {
	t.Helper()

	media := &database.Media{
		FolderID:         folderID,
		URL:              "https://storage.example/" + filename,
		Type:             database.MediaTypePhoto,
		UploadedBy:       "tester",
		OriginalFilename: filename,
	}
	require.NoError(t, db.CreateMedia(context.Background(), media))
	return media
}
