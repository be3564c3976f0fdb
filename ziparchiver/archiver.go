// Package ziparchiver builds zip archives of media blobs.
package ziparchiver

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/fileutils"
	"github.com/stupid-simple/foldershare/ziparchiver/zipwriter"
)

const contentType = "application/zip"

type Blobs interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentType string) error
}

type ArchiverParams struct {
	Blobs         Blobs
	MediaBucket   string
	ArchiveBucket string
	Logger        zerolog.Logger
}

// Archiver zips media blobs and uploads the result next to them.
type Archiver struct {
	blobs         Blobs
	mediaBucket   string
	archiveBucket string
	logger        zerolog.Logger
	o             options
}

func New(p ArchiverParams, opts ...Option) (*Archiver, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.tempDir != "" {
		if err := fileutils.VerifyWritableDir(o.tempDir); err != nil {
			return nil, fmt.Errorf("archive temp dir must be a writable directory: %w", err)
		}
	}

	return &Archiver{
		blobs:         p.Blobs,
		mediaBucket:   p.MediaBucket,
		archiveBucket: p.ArchiveBucket,
		logger:        p.Logger,
		o:             o,
	}, nil
}

type Stats struct {
	Entries int
	Skipped int
	Bytes   int64
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("entries", s.Entries)
	e.Int("skipped", s.Skipped)
	e.Int64("bytes", s.Bytes)
}

// Build archives filenames into the archive bucket and returns the archive key.
func (a *Archiver) Build(ctx context.Context, folderName string, filenames []string) (string, error) {
	key := ArchiveKey(folderName, fileutils.ComputeNamesHash(filenames))
	logger := a.logger.With().Str("folder", folderName).Str("key", key).Logger()

	startTime := time.Now()
	logger.Info().Int("files", len(filenames)).Msg("building archive")

	zipFile := zipwriter.NewTempZipFile(a.o.tempDir, "archive-*.zip")
	defer func() {
		if err := zipFile.Delete(); err != nil {
			logger.Warn().Err(err).Msg("could not remove temporary archive")
		}
	}()

	stats, err := a.writeEntries(ctx, zipFile, filenames, logger)
	err = errors.Join(err, zipFile.Close())
	if err != nil {
		return "", fmt.Errorf("%w: could not write archive %s: %w", apperr.ErrInternal, key, err)
	}
	if stats.Entries == 0 {
		return "", fmt.Errorf("%w: none of the %d files could be archived", apperr.ErrInternal, len(filenames))
	}

	if err := a.upload(ctx, zipFile.Path(), key); err != nil {
		return "", err
	}

	logger.Info().
		Object("stats", stats).
		Float64("seconds", time.Since(startTime).Seconds()).
		Msg("archive uploaded")
	return key, nil
}

// WriteTo streams an archive of filenames to w.
func (a *Archiver) WriteTo(ctx context.Context, w io.Writer, filenames []string) (Stats, error) {
	zipFile := zipwriter.NewStreamZipFile(w)
	stats, err := a.writeEntries(ctx, zipFile, filenames, a.logger)
	return stats, errors.Join(err, zipFile.Close())
}

func (a *Archiver) upload(ctx context.Context, path, key string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: could not reopen archive: %w", apperr.ErrInternal, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: could not stat archive: %w", apperr.ErrInternal, err)
	}
	return a.blobs.Put(ctx, a.archiveBucket, key, f, info.Size(), contentType)
}

// writeEntries copies each blob into the archive. Blobs that cannot be read
// or are too large are skipped.
func (a *Archiver) writeEntries(ctx context.Context, zipFile *zipwriter.ZipFile, filenames []string, logger zerolog.Logger) (Stats, error) {
	stats := Stats{}
	names := newEntryNames()

	for _, filename := range filenames {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		written, err := a.writeEntry(ctx, zipFile, names, filename, logger)
		if errors.Is(err, errSkipped) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, err
		}
		stats.Entries++
		stats.Bytes += written
	}
	return stats, nil
}

var errSkipped = errors.New("entry skipped")

func (a *Archiver) writeEntry(ctx context.Context, zipFile *zipwriter.ZipFile, names *entryNames, filename string, logger zerolog.Logger) (int64, error) {
	reader, size, err := a.blobs.Open(ctx, a.mediaBucket, filename)
	if err != nil {
		logger.Warn().Err(err).Str("file", filename).Msg("could not read blob. Will be skipped")
		return 0, errSkipped
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn().Err(err).Str("file", filename).Msg("failed to close blob")
		}
	}()

	if a.o.maxEntryBytes > 0 && size > a.o.maxEntryBytes {
		logger.Warn().
			Str("file", filename).
			Int64("size", size).
			Int64("max_size", a.o.maxEntryBytes).
			Msg("blob larger than max entry size. Will be skipped")
		return 0, errSkipped
	}

	header := &zip.FileHeader{
		Name:     names.next(filename),
		Method:   zip.Store,
		Modified: time.Now(),
	}
	w, err := zipFile.CreateHeader(header)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(w, reader)
	if err != nil {
		return 0, err
	}
	logger.Debug().
		Str("file", filename).
		Str("entry", header.Name).
		Int64("size", written).
		Msg("archived blob")
	return written, nil
}
