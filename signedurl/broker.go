// Package signedurl issues time-boxed links to media, thumbnail and archive blobs.
package signedurl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
)

// Maximum number of suffixes tried past the prefix count before giving up.
const maxProbes = 100

type Signer interface {
	SignWrite(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error)
	SignRead(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// NameIndex answers questions about the filenames already in use by live media.
type NameIndex interface {
	CountMediaWithPrefix(ctx context.Context, prefix string) (int64, error)
	MediaFilenameExists(ctx context.Context, filename string) (bool, error)
}

type Buckets struct {
	Media     string
	Thumbnail string
	Archive   string
}

type BrokerParams struct {
	Signer   Signer
	Names    NameIndex
	Buckets  Buckets
	WriteTTL time.Duration
	ReadTTL  time.Duration
	Logger   zerolog.Logger
}

type Broker struct {
	signer   Signer
	names    NameIndex
	buckets  Buckets
	writeTTL time.Duration
	readTTL  time.Duration
	logger   zerolog.Logger
}

func NewBroker(p BrokerParams) *Broker {
	return &Broker{
		signer:   p.Signer,
		names:    p.Names,
		buckets:  p.Buckets,
		writeTTL: p.WriteTTL,
		readTTL:  p.ReadTTL,
		logger:   p.Logger,
	}
}

type WriteCapability struct {
	URL      string
	Filename string
}

// IssueWriteCapability returns an upload link for desiredName, or for a
// suffixed variant when live media already use that name stem.
//
// Two concurrent requests for the same stem may still be handed the same name.
func (b *Broker) IssueWriteCapability(ctx context.Context, desiredName, contentType string) (WriteCapability, error) {
	if desiredName == "" || contentType == "" {
		return WriteCapability{}, fmt.Errorf("%w: filename and content type are required", apperr.ErrInvalidArgument)
	}

	finalName, err := b.freeName(ctx, desiredName)
	if err != nil {
		return WriteCapability{}, err
	}

	link, err := b.signer.SignWrite(ctx, b.buckets.Media, finalName, contentType, b.writeTTL)
	if err != nil {
		return WriteCapability{}, err
	}

	b.logger.Debug().
		Str("desired", desiredName).
		Str("filename", finalName).
		Str("content_type", contentType).
		Msg("issued upload link")
	return WriteCapability{URL: link, Filename: finalName}, nil
}

func (b *Broker) freeName(ctx context.Context, desiredName string) (string, error) {
	stem, ext := SplitName(desiredName)

	count, err := b.names.CountMediaWithPrefix(ctx, stem)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return desiredName, nil
	}

	// The prefix count also matches unrelated names such as "trip-photo.jpg",
	// so probe upwards until the candidate is actually free.
	for n := count; n < count+maxProbes; n++ {
		candidate := suffixed(stem, ext, n)
		exists, err := b.names.MediaFilenameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %s after %d attempts", apperr.ErrInternal, desiredName, maxProbes)
}

// IssueReadCapability returns a download link for key valid for the read lifetime.
func (b *Broker) IssueReadCapability(ctx context.Context, bucket, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: key is required", apperr.ErrInvalidArgument)
	}
	return b.signer.SignRead(ctx, bucket, key, b.readTTL)
}

func (b *Broker) MediaReadURL(ctx context.Context, filename string) (string, error) {
	return b.IssueReadCapability(ctx, b.buckets.Media, filename)
}

func (b *Broker) ThumbnailReadURL(ctx context.Context, filename string) (string, error) {
	return b.IssueReadCapability(ctx, b.buckets.Thumbnail, ThumbnailKey(filename))
}

func (b *Broker) ArchiveReadURL(ctx context.Context, key string) (string, error) {
	return b.IssueReadCapability(ctx, b.buckets.Archive, key)
}

func (b *Broker) Buckets() Buckets {
	return b.buckets
}
