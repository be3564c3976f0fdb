// Package objectstore signs time-boxed links for blobs in S3 compatible storage
// and moves blobs between keys.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/config"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type Client struct {
	cli     *s3.Client
	presign *s3.PresignClient
	logger  zerolog.Logger
}

func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not load storage configuration: %w", err)
	}

	cli := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Client{
		cli:     cli,
		presign: s3.NewPresignClient(cli),
		logger:  logger,
	}, nil
}

// SignWrite returns a link allowing a single PUT of key with the given content type.
func (c *Client) SignWrite(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: could not sign upload of %s/%s: %w", apperr.ErrInternal, bucket, key, err)
	}
	return req.URL, nil
}

func (c *Client) SignRead(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: could not sign download of %s/%s: %w", apperr.ErrInternal, bucket, key, err)
	}
	return req.URL, nil
}

// Rename moves a blob to a new key within the bucket. S3 has no rename, so this
// copies then deletes the source. A failed delete leaves both keys in place.
func (c *Client) Rename(ctx context.Context, bucket, oldKey, newKey string) error {
	_, err := c.cli.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		CopySource: aws.String(bucket + "/" + url.PathEscape(oldKey)),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return classify(err, "could not copy %s/%s to %s", bucket, oldKey, newKey)
	}

	_, err = c.cli.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(oldKey),
	})
	if err != nil {
		return classify(err, "could not remove %s/%s after copy", bucket, oldKey)
	}

	c.logger.Debug().
		Str("bucket", bucket).
		Str("from", oldKey).
		Str("to", newKey).
		Msg("renamed blob")
	return nil
}

// Open streams a blob. The caller must close the returned reader.
func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	out, err := c.cli.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, classify(err, "could not open %s/%s", bucket, key)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

func (c *Client) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentType string) error {
	_, err := c.cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return classify(err, "could not upload %s/%s", bucket, key)
	}
	return nil
}

func classify(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s: %w", apperr.ErrNotFound, msg, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrInternal, msg, err)
}
