package config

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultListen      = ":3000"
	DefaultWriteTTL    = 15 * time.Minute
	DefaultReadTTL     = 7 * 24 * time.Hour
	DefaultRefreshCron = "0 0 * * 0"
	DefaultConcurrency = 8
	DefaultMediaBucket = "media"
	DefaultRegion      = "us-east-1"
)

type Config struct {
	Listen         string        `json:"listen,omitempty"`
	AllowedOrigins []string      `json:"allowed_origins,omitempty"`
	AdminToken     string        `json:"admin_token,omitempty"`
	Storage        StorageConfig `json:"storage"`
	Links          LinksConfig   `json:"links"`
	Archive        ArchiveConfig `json:"archive"`
	Refresh        RefreshConfig `json:"refresh"`
}

type StorageConfig struct {
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	AccessKey       string `json:"access_key,omitempty"`
	SecretKey       string `json:"secret_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"`
	MediaBucket     string `json:"media_bucket"`
	ThumbnailBucket string `json:"thumbnail_bucket,omitempty"`
	ArchiveBucket   string `json:"archive_bucket,omitempty"`
}

// Lifetime of the signed links handed to clients.
type LinksConfig struct {
	WriteTTL Duration `json:"write_ttl,omitempty"`
	ReadTTL  Duration `json:"read_ttl,omitempty"`
}

type ArchiveConfig struct {
	// Archiving service endpoint. Archives are built in-process when empty.
	ServiceURL   string       `json:"service_url,omitempty"`
	MaxEntrySize SizeArgument `json:"max_entry_size,omitempty"`
	// Scratch directory for in-process archives. Defaults to the OS temp dir.
	TempDir string `json:"temp_dir,omitempty"`
}

type RefreshConfig struct {
	Enable      bool   `json:"enable"`
	Schedule    string `json:"cron,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
	OnStart     bool   `json:"on_start,omitempty"`
}

func (s StorageConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("region", s.Region)
	e.Str("media_bucket", s.MediaBucket)
	e.Str("thumbnail_bucket", s.ThumbnailBucket)
	e.Str("archive_bucket", s.ArchiveBucket)

	if s.Endpoint != "" {
		e.Str("endpoint", s.Endpoint)
		e.Bool("path_style", s.UsePathStyle)
	}
}

func (r RefreshConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("enable", r.Enable)
	e.Str("schedule", r.Schedule)
	e.Int("concurrency", r.Concurrency)

	if r.OnStart {
		e.Bool("on_start", r.OnStart)
	}
}
