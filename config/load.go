package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults and rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Storage.Region == "" {
		c.Storage.Region = DefaultRegion
	}
	if c.Storage.MediaBucket == "" {
		c.Storage.MediaBucket = DefaultMediaBucket
	}
	if c.Storage.ThumbnailBucket == "" {
		c.Storage.ThumbnailBucket = c.Storage.MediaBucket
	}
	if c.Storage.ArchiveBucket == "" {
		c.Storage.ArchiveBucket = c.Storage.MediaBucket
	}
	if c.Links.WriteTTL.Duration == 0 {
		c.Links.WriteTTL.Duration = DefaultWriteTTL
	}
	if c.Links.ReadTTL.Duration == 0 {
		c.Links.ReadTTL.Duration = DefaultReadTTL
	}
	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = DefaultRefreshCron
	}
	if c.Refresh.Concurrency <= 0 {
		c.Refresh.Concurrency = DefaultConcurrency
	}

	var errs []error
	if c.Links.WriteTTL.Duration < 0 || c.Links.ReadTTL.Duration < 0 {
		errs = append(errs, errors.New("link lifetimes must be positive"))
	}
	if c.Links.WriteTTL.Duration >= c.Links.ReadTTL.Duration {
		errs = append(errs, fmt.Errorf("write_ttl (%s) must be shorter than read_ttl (%s)",
			c.Links.WriteTTL.Duration, c.Links.ReadTTL.Duration))
	}
	if c.Archive.MaxEntrySize.Size < 0 {
		errs = append(errs, errors.New("archive max_entry_size must not be negative"))
	}
	return errors.Join(errs...)
}
