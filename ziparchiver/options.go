package ziparchiver

type options struct {
	maxEntryBytes int64
	tempDir       string
}

type Option func(o *options)

// Blobs larger than maxEntryBytes are left out of the archive. Zero means no limit.
func WithMaxEntryBytes(maxEntryBytes int64) Option {
	return func(o *options) {
		o.maxEntryBytes = maxEntryBytes
	}
}

// Directory archives are assembled in before upload.
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}
