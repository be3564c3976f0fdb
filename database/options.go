package database

type listMediaOptions struct {
	newestFirst bool
}

type ListMediaOption func(*listMediaOptions)

// Return the media in upload order, newest first. The default is oldest
// first, which is the order archives and fingerprints are built in.
func WithNewestFirst() ListMediaOption {
	return func(o *listMediaOptions) {
		o.newestFirst = true
	}
}
