package fileutils

import (
	"context"
	"time"
)

// WatchFile polls the file on every tick and emits when its content hash changes.
// The returned channel is closed when ctx is done.
func WatchFile(ctx context.Context, path string, ticker <-chan time.Time, onErr func(err error)) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	lastHash, err := ComputeFileHash(path)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker:
				newHash, err := ComputeFileHash(path)
				if err != nil {
					onErr(err)
					continue
				}
				if newHash == lastHash {
					continue
				}
				lastHash = newHash
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
