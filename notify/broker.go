// Package notify matches live connections waiting on a file with the
// asynchronous thumbnail worker callbacks for that file.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stupid-simple/foldershare/apperr"
	"github.com/stupid-simple/foldershare/database"
)

var ErrStopped = errors.New("notification broker stopped")

const (
	triggerSubscribe = "subscribe"
	triggerCallback  = "callback"
)

type Catalog interface {
	FindMediaByFilename(ctx context.Context, filename string) (*database.Media, error)
	SetThumbnail(ctx context.Context, filename, thumbnailURL string) (int64, error)
}

type Observer interface {
	RecordDelivery(trigger string, err error)
}

type BrokerParams struct {
	Catalog  Catalog
	Observer Observer
	Logger   zerolog.Logger
}

// Broker owns the subscription table. The table is only touched by the run
// goroutine; catalog access and deliveries happen on the caller's goroutine.
type Broker struct {
	catalog  Catalog
	observer Observer
	logger   zerolog.Logger

	ops      chan func(*table)
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewBroker starts the broker. Call Stop to release it.
func NewBroker(p BrokerParams) *Broker {
	b := &Broker{
		catalog:  p.Catalog,
		observer: p.Observer,
		logger:   p.Logger,
		ops:      make(chan func(*table)),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	t := newTable()
	for {
		select {
		case op := <-b.ops:
			op(t)
		case <-b.quit:
			b.logger.Debug().Int("connections", len(t.conns)).Msg("notification broker stopped")
			return
		}
	}
}

// Stop discards every subscription. Calls made after Stop fail with ErrStopped.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		close(b.quit)
	})
	<-b.stopped
}

// do runs op on the broker goroutine and waits for it to finish.
func (b *Broker) do(ctx context.Context, op func(*table)) error {
	done := make(chan struct{})
	wrapped := func(t *table) {
		defer close(done)
		op(t)
	}

	select {
	case b.ops <- wrapped:
	case <-b.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Open registers a connection with no subscriptions.
func (b *Broker) Open(ctx context.Context, sub Subscriber) error {
	return b.do(ctx, func(t *table) {
		t.open(sub)
	})
}

// Close discards the connection's subscriptions without delivering them.
func (b *Broker) Close(ctx context.Context, sub Subscriber) error {
	return b.do(ctx, func(t *table) {
		if n := t.close(sub.ID()); n > 0 {
			b.logger.Debug().Str("conn", sub.ID()).Int("dropped", n).Msg("connection closed with pending subscriptions")
		}
	})
}

// Subscribe asks for a notification once filename has a thumbnail. If it
// already has one the notification is sent right away. Unknown filenames
// are logged and dropped.
func (b *Broker) Subscribe(ctx context.Context, sub Subscriber, filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", apperr.ErrInvalidArgument)
	}
	logger := b.logger.With().Str("conn", sub.ID()).Str("file", filename).Logger()

	media, err := b.catalog.FindMediaByFilename(ctx, filename)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.Warn().Msg("subscription to unknown file dropped")
		return nil
	}
	if err != nil {
		return err
	}
	if media.ThumbnailURL != "" {
		b.deliver(ctx, triggerSubscribe, sub, processed(filename, media.ThumbnailURL))
		return nil
	}

	var registered bool
	err = b.do(ctx, func(t *table) {
		registered = t.add(sub.ID(), filename)
	})
	if err != nil {
		return err
	}
	if !registered {
		logger.Debug().Msg("subscription from closed connection dropped")
		return nil
	}

	// The callback may have stored the thumbnail between the first lookup and
	// the insert above. Whoever removes the entry delivers it.
	media, err = b.catalog.FindMediaByFilename(ctx, filename)
	if err != nil || media.ThumbnailURL == "" {
		if err != nil {
			logger.Warn().Err(err).Msg("could not re-check subscription, leaving it pending")
		}
		return nil
	}

	var claimed bool
	err = b.do(ctx, func(t *table) {
		claimed = t.remove(sub.ID(), filename)
	})
	if err != nil {
		return err
	}
	if claimed {
		b.deliver(ctx, triggerSubscribe, sub, processed(filename, media.ThumbnailURL))
	}
	return nil
}

// OnWorkerCallback stores the thumbnail on every media named filename and
// notifies every connection waiting on it, once.
func (b *Broker) OnWorkerCallback(ctx context.Context, filename, thumbnailURL string) error {
	if filename == "" || thumbnailURL == "" {
		return fmt.Errorf("%w: filename and thumbnail url are required", apperr.ErrInvalidArgument)
	}
	logger := b.logger.With().Str("file", filename).Logger()

	updated, err := b.catalog.SetThumbnail(ctx, filename, thumbnailURL)
	if err != nil {
		return err
	}
	if updated == 0 {
		logger.Warn().Msg("thumbnail callback for unknown file dropped")
		return nil
	}
	logger.Info().Int64("media", updated).Msg("thumbnail stored")

	var waiting []Subscriber
	err = b.do(ctx, func(t *table) {
		waiting = t.takeAll(filename)
	})
	if err != nil {
		return err
	}

	n := processed(filename, thumbnailURL)
	g := errgroup.Group{}
	for _, sub := range waiting {
		g.Go(func() error {
			b.deliver(ctx, triggerCallback, sub, n)
			return nil
		})
	}
	return g.Wait()
}

// Pending returns the filenames the connection is still waiting on.
func (b *Broker) Pending(ctx context.Context, connID string) ([]string, error) {
	var files []string
	err := b.do(ctx, func(t *table) {
		files = t.pending(connID)
	})
	return files, err
}

func (b *Broker) deliver(ctx context.Context, trigger string, sub Subscriber, n Notification) {
	err := sub.Notify(ctx, n)
	if b.observer != nil {
		b.observer.RecordDelivery(trigger, err)
	}
	if err != nil {
		b.logger.Warn().Err(err).Str("conn", sub.ID()).Object("notification", n).Msg("could not deliver notification")
		return
	}
	b.logger.Debug().Str("conn", sub.ID()).Str("trigger", trigger).Object("notification", n).Msg("notification delivered")
}
