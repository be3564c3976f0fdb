package notify

import (
	"context"

	"github.com/rs/zerolog"
)

const (
	EventSubscribe     = "subscribeToFile"
	EventFileProcessed = "fileProcessed"
	StatusComplete     = "complete"
)

// Notification tells a connection that the thumbnail of a file is ready.
type Notification struct {
	Event        string `json:"event"`
	FileName     string `json:"fileName"`
	Status       string `json:"status"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

func processed(filename, thumbnailURL string) Notification {
	return Notification{
		Event:        EventFileProcessed,
		FileName:     filename,
		Status:       StatusComplete,
		ThumbnailURL: thumbnailURL,
	}
}

func (n Notification) MarshalZerologObject(e *zerolog.Event) {
	e.Str("event", n.Event)
	e.Str("file", n.FileName)
}

// Subscriber is one live connection.
type Subscriber interface {
	// ID must be unique among open subscribers.
	ID() string
	Notify(ctx context.Context, n Notification) error
}
