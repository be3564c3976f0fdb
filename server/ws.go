package server

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/foldershare/notify"
)

const (
	wsWriteTimeout = 10 * time.Second
	// Clients only send small subscribe messages.
	wsReadLimit = 4096
)

type wsMessage struct {
	Event    string `json:"event"`
	FileName string `json:"fileName"`
}

// wsSubscriber delivers notifications over one websocket connection.
// Writes come from the broker's delivery goroutines, so they are serialized.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

func (w *wsSubscriber) ID() string {
	return w.id
}

func (w *wsSubscriber) Notify(ctx context.Context, n notify.Notification) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteJSON(n)
}

func (s *Server) serveWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader already replied.
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &wsSubscriber{id: uuid.NewString(), conn: conn}
	logger := s.logger.With().Str("conn", sub.id).Logger()
	ctx := context.WithoutCancel(c.Request.Context())

	if err := s.notifier.Open(ctx, sub); err != nil {
		logger.Error().Err(err).Msg("could not register connection")
		_ = conn.Close()
		return
	}
	logger.Debug().Msg("connection opened")

	defer func() {
		if err := s.notifier.Close(ctx, sub); err != nil {
			logger.Warn().Err(err).Msg("could not unregister connection")
		}
		_ = conn.Close()
		logger.Debug().Msg("connection closed")
	}()

	s.readMessages(ctx, sub, logger)
}

func (s *Server) readMessages(ctx context.Context, sub *wsSubscriber, logger zerolog.Logger) {
	sub.conn.SetReadLimit(wsReadLimit)
	for {
		msg := wsMessage{}
		if err := sub.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}

		switch msg.Event {
		case notify.EventSubscribe:
			if err := s.notifier.Subscribe(ctx, sub, msg.FileName); err != nil {
				logger.Warn().Err(err).Str("file", msg.FileName).Msg("subscribe failed")
			}
		default:
			logger.Debug().Str("event", msg.Event).Msg("ignoring unknown websocket event")
		}
	}
}

// originChecker accepts every origin when none are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
