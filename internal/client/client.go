// Package client reads relayed webhook events from a WebSocket broadcast.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kehao95/gh-notify/internal/message"
	"go.uber.org/zap"
)

type Config struct {
	ServerURL string
	Events    []string
}

// Handler receives each relayed event. Returning an error stops Run.
type Handler func(ctx context.Context, msg message.EventMessage) error

type handlerError struct {
	err error
}

func (e handlerError) Error() string {
	return e.err.Error()
}

func (e handlerError) Unwrap() error {
	return e.err
}

// Run keeps a subscription open until ctx is done or handle fails,
// reconnecting with exponential backoff.
func Run(ctx context.Context, cfg Config, logger *zap.SugaredLogger, handle Handler) error {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Infow("connecting", "url", cfg.ServerURL)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
		if err != nil {
			logger.Warnw("connect failed", "url", cfg.ServerURL, "error", err)
			wait(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}

		logger.Infow("connected", "url", cfg.ServerURL)
		backoff = time.Second

		if err := sendSubscribe(conn, cfg.Events); err != nil {
			logger.Warnw("subscribe failed", "error", err)
			_ = conn.Close()
			wait(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}

		err = readLoop(ctx, conn, logger, handle)
		_ = conn.Close()
		var herr handlerError
		if errors.As(err, &herr) {
			return herr.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Infow("disconnected", "error", err)
		wait(ctx, backoff)
		backoff = nextBackoff(backoff)
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, logger *zap.SugaredLogger, handle Handler) error {
	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}

			var msg message.EventMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				logger.Warnw("invalid json from server", "error", err, "bytes", len(data))
				continue
			}
			if msg.Type != "event" {
				continue
			}
			if err := handle(ctx, msg); err != nil {
				done <- handlerError{err: err}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func sendSubscribe(conn *websocket.Conn, events []string) error {
	if events == nil {
		events = []string{}
	}
	encoded, err := json.Marshal(subscribeMessage{Type: "subscribe", Events: events})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, encoded)
}

type subscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

func wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
