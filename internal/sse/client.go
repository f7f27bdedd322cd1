// Package sse reads webhook deliveries forwarded by a smee.io style
// Server-Sent-Events channel.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/kehao95/gh-notify/internal/message"
	"go.uber.org/zap"
)

type Client struct {
	URL string
	// Events limits delivery to these GitHub event kinds. Empty means all.
	Events     []string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

func NewClient(url string, events []string, logger *zap.SugaredLogger) *Client {
	return &Client{URL: url, Events: events, HTTPClient: http.DefaultClient, Logger: logger}
}

// Run streams events to handle until ctx is done or handle fails.
func (c *Client) Run(ctx context.Context, handle func(context.Context, message.EventMessage) error) error {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Infow("connecting", "url", c.URL, "events", c.Events)
		body, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warnw("connect failed", "url", c.URL, "error", err)
			wait(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		logger.Infow("connected", "url", c.URL)
		backoff = time.Second

		err = c.readStream(ctx, body, logger, handle)
		_ = body.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var streamErr streamError
		if !errors.As(err, &streamErr) {
			return err
		}
		logger.Infow("disconnected", "error", streamErr.err)
		wait(ctx, backoff)
		backoff = nextBackoff(backoff)
	}
}

func (c *Client) connect(ctx context.Context) (io.ReadCloser, error) {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func (c *Client) wants(event string) bool {
	return len(c.Events) == 0 || slices.Contains(c.Events, event)
}

// streamError marks a broken connection, after which Run reconnects.
type streamError struct {
	err error
}

func (e streamError) Error() string {
	return e.err.Error()
}

func (e streamError) Unwrap() error {
	return e.err
}

type smeePayload struct {
	Event      string          `json:"x-github-event"`
	DeliveryID string          `json:"x-github-delivery"`
	Body       json.RawMessage `json:"body"`
}

// frame collects the fields of one SSE event until its blank terminator.
type frame struct {
	id    string
	event string
	data  []string
}

func (f *frame) add(line string) {
	field, value := splitSSELine(line)
	switch field {
	case "id":
		f.id = value
	case "event":
		f.event = value
	case "data":
		f.data = append(f.data, value)
	}
}

func (c *Client) readStream(ctx context.Context, body io.Reader, logger *zap.SugaredLogger, handle func(context.Context, message.EventMessage) error) error {
	reader := bufio.NewReader(body)
	var current frame

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			return streamError{err: err}
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if err := c.dispatch(ctx, current, logger, handle); err != nil {
				return err
			}
			current = frame{}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		default:
			current.add(line)
		}
	}
}

// dispatch decodes a complete frame and hands it to handle. Frames that
// are empty, smee's "ready" greeting, undecodable, or of an unwanted event
// kind are dropped.
func (c *Client) dispatch(ctx context.Context, f frame, logger *zap.SugaredLogger, handle func(context.Context, message.EventMessage) error) error {
	if len(f.data) == 0 || f.event == "ready" {
		return nil
	}

	msg, err := decodeSmeeData(strings.Join(f.data, "\n"))
	if err != nil {
		logger.Warnw("failed to decode smee payload", "id", f.id, "error", err)
		return nil
	}
	if !c.wants(msg.Event) {
		logger.Debugw("event not subscribed", "event", msg.Event, "delivery_id", msg.DeliveryID)
		return nil
	}
	return handle(ctx, msg)
}

func splitSSELine(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}

func decodeSmeeData(raw string) (message.EventMessage, error) {
	var payload smeePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return message.EventMessage{}, err
	}
	if payload.Event == "" {
		return message.EventMessage{}, fmt.Errorf("missing x-github-event")
	}
	if payload.DeliveryID == "" {
		return message.EventMessage{}, fmt.Errorf("missing x-github-delivery")
	}
	if len(payload.Body) == 0 {
		return message.EventMessage{}, fmt.Errorf("missing body")
	}

	return message.EventMessage{
		Type:       "event",
		Event:      payload.Event,
		DeliveryID: payload.DeliveryID,
		Payload:    payload.Body,
	}, nil
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
