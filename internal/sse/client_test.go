package sse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kehao95/gh-notify/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const stream = "event: ready\ndata: {}\n\n" +
	": keepalive\n\n" +
	"id: 1\ndata: {\"x-github-event\":\"push\",\"x-github-delivery\":\"d-1\",\"body\":{\"ref\":\"refs/heads/main\"}}\n\n" +
	"id: 2\ndata: not json\n\n" +
	"id: 3\ndata: {\"x-github-event\":\"ping\",\"body\":{}}\n\n" +
	"id: 4\ndata: {\"x-github-event\":\"issues\",\r\ndata: \"x-github-delivery\":\"d-4\",\"body\":{\"action\":\"opened\"}}\r\n\r\n"

func TestReadStream(t *testing.T) {
	c := NewClient("http://unused", nil, nil)
	var got []message.EventMessage
	err := c.readStream(context.Background(), strings.NewReader(stream), zaptest.NewLogger(t).Sugar(),
		func(_ context.Context, msg message.EventMessage) error {
			got = append(got, msg)
			return nil
		})

	var streamErr streamError
	require.True(t, errors.As(err, &streamErr), "got %v", err)

	require.Len(t, got, 2)
	assert.Equal(t, "push", got[0].Event)
	assert.Equal(t, "d-1", got[0].DeliveryID)
	assert.Equal(t, "event", got[0].Type)
	assert.JSONEq(t, `{"ref":"refs/heads/main"}`, string(got[0].Payload))
	assert.Equal(t, "issues", got[1].Event)
	assert.JSONEq(t, `{"action":"opened"}`, string(got[1].Payload))
}

func TestReadStreamHandlerError(t *testing.T) {
	c := NewClient("http://unused", nil, nil)
	boom := errors.New("boom")
	err := c.readStream(context.Background(), strings.NewReader(stream), zaptest.NewLogger(t).Sugar(),
		func(context.Context, message.EventMessage) error { return boom })
	assert.Equal(t, boom, err)
}

func TestReadStreamDropsUnsubscribedEvents(t *testing.T) {
	c := NewClient("http://unused", []string{"push"}, nil)
	frames := "id: 1\ndata: {\"x-github-event\":\"ping\",\"x-github-delivery\":\"d-1\",\"body\":{\"zen\":\"z\"}}\n\n"
	called := false
	err := c.readStream(context.Background(), strings.NewReader(frames), zaptest.NewLogger(t).Sugar(),
		func(context.Context, message.EventMessage) error {
			called = true
			return nil
		})

	var streamErr streamError
	require.True(t, errors.As(err, &streamErr), "got %v", err)
	assert.False(t, called)
}

func TestReadStreamKeepsSubscribedEvents(t *testing.T) {
	c := NewClient("http://unused", []string{"issues", "push"}, nil)
	var got []string
	_ = c.readStream(context.Background(), strings.NewReader(stream), zaptest.NewLogger(t).Sugar(),
		func(_ context.Context, msg message.EventMessage) error {
			got = append(got, msg.Event)
			return nil
		})
	assert.Equal(t, []string{"push", "issues"}, got)

	c.Events = []string{"issues"}
	got = nil
	_ = c.readStream(context.Background(), strings.NewReader(stream), zaptest.NewLogger(t).Sugar(),
		func(_ context.Context, msg message.EventMessage) error {
			got = append(got, msg.Event)
			return nil
		})
	assert.Equal(t, []string{"issues"}, got)
}

func TestDecodeSmeeData(t *testing.T) {
	_, err := decodeSmeeData(`{"x-github-delivery":"d","body":{}}`)
	assert.EqualError(t, err, "missing x-github-event")

	_, err = decodeSmeeData(`{"x-github-event":"push","body":{}}`)
	assert.EqualError(t, err, "missing x-github-delivery")

	_, err = decodeSmeeData(`{"x-github-event":"push","x-github-delivery":"d"}`)
	assert.EqualError(t, err, "missing body")
}

func TestSplitSSELine(t *testing.T) {
	field, value := splitSSELine("data: a: b")
	assert.Equal(t, "data", field)
	assert.Equal(t, "a: b", value)

	field, value = splitSSELine("retry")
	assert.Equal(t, "retry", field)
	assert.Equal(t, "", value)
}

func TestRunAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"x-github-event\":\"ping\",\"x-github-delivery\":\"d-9\",\"body\":{\"zen\":\"z\"}}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewClient(srv.URL, nil, zaptest.NewLogger(t).Sugar())
	var got message.EventMessage
	err := c.Run(ctx, func(_ context.Context, msg message.EventMessage) error {
		got = msg
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "d-9", got.DeliveryID)
}
