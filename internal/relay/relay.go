// Package relay formats relayed webhook events and hands the resulting chat
// messages to a sink.
package relay

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/kehao95/gh-notify/internal/filter"
	"github.com/kehao95/gh-notify/internal/format"
	"github.com/kehao95/gh-notify/internal/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gh-notify/relay")

// Sink receives formatted chat messages.
type Sink interface {
	Deliver(ctx context.Context, msg message.ChatMessage) error
}

type Relay struct {
	sink    Sink
	filters []filter.Predicate
	logger  *zap.SugaredLogger
}

func New(sink Sink, filters []filter.Predicate, logger *zap.SugaredLogger) *Relay {
	return &Relay{sink: sink, filters: filters, logger: logger}
}

// Handle processes one relayed event. Formatting problems and failed
// deliveries are logged, not returned, so one bad event never stops the
// stream.
func (r *Relay) Handle(ctx context.Context, ev message.EventMessage) error {
	ctx, span := tracer.Start(ctx, "relay.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("github.event", ev.Event),
			attribute.String("github.delivery_id", ev.DeliveryID),
		),
	)
	defer span.End()

	log := r.logger.With("event", ev.Event, "delivery_id", ev.DeliveryID)
	if ev.Truncated {
		log.Warnw("payload was truncated upstream; message may be incomplete")
	}

	ok, err := filter.MatchAll(ev.Payload, r.filters)
	if err != nil {
		span.SetStatus(codes.Error, "invalid payload")
		log.Warnw("cannot evaluate filters", "error", err)
		return nil
	}
	if !ok {
		span.SetAttributes(attribute.String("relay.outcome", "filtered"))
		log.Debugw("event filtered out")
		return nil
	}

	res := format.Format(ev.Request())
	switch {
	case res.Failed():
		span.SetAttributes(attribute.String("relay.outcome", "rejected"))
		log.Infow("event not formatted", "reason", res.Error.Message)
		return nil
	case res.Skipped():
		span.SetAttributes(attribute.String("relay.outcome", "skipped"))
		log.Debugw("event produced no message")
		return nil
	}

	if err := r.sink.Deliver(ctx, *res.Content); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		log.Errorw("delivery failed", "error", err)
		return nil
	}
	span.SetAttributes(attribute.String("relay.outcome", "delivered"))
	log.Infow("message delivered")
	return nil
}

// WriterSink writes each message as one JSON line.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

func (s *WriterSink) Deliver(_ context.Context, msg message.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(msg)
}
