package live

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/metrics"
)

// Ingestor performs the writes that inbound live messages ask for.
// Implementations validate the payload, commit it and trigger the matching
// broadcast.
type Ingestor interface {
	IngestTelemetry(ctx context.Context, in fleet.NewTelemetry) (fleet.Telemetry, error)
	CreateAlert(ctx context.Context, in fleet.NewAlert) (fleet.Alert, error)
}

// DispatcherOptions configures inbound handling.
type DispatcherOptions struct {
	// Rate is the sustained number of messages per second accepted from one
	// connection. Zero disables limiting.
	Rate   float64
	Burst  int
	Logger *slog.Logger
}

// Dispatcher routes client messages. Every failure is logged and the message
// dropped; nothing here closes a connection.
type Dispatcher struct {
	ingest Ingestor
	limit  rate.Limit
	burst  int
	logger *slog.Logger
}

func NewDispatcher(ingest Ingestor, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		ingest: ingest,
		limit:  rate.Inf,
		burst:  opts.Burst,
		logger: logger.With("component", "live.inbound"),
	}
	if opts.Rate > 0 {
		d.limit = rate.Limit(opts.Rate)
		if d.burst <= 0 {
			d.burst = int(opts.Rate) + 1
		}
	}
	return d
}

// Handler returns the message callback for one connection. Each connection
// gets its own rate limiter.
func (d *Dispatcher) Handler(conn Conn) func(ctx context.Context, msg []byte) {
	lim := rate.NewLimiter(d.limit, d.burst)
	return func(ctx context.Context, msg []byte) {
		if !lim.Allow() {
			d.drop(conn, "", "rate_limited", nil)
			return
		}
		d.Handle(ctx, conn, msg)
	}
}

// Handle processes a single message from conn.
func (d *Dispatcher) Handle(ctx context.Context, conn Conn, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		d.drop(conn, "", "malformed", err)
		return
	}

	switch env.Type {
	case TypePing:
		if err := conn.Send(pongFrame); err != nil {
			d.drop(conn, env.Type, "pong_failed", err)
			return
		}
		d.accept(env.Type)

	case TypeTelemetry:
		if !env.HasPayload() {
			d.drop(conn, env.Type, "missing_payload", nil)
			return
		}
		var in fleet.NewTelemetry
		if err := json.Unmarshal(env.Payload, &in); err != nil {
			d.drop(conn, env.Type, "malformed", err)
			return
		}
		if _, err := d.ingest.IngestTelemetry(ctx, in); err != nil {
			d.drop(conn, env.Type, "rejected", err)
			return
		}
		d.accept(env.Type)

	case TypeAlert:
		if !env.HasPayload() {
			d.drop(conn, env.Type, "missing_payload", nil)
			return
		}
		var in fleet.NewAlert
		if err := json.Unmarshal(env.Payload, &in); err != nil {
			d.drop(conn, env.Type, "malformed", err)
			return
		}
		if _, err := d.ingest.CreateAlert(ctx, in); err != nil {
			d.drop(conn, env.Type, "rejected", err)
			return
		}
		d.accept(env.Type)

	default:
		// unknown types are ignored without a log line
		metrics.InboundMessages.WithLabelValues("other", "ignored").Inc()
	}
}

func (d *Dispatcher) accept(t MessageType) {
	metrics.InboundMessages.WithLabelValues(string(t), "ok").Inc()
}

func (d *Dispatcher) drop(conn Conn, t MessageType, reason string, err error) {
	label := string(t)
	if label == "" {
		label = "unknown"
	}
	metrics.InboundMessages.WithLabelValues(label, reason).Inc()
	attrs := []any{"conn", conn.ID(), "type", label, "reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	d.logger.Warn("inbound message dropped", attrs...)
}
