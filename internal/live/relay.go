package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/madiyar29925/UavHealthTracker12/internal/metrics"
)

const (
	// DefaultRelayChannel is the redis pub/sub channel used when none is configured
	DefaultRelayChannel = "uav:live"

	// DefaultRelayQueue is how many frames may wait for redis before
	// Publish starts dropping them
	DefaultRelayQueue = 256

	// DefaultPublishTimeout bounds a single redis PUBLISH
	DefaultPublishTimeout = 2 * time.Second
)

// ErrRelayQueueFull is returned by Publish when the outbound queue is full
// and the frame was dropped.
var ErrRelayQueueFull = errors.New("live: relay queue full")

// relayFrame is the msgpack body of a relay message. Frame holds the JSON
// envelope exactly as it goes out to clients.
type relayFrame struct {
	Origin string `msgpack:"origin"`
	Type   string `msgpack:"type"`
	Frame  []byte `msgpack:"frame"`
}

// FrameBroadcaster delivers serialised envelopes to local connections.
// Registry satisfies it.
type FrameBroadcaster interface {
	BroadcastFrame(t MessageType, frame []byte) int
}

// RedisRelay shares broadcasts between server instances over redis pub/sub.
//
// Every envelope broadcast locally is published once; every instance
// subscribes and hands frames published by other instances to its own
// registry. Frames carry the publishing instance's id so an instance never
// re-delivers its own broadcasts.
//
// Publish only queues; a single goroutine started by Run writes the queue
// to redis. A slow or unreachable redis costs dropped relay frames, never a
// stalled caller.
type RedisRelay struct {
	client     *redis.Client
	target     FrameBroadcaster
	logger     *slog.Logger
	channel    string
	instanceID string

	out            chan []byte
	publishTimeout time.Duration
}

// NewRedisRelay creates a relay on channel (DefaultRelayChannel when empty).
func NewRedisRelay(client *redis.Client, channel string, target FrameBroadcaster, logger *slog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &RedisRelay{
		client:     client,
		target:     target,
		logger:     logger.With("component", "live.relay", "instance", id),
		channel:    channel,
		instanceID: id,

		out:            make(chan []byte, DefaultRelayQueue),
		publishTimeout: DefaultPublishTimeout,
	}
}

// InstanceID identifies this relay's frames on the channel
func (r *RedisRelay) InstanceID() string { return r.instanceID }

// Publish queues env for the other instances and returns without waiting
// on redis. Frames queued while Run is not running are sent once it starts.
func (r *RedisRelay) Publish(_ context.Context, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	body, err := msgpack.Marshal(&relayFrame{Origin: r.instanceID, Type: string(env.Type), Frame: frame})
	if err != nil {
		return fmt.Errorf("encode relay frame: %w", err)
	}
	select {
	case r.out <- body:
		return nil
	default:
		metrics.RelayFrames.WithLabelValues("published", "dropped").Inc()
		return ErrRelayQueueFull
	}
}

// Run subscribes and relays frames until ctx is cancelled, and writes
// queued frames to redis for as long as it runs. It returns an error only
// when the subscription can't be established.
func (r *RedisRelay) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.drain(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed so no frame is missed
	// between Run starting and the first publish
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-r.out:
			if err := r.send(ctx, body); err != nil {
				r.logger.Warn("relay publish failed", "error", err)
			}
		}
	}
}

// send publishes one frame. The publish gets its own deadline and outlives
// a cancel of ctx so a frame taken off the queue is not cut off mid-write.
func (r *RedisRelay) send(ctx context.Context, body []byte) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	defer cancel()
	if err := r.client.Publish(pctx, r.channel, body).Err(); err != nil {
		metrics.RelayFrames.WithLabelValues("published", "error").Inc()
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	metrics.RelayFrames.WithLabelValues("published", "ok").Inc()
	return nil
}

func (r *RedisRelay) deliver(payload string) {
	var f relayFrame
	if err := msgpack.Unmarshal([]byte(payload), &f); err != nil {
		r.logger.Warn("undecodable relay frame", "error", err)
		metrics.RelayFrames.WithLabelValues("received", "malformed").Inc()
		return
	}
	if f.Origin == r.instanceID {
		metrics.RelayFrames.WithLabelValues("skipped", "own").Inc()
		return
	}
	n := r.target.BroadcastFrame(MessageType(f.Type), f.Frame)
	metrics.RelayFrames.WithLabelValues("received", "ok").Inc()
	r.logger.Debug("relayed frame", "type", f.Type, "origin", f.Origin, "delivered", n)
}
