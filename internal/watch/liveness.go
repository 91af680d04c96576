package watch

import (
	"time"

	"github.com/madiyar29925/UavHealthTracker12/internal/live"
)

// liveness decides when an open channel has gone silent.
//
// The check runs right before each probe is sent: if nothing has arrived
// for longer than tolerance probe intervals the channel is considered dead
// and must be force-closed instead of probed again.
type liveness struct {
	lastMessage time.Time
	interval    time.Duration
	tolerance   int
	requirePong bool
}

// reset starts a fresh observation window, used when a channel opens
func (l *liveness) reset(now time.Time) {
	l.lastMessage = now
}

// observe records an inbound message of type t. With requirePong only pong
// replies count as proof of life.
func (l *liveness) observe(now time.Time, t live.MessageType) {
	if l.requirePong && t != live.TypePong {
		return
	}
	l.lastMessage = now
}

// silentFor reports how long the channel has been quiet and whether that
// exceeds the tolerance
func (l *liveness) silentFor(now time.Time) (time.Duration, bool) {
	quiet := now.Sub(l.lastMessage)
	return quiet, quiet > time.Duration(l.tolerance)*l.interval
}
