package stream

import (
	"sync/atomic"
	"time"

	"github.com/voxhall/frontdesk/pkg/audio"
	"github.com/voxhall/frontdesk/pkg/turn"
)

// Session is the per-call state, created on stream start and discarded
// on stream stop or registry eviction. Never shared across calls.
type Session struct {
	CallSID   string
	StreamSID string
	TraceID   string
	Created   time.Time

	// Recent holds the newest decoded frames for lookback.
	Recent *audio.FrameRing
	// Ctl owns the playback flag and interruption decision.
	Ctl *turn.Controller

	lastSeen atomic.Int64
}

// Touch records traffic so the idle reaper leaves the session alone.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// IdleFor reports how long the session has gone without traffic.
func (s *Session) IdleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}
