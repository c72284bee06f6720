package turn

import (
	"log/slog"
	"sync"

	"github.com/voxhall/frontdesk/pkg/vad"
)

// State is the playback side of a call.
type State int

const (
	// StateIdle means no synthesized audio is streaming to the caller.
	StateIdle State = iota
	// StatePlaying means synthesized audio is streaming and barge-in
	// detection is armed.
	StatePlaying
	// StateInterrupting is the transient state while the clear command
	// is being issued; it resolves to StateIdle before OnFrame returns.
	StateInterrupting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePlaying:
		return "PLAYING"
	case StateInterrupting:
		return "INTERRUPTING"
	default:
		return "UNKNOWN"
	}
}

// ClearSender flushes audio queued for playback on the stream
// connection. Implemented by the transport's per-connection writer.
type ClearSender interface {
	SendClear(streamID string) error
}

// Controller owns a call's playback state and decides when to fire an
// interruption. Frames arrive from the call's own stream worker, while
// SetPlaybackActive arrives from the playback pipeline's goroutine, so
// state is mutex-protected.
type Controller struct {
	streamID string
	detector *vad.Detector
	sender   ClearSender
	log      *slog.Logger

	mu    sync.Mutex
	state State
}

func NewController(streamID string, detector *vad.Detector, sender ClearSender, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		streamID: streamID,
		detector: detector,
		sender:   sender,
		log:      log,
		state:    StateIdle,
	}
}

// SetPlaybackActive is the playback pipeline's hook: true when
// synthesized speech starts, false when it finishes normally. Arming
// playback always starts a fresh detection window so stale counters
// from a prior turn cannot cause an instant false interrupt.
func (c *Controller) SetPlaybackActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.state = StatePlaying
		c.detector.Reset()
		c.log.Debug("playback_started", "stream_sid", c.streamID)
		return
	}
	c.state = StateIdle
	c.log.Debug("playback_finished", "stream_sid", c.streamID)
}

// Playing reports whether synthesized audio is currently streaming.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePlaying
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnFrame evaluates one decoded PCM frame. While playing, sustained
// caller speech fires the interruption: the clear command is sent on
// the stream connection, playback is flipped off, and counters reset.
// A send failure is returned so the caller can treat it as call
// teardown; it is never retried.
func (c *Controller) OnFrame(samples []int16) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return false, nil
	}
	if !c.detector.Observe(samples) {
		return false, nil
	}
	c.state = StateInterrupting
	err := c.sender.SendClear(c.streamID)
	c.state = StateIdle
	c.detector.Reset()
	if err != nil {
		c.log.Warn("clear_send_failed", "stream_sid", c.streamID, "error", err.Error())
		return true, err
	}
	c.log.Info("barge_in_detected", "stream_sid", c.streamID)
	return true, nil
}
