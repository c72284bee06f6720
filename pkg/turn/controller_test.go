package turn

import (
	"errors"
	"testing"

	"github.com/voxhall/frontdesk/pkg/vad"
)

type fakeSender struct {
	clears []string
	err    error
}

func (f *fakeSender) SendClear(streamID string) error {
	f.clears = append(f.clears, streamID)
	return f.err
}

func newTestController(sender ClearSender) *Controller {
	return NewController("stream-1", vad.New(vad.Config{}), sender, nil)
}

func loudFrame() []int16 {
	frame := make([]int16, 160)
	for i := range frame {
		frame[i] = 2000
	}
	return frame
}

func TestNoInterruptionWhileIdle(t *testing.T) {
	sender := &fakeSender{}
	c := newTestController(sender)
	for i := 0; i < 50; i++ {
		interrupted, err := c.OnFrame(loudFrame())
		if err != nil || interrupted {
			t.Fatalf("frame %d: unexpected interruption while idle", i)
		}
	}
	if len(sender.clears) != 0 {
		t.Fatalf("expected no clear commands, got %d", len(sender.clears))
	}
}

func TestSustainedSpeechFiresExactlyOneClear(t *testing.T) {
	sender := &fakeSender{}
	c := newTestController(sender)
	c.SetPlaybackActive(true)

	var fired int
	for i := 0; i < 10; i++ {
		interrupted, err := c.OnFrame(loudFrame())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if interrupted {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("expected exactly one interruption, got %d", fired)
	}
	if len(sender.clears) != 1 || sender.clears[0] != "stream-1" {
		t.Fatalf("expected one clear for stream-1, got %v", sender.clears)
	}
	if c.Playing() {
		t.Fatalf("expected playback inactive after interruption")
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle state, got %s", c.State())
	}
}

func TestQuietFramesKeepPlaying(t *testing.T) {
	sender := &fakeSender{}
	c := newTestController(sender)
	c.SetPlaybackActive(true)

	quiet := make([]int16, 160)
	for i := 0; i < 8; i++ {
		interrupted, err := c.OnFrame(quiet)
		if err != nil || interrupted {
			t.Fatalf("frame %d: unexpected interruption on silence", i)
		}
	}
	if !c.Playing() {
		t.Fatalf("expected session still playing")
	}
	if len(sender.clears) != 0 {
		t.Fatalf("expected no clear commands, got %d", len(sender.clears))
	}
}

func TestNormalCompletionEmitsNoClear(t *testing.T) {
	sender := &fakeSender{}
	c := newTestController(sender)
	c.SetPlaybackActive(true)
	c.SetPlaybackActive(false)
	if c.Playing() {
		t.Fatalf("expected idle after normal completion")
	}
	if len(sender.clears) != 0 {
		t.Fatalf("normal completion must not emit clear, got %d", len(sender.clears))
	}
}

func TestSetPlaybackActiveResetsDetectionWindow(t *testing.T) {
	sender := &fakeSender{}
	c := newTestController(sender)
	c.SetPlaybackActive(true)
	for i := 0; i < 9; i++ {
		c.OnFrame(loudFrame())
	}
	// re-arming twice lands in the same zero state as arming once
	c.SetPlaybackActive(true)
	c.SetPlaybackActive(true)
	for i := 0; i < 9; i++ {
		interrupted, _ := c.OnFrame(loudFrame())
		if interrupted {
			t.Fatalf("stale counters leaked through re-arm at frame %d", i)
		}
	}
	if interrupted, _ := c.OnFrame(loudFrame()); !interrupted {
		t.Fatalf("expected interruption on 10th consecutive frame after re-arm")
	}
}

func TestClearSendFailureReported(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection closed")}
	c := newTestController(sender)
	c.SetPlaybackActive(true)

	var lastErr error
	var interrupted bool
	for i := 0; i < 10; i++ {
		interrupted, lastErr = c.OnFrame(loudFrame())
	}
	if !interrupted || lastErr == nil {
		t.Fatalf("expected interruption with send error, got %v/%v", interrupted, lastErr)
	}
	if c.Playing() {
		t.Fatalf("playback must be off even when clear failed")
	}
}
