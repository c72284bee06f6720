package audio

// FrameRing retains the most recent PCM frames of a call. It bounds
// memory regardless of call duration and keeps arrival order for
// lookback, such as pre-roll recovery.
type FrameRing struct {
	frames [][]int16
	head   int
	size   int
}

func NewFrameRing(capacity int) *FrameRing {
	if capacity <= 0 {
		capacity = 100
	}
	return &FrameRing{frames: make([][]int16, capacity)}
}

// Push appends a frame, evicting the oldest one when full.
func (r *FrameRing) Push(frame []int16) {
	if r.size < len(r.frames) {
		r.frames[(r.head+r.size)%len(r.frames)] = frame
		r.size++
		return
	}
	r.frames[r.head] = frame
	r.head = (r.head + 1) % len(r.frames)
}

// Snapshot returns the retained frames, oldest first.
func (r *FrameRing) Snapshot() [][]int16 {
	out := make([][]int16, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.frames[(r.head+i)%len(r.frames)]
	}
	return out
}

func (r *FrameRing) Len() int { return r.size }

func (r *FrameRing) Cap() int { return len(r.frames) }
