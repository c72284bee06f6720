package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionFactory builds the per-call state when a stream starts. The
// clear sender is the connection the stream arrived on.
type SessionFactory func(callSID, streamSID, traceID string, conn Conn) *Session

// Registry owns the active sessions, keyed by call SID with a stream
// SID index. It is the only state shared across stream workers; the
// mutex covers create and remove only.
type Registry struct {
	factory SessionFactory
	log     *slog.Logger

	mu       sync.Mutex
	byCall   map[string]*Session
	byStream map[string]string
}

func NewRegistry(factory SessionFactory, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		factory:  factory,
		log:      log,
		byCall:   make(map[string]*Session),
		byStream: make(map[string]string),
	}
}

// GetOrCreate returns the session for a call, building one lazily on
// first reference. The bool reports whether the session was created.
func (r *Registry) GetOrCreate(callSID, streamSID, traceID string, conn Conn) (*Session, bool) {
	if callSID == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.byCall[callSID]; ok {
		return sess, false
	}
	sess := r.factory(callSID, streamSID, traceID, conn)
	sess.Touch()
	r.byCall[callSID] = sess
	r.byStream[streamSID] = callSID
	return sess, true
}

// Get looks up a session by call SID.
func (r *Registry) Get(callSID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byCall[callSID]
	return sess, ok
}

// ByStream looks up a session by stream SID.
func (r *Registry) ByStream(streamSID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	callSID, ok := r.byStream[streamSID]
	if !ok {
		return nil, false
	}
	sess, ok := r.byCall[callSID]
	return sess, ok
}

// Remove discards a session. Removing an unknown call is a no-op so a
// late stop cannot fail.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byCall[callSID]
	if !ok {
		return
	}
	delete(r.byCall, callSID)
	if r.byStream[sess.StreamSID] == callSID {
		delete(r.byStream, sess.StreamSID)
	}
}

// Count reports the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCall)
}

// StartReaper evicts sessions with no traffic for ttl, covering calls
// whose connection dropped without a stop event. Runs until ctx ends.
func (r *Registry) StartReaper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reap(ttl)
			}
		}
	}()
}

func (r *Registry) reap(ttl time.Duration) {
	r.mu.Lock()
	var stale []*Session
	for _, sess := range r.byCall {
		if sess.IdleFor() > ttl {
			stale = append(stale, sess)
		}
	}
	for _, sess := range stale {
		delete(r.byCall, sess.CallSID)
		if r.byStream[sess.StreamSID] == sess.CallSID {
			delete(r.byStream, sess.StreamSID)
		}
	}
	r.mu.Unlock()
	for _, sess := range stale {
		r.log.Info("session_reaped",
			"call_sid", sess.CallSID,
			"stream_sid", sess.StreamSID,
			"idle", sess.IdleFor().String(),
		)
	}
}
