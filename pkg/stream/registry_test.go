package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	reg := NewRegistry(testFactory(), nil)
	conn := &fakeConn{}
	first, created := reg.GetOrCreate("CA1", "MZ1", "trace-1", conn)
	if !created || first == nil {
		t.Fatalf("expected session created")
	}
	second, created := reg.GetOrCreate("CA1", "MZ1", "trace-2", conn)
	if created || second != first {
		t.Fatalf("expected existing session returned")
	}
	if _, created := reg.GetOrCreate("", "MZ2", "trace-3", conn); created {
		t.Fatalf("empty call sid must not create a session")
	}
}

func TestConcurrentGetOrCreateNoDuplicates(t *testing.T) {
	reg := NewRegistry(testFactory(), nil)
	conn := &fakeConn{}
	var wg sync.WaitGroup
	sessions := make([]*Session, 32)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _ = reg.GetOrCreate("CA1", "MZ1", fmt.Sprintf("trace-%d", i), conn)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(sessions); i++ {
		if sessions[i] != sessions[0] {
			t.Fatalf("got two distinct sessions for the same call")
		}
	}
	if reg.Count() != 1 {
		t.Fatalf("expected one session, got %d", reg.Count())
	}
}

func TestRemoveAndLookups(t *testing.T) {
	reg := NewRegistry(testFactory(), nil)
	conn := &fakeConn{}
	reg.GetOrCreate("CA1", "MZ1", "trace-1", conn)
	if _, ok := reg.ByStream("MZ1"); !ok {
		t.Fatalf("expected lookup by stream sid")
	}
	reg.Remove("CA1")
	if _, ok := reg.Get("CA1"); ok {
		t.Fatalf("expected session gone")
	}
	if _, ok := reg.ByStream("MZ1"); ok {
		t.Fatalf("expected stream index cleaned up")
	}
	// idempotent
	reg.Remove("CA1")
}

func TestReapEvictsOnlyIdleSessions(t *testing.T) {
	reg := NewRegistry(testFactory(), nil)
	conn := &fakeConn{}
	idle, _ := reg.GetOrCreate("CA-idle", "MZ-idle", "t1", conn)
	fresh, _ := reg.GetOrCreate("CA-fresh", "MZ-fresh", "t2", conn)

	idle.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())
	fresh.Touch()

	reg.reap(2 * time.Minute)
	if _, ok := reg.Get("CA-idle"); ok {
		t.Fatalf("expected idle session reaped")
	}
	if _, ok := reg.Get("CA-fresh"); !ok {
		t.Fatalf("fresh session must survive the reaper")
	}
}
