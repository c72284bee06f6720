package respond

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Transcript writes a per-call JSONL conversation trace under dir.
// A zero-value dir disables writing.
type Transcript struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

type transcriptEntry struct {
	Time    time.Time `json:"time"`
	CallSID string    `json:"call_sid"`
	Role    string    `json:"role"`
	Text    string    `json:"text"`
}

func NewTranscript(dir string) *Transcript {
	return &Transcript{dir: strings.TrimSpace(dir), files: make(map[string]*os.File)}
}

// Append records one conversation turn. Roles are "caller" and
// "assistant". Write failures are swallowed; the transcript is an
// artifact, never part of call handling.
func (t *Transcript) Append(callSID, role, text string) {
	if t.dir == "" || callSID == "" {
		return
	}
	entry := transcriptEntry{
		Time:    time.Now().UTC(),
		CallSID: callSID,
		Role:    role,
		Text:    text,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.fileFor(callSID)
	if f == nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
}

func (t *Transcript) fileFor(callSID string) *os.File {
	if f, ok := t.files[callSID]; ok {
		return f
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return nil
	}
	path := filepath.Join(t.dir, "transcript-"+callSID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	t.files[callSID] = f
	return f
}

// CloseCall closes the call's transcript file, if any.
func (t *Transcript) CloseCall(callSID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.files[callSID]; ok {
		_ = f.Close()
		delete(t.files, callSID)
	}
}

// Close closes any open files.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs error
	for id, f := range t.files {
		errs = errors.Join(errs, f.Close())
		delete(t.files, id)
	}
	return errs
}

// PurgeTranscripts removes transcript files in dir older than maxAge.
// Returns the deleted count.
func PurgeTranscripts(dir string, maxAge time.Duration) (int, error) {
	if dir == "" || maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var removed int
	var errs error
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "transcript-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}
