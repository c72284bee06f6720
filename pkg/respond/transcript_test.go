package respond

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTranscriptAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	tr := NewTranscript(dir)
	defer tr.Close()

	tr.Append("CA1", "caller", "what are your opening hours?")
	tr.Append("CA1", "assistant", "We are open nine to five.")
	tr.CloseCall("CA1")

	f, err := os.Open(filepath.Join(dir, "transcript-CA1.jsonl"))
	if err != nil {
		t.Fatalf("open transcript: %v", err)
	}
	defer f.Close()

	var entries []transcriptEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e transcriptEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != "caller" || entries[1].Role != "assistant" {
		t.Fatalf("unexpected roles: %+v", entries)
	}
	if entries[1].CallSID != "CA1" {
		t.Fatalf("expected call sid CA1, got %q", entries[1].CallSID)
	}
}

func TestTranscriptDisabledWithoutDir(t *testing.T) {
	tr := NewTranscript("")
	tr.Append("CA1", "caller", "hello")
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPurgeTranscripts(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "transcript-CA-old.jsonl")
	if err := os.WriteFile(old, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	fresh := filepath.Join(dir, "transcript-CA-fresh.jsonl")
	if err := os.WriteFile(fresh, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	removed, err := PurgeTranscripts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh transcript must survive: %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("where are you located?")
	if !strings.Contains(prompt, `"where are you located?"`) {
		t.Fatalf("prompt missing caller query: %s", prompt)
	}
	if !strings.Contains(prompt, "AI receptionist") {
		t.Fatalf("prompt missing receptionist context")
	}
}

func TestStaticResponder(t *testing.T) {
	reply, err := StaticResponder{}.Reply(context.Background(), "CA1", "anything")
	if err != nil || reply == "" {
		t.Fatalf("expected default reply, got %q/%v", reply, err)
	}
	reply, err = StaticResponder{Text: "custom"}.Reply(context.Background(), "CA1", "anything")
	if err != nil || reply != "custom" {
		t.Fatalf("expected custom reply, got %q/%v", reply, err)
	}
}
