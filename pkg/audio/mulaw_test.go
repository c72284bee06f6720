package audio

import (
	"bytes"
	"testing"
)

func TestDecodeMuLawSilence(t *testing.T) {
	raw := bytes.Repeat([]byte{0xFF}, SamplesPerFrame)
	pcm, err := DecodeMuLaw(raw)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(pcm) != SamplesPerFrame {
		t.Fatalf("expected %d samples, got %d", SamplesPerFrame, len(pcm))
	}
	for i, s := range pcm {
		if s != 0 {
			t.Fatalf("sample %d: expected 0, got %d", i, s)
		}
	}
	if rms := RMS(pcm); rms != 0 {
		t.Fatalf("expected RMS 0 for silence, got %f", rms)
	}
}

func TestDecodeMuLawFullScale(t *testing.T) {
	pcm, err := DecodeMuLaw([]byte{0x00, 0x80})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if pcm[0] != -32124 {
		t.Fatalf("expected -32124 for code 0x00, got %d", pcm[0])
	}
	if pcm[1] != 32124 {
		t.Fatalf("expected 32124 for code 0x80, got %d", pcm[1])
	}
}

func TestDecodeMuLawEmptyFrame(t *testing.T) {
	if _, err := DecodeMuLaw(nil); err != ErrEmptyFrame {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
	if got := RMS([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Fatalf("expected 1000, got %f", got)
	}
}
