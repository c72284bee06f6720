package stream

import (
	"encoding/json"
	"fmt"
)

// Event names carried in the envelope discriminant. Unknown names are
// ignored for forward compatibility.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
	EventMark  = "mark"
)

// Envelope is the inbound media-stream message, decoded once at the
// protocol boundary. Exactly one payload pointer is set, selected by
// Event.
type Envelope struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid"`
	Start     *StartEvent `json:"start,omitempty"`
	Media     *MediaEvent `json:"media,omitempty"`
	Stop      *StopEvent  `json:"stop,omitempty"`
	Mark      *MarkEvent  `json:"mark,omitempty"`
}

type StartEvent struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type MediaEvent struct {
	// Payload is base64-encoded mu-law audio.
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp"`
}

type StopEvent struct {
	CallSID string `json:"callSid"`
}

type MarkEvent struct {
	Name string `json:"name"`
}

// ParseEnvelope decodes a raw message into an envelope. A missing
// payload for the declared event is a parse failure, so routing never
// sees a half-built variant.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	switch env.Event {
	case EventStart:
		if env.Start == nil {
			return Envelope{}, fmt.Errorf("start event missing payload")
		}
	case EventMedia:
		if env.Media == nil {
			return Envelope{}, fmt.Errorf("media event missing payload")
		}
	case EventMark:
		if env.Mark == nil {
			return Envelope{}, fmt.Errorf("mark event missing payload")
		}
	}
	return env, nil
}
