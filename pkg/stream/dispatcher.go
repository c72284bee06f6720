package stream

import (
	"encoding/base64"
	"log/slog"

	"github.com/google/uuid"
	"github.com/voxhall/frontdesk/pkg/audio"
	"github.com/voxhall/frontdesk/pkg/errorsx"
)

// Conn is the outbound side of a stream connection. The dispatcher
// hands it to the session so the interruption controller can flush
// queued playback.
type Conn interface {
	SendClear(streamID string) error
}

// Dispatcher routes inbound stream messages to the per-call session
// state. Each connection worker calls OnMessage serially, so frame
// order is preserved per call; only the registry is shared.
type Dispatcher struct {
	reg *Registry
	log *slog.Logger
}

func NewDispatcher(reg *Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{reg: reg, log: log}
}

// OnMessage handles one raw message from a stream connection and
// returns the stream SID it concerned, so the connection worker can
// release the session if the transport drops without a stop event.
// Failures are scoped to this one message; the connection stays open.
func (d *Dispatcher) OnMessage(conn Conn, raw []byte) string {
	env, err := ParseEnvelope(raw)
	if err != nil {
		d.log.Warn("stream_message_malformed",
			"reason_code", string(errorsx.ReasonProtocolParse),
			"error", err.Error(),
		)
		return ""
	}
	switch env.Event {
	case EventStart:
		return d.onStart(conn, env.Start)
	case EventMedia:
		d.onMedia(env.StreamSID, env.Media)
	case EventStop:
		d.onStop(env.StreamSID)
	case EventMark:
		d.log.Debug("mark_received", "stream_sid", env.StreamSID, "name", env.Mark.Name)
	default:
		d.log.Debug("stream_event_ignored", "event", env.Event)
	}
	return env.StreamSID
}

// OnDisconnect releases the session after an abrupt connection close.
// A new start begins a fresh session; nothing is retried.
func (d *Dispatcher) OnDisconnect(streamSID string) {
	if streamSID == "" {
		return
	}
	sess, ok := d.reg.ByStream(streamSID)
	if !ok {
		return
	}
	d.log.Info("media_stream_disconnected", "stream_sid", streamSID, "call_sid", sess.CallSID)
	d.reg.Remove(sess.CallSID)
}

func (d *Dispatcher) onStart(conn Conn, start *StartEvent) string {
	traceID := uuid.NewString()
	sess, created := d.reg.GetOrCreate(start.CallSID, start.StreamSID, traceID, conn)
	if sess == nil {
		d.log.Warn("stream_start_without_call_sid", "stream_sid", start.StreamSID)
		return start.StreamSID
	}
	if created {
		d.log.Info("media_stream_started",
			"stream_sid", start.StreamSID,
			"call_sid", start.CallSID,
			"trace_id", traceID,
		)
	}
	return start.StreamSID
}

func (d *Dispatcher) onMedia(streamSID string, media *MediaEvent) {
	sess, ok := d.reg.ByStream(streamSID)
	if !ok {
		// A media frame may race a stop for the same call.
		d.log.Debug("media_for_unknown_call",
			"reason_code", string(errorsx.ReasonUnknownCall),
			"stream_sid", streamSID,
		)
		return
	}
	sess.Touch()
	raw, err := base64.StdEncoding.DecodeString(media.Payload)
	if err != nil {
		d.dropFrame(sess, err)
		return
	}
	pcm, err := audio.DecodeMuLaw(raw)
	if err != nil {
		d.dropFrame(sess, err)
		return
	}
	sess.Recent.Push(pcm)
	if !sess.Ctl.Playing() {
		return
	}
	if _, err := sess.Ctl.OnFrame(pcm); err != nil {
		// The clear command could not be sent: the connection is
		// gone, so treat it as call teardown.
		d.log.Warn("stream_send_failed",
			"reason_code", string(errorsx.ReasonTransportSend),
			"stream_sid", streamSID,
			"call_sid", sess.CallSID,
			"error", err.Error(),
		)
		d.reg.Remove(sess.CallSID)
	}
}

func (d *Dispatcher) onStop(streamSID string) {
	sess, ok := d.reg.ByStream(streamSID)
	if !ok {
		d.log.Debug("stop_for_unknown_call",
			"reason_code", string(errorsx.ReasonUnknownCall),
			"stream_sid", streamSID,
		)
		return
	}
	d.log.Info("media_stream_stopped", "stream_sid", streamSID, "call_sid", sess.CallSID)
	d.reg.Remove(sess.CallSID)
}

func (d *Dispatcher) dropFrame(sess *Session, err error) {
	d.log.Warn("audio_frame_dropped",
		"reason_code", string(errorsx.ReasonAudioDecode),
		"stream_sid", sess.StreamSID,
		"call_sid", sess.CallSID,
		"error", err.Error(),
	)
}
