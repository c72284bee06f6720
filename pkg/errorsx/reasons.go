package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Call-scoped stream failures. None of these are fatal to the
	// process; each is confined to a single frame, message, or call.
	ReasonAudioDecode   ReasonCode = "audio_decode"
	ReasonProtocolParse ReasonCode = "protocol_parse"
	ReasonTransportSend ReasonCode = "transport_send"
	ReasonUnknownCall   ReasonCode = "unknown_call"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonLLMGenerate               ReasonCode = "llm_generate"
)
