package twilio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	twilioclient "github.com/twilio/twilio-go/client"
	"github.com/voxhall/frontdesk/pkg/errorsx"
	"github.com/voxhall/frontdesk/pkg/respond"
	"github.com/voxhall/frontdesk/pkg/stream"
)

type Config struct {
	ServerAddr         string   `mapstructure:"server_addr"`
	PublicURL          string   `mapstructure:"public_url"`
	AuthToken          string   `mapstructure:"auth_token"`
	AccountSID         string   `mapstructure:"account_sid"`
	VoicePath          string   `mapstructure:"voice_path"`
	WebsocketPath      string   `mapstructure:"ws_path"`
	RespondPath        string   `mapstructure:"respond_path"`
	SpeakingPath       string   `mapstructure:"speaking_path"`
	StatusCallbackPath string   `mapstructure:"status_callback_path"`
	VoiceGreeting      string   `mapstructure:"voice_greeting"`
	AllowAnyOrigin     bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.VoicePath == "" {
		c.VoicePath = "/voice"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.RespondPath == "" {
		c.RespondPath = "/respond"
	}
	if c.SpeakingPath == "" {
		c.SpeakingPath = "/speaking"
	}
	if c.StatusCallbackPath == "" {
		c.StatusCallbackPath = "/status"
	}
	if c.VoiceGreeting == "" {
		c.VoiceGreeting = "Hello! You've reached our AI receptionist. How can I help you today?"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Transport serves the Twilio webhooks and the media-stream websocket.
// Each websocket connection gets its own reader goroutine that feeds
// raw messages to the dispatcher in arrival order, plus a writer
// goroutine for outbound control commands.
type Transport struct {
	cfg        Config
	server     *http.Server
	upgrader   websocket.Upgrader
	dispatcher *stream.Dispatcher
	registry   *stream.Registry
	responder  respond.Responder
	transcript *respond.Transcript

	draining atomic.Bool
}

func New(cfg Config, dispatcher *stream.Dispatcher, registry *stream.Registry, responder respond.Responder, transcript *respond.Transcript) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		dispatcher: dispatcher,
		registry:   registry,
		responder:  responder,
		transcript: transcript,
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "twilio" }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"webhook_url":         t.publicURL("https", t.cfg.VoicePath),
		"status_callback_url": t.publicURL("https", t.cfg.StatusCallbackPath),
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.VoicePath, t.handleVoice)
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc(t.cfg.RespondPath, t.handleRespond)
	mux.HandleFunc(t.cfg.SpeakingPath, t.handleSpeaking)
	mux.HandleFunc(t.cfg.StatusCallbackPath, t.handleStatusCallback)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	return nil
}

// ServeHTTP is the media-stream endpoint. The read loop is this call's
// worker: it processes frames strictly in arrival order and blocks only
// while awaiting the next inbound message.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wc := newWSConn(conn)
	go wc.loop()
	defer wc.close()

	var streamSID string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if sid := t.dispatcher.OnMessage(wc, msg); sid != "" {
			streamSID = sid
		}
	}
	t.dispatcher.OnDisconnect(streamSID)
}

func (t *Transport) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		slog.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	wsURL := "wss://" + t.publicHost(r) + t.cfg.WebsocketPath
	twiml := `<Response><Say>` + xmlEscape(t.cfg.VoiceGreeting) + `</Say><Connect><Stream url="` + wsURL + `"/></Connect></Response>`
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twiml))
}

// handleRespond receives the platform's recording transcription and
// answers with synthesized speech. Transcription happens on the
// platform side; this service only sees text.
func (t *Transport) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		slog.Warn("twilio_respond_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeSay(w, "I'm sorry, I didn't receive your question. Please try calling again.")
		return
	}
	callSID := r.FormValue("CallSid")
	query := strings.TrimSpace(r.FormValue("TranscriptionText"))
	if query == "" {
		slog.Warn("respond_empty_transcription", "call_sid", callSID)
		writeSay(w, "I'm sorry, I couldn't understand what you said. Could you please call back and speak more clearly?")
		return
	}
	t.transcript.Append(callSID, "caller", query)
	reply, err := t.responder.Reply(r.Context(), callSID, query)
	if err != nil {
		slog.Error("respond_generate_failed",
			"reason_code", string(errorsx.Reason(err)),
			"call_sid", callSID,
			"error", err.Error(),
		)
		writeSay(w, "I'm sorry, I'm experiencing technical difficulties. Please try calling again later.")
		return
	}
	t.transcript.Append(callSID, "assistant", reply)
	writeSay(w, reply)
}

// handleSpeaking is the playback pipeline's signal that synthesized
// speech started or finished for a call. An unknown call is logged and
// ignored since the signal may race a stop.
func (t *Transport) handleSpeaking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	callSID := r.FormValue("call_sid")
	speaking := r.FormValue("speaking") == "true"
	sess, ok := t.registry.Get(callSID)
	if !ok {
		slog.Debug("speaking_signal_for_unknown_call",
			"reason_code", string(errorsx.ReasonUnknownCall),
			"call_sid", callSID,
		)
		w.WriteHeader(http.StatusOK)
		return
	}
	sess.Ctl.SetPlaybackActive(speaking)
	w.WriteHeader(http.StatusOK)
}

func (t *Transport) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.cfg.AuthToken != "" && !t.validateTwilioRequest(r) {
		slog.Warn("twilio_status_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	callSID := r.FormValue("CallSid")
	status := r.FormValue("CallStatus")
	if callSID == "" || !terminalStatus(status) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, ok := t.registry.Get(callSID); ok {
		slog.Info("call_ended_via_status", "call_sid", callSID, "status", status)
		t.registry.Remove(callSID)
	}
	t.transcript.CloseCall(callSID)
	w.WriteHeader(http.StatusOK)
}

func (t *Transport) publicHost(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		return normalizePublicURL(t.cfg.PublicURL)
	}
	if r != nil && r.Host != "" {
		return r.Host
	}
	return strings.TrimPrefix(t.cfg.ServerAddr, ":")
}

func (t *Transport) publicURL(scheme, path string) string {
	if t.cfg.PublicURL != "" {
		return scheme + "://" + normalizePublicURL(t.cfg.PublicURL) + path
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func (t *Transport) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" || t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		base := strings.TrimRight(t.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimSpace(allowed)
		if a == "" {
			continue
		}
		a = strings.TrimRight(a, "/")
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

func writeSay(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(`<Response><Say>` + xmlEscape(text) + `</Say></Response>`))
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}

func terminalStatus(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "busy", "no-answer", "failed", "canceled":
		return true
	default:
		return false
	}
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}

// wsConn is the outbound half of a media-stream connection. Writes go
// through a buffered channel drained by a single writer goroutine so
// the reader never blocks on the network.
type wsConn struct {
	conn   *websocket.Conn
	sendCh chan []byte
	closed atomic.Bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, sendCh: make(chan []byte, 256)}
}

// SendClear instructs the platform to flush audio queued for playback.
// It fails once the connection is closed; the caller treats that as
// call teardown.
func (c *wsConn) SendClear(streamID string) error {
	msg, err := json.Marshal(map[string]any{
		"event":     "clear",
		"streamSid": streamID,
	})
	if err != nil {
		return err
	}
	if c.closed.Load() {
		return errorsx.Wrap(errors.New("stream connection closed"), errorsx.ReasonTransportSend)
	}
	select {
	case c.sendCh <- msg:
		return nil
	default:
		return errorsx.Wrap(errors.New("stream send queue full"), errorsx.ReasonTransportSend)
	}
}

func (c *wsConn) loop() {
	for msg := range c.sendCh {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (c *wsConn) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.sendCh)
	}
	_ = c.conn.Close()
}
