package frontdesk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxhall/frontdesk/pkg/audio"
	"github.com/voxhall/frontdesk/pkg/configutil"
	"github.com/voxhall/frontdesk/pkg/errorsx"
	"github.com/voxhall/frontdesk/pkg/logging"
	"github.com/voxhall/frontdesk/pkg/respond"
	"github.com/voxhall/frontdesk/pkg/stream"
	"github.com/voxhall/frontdesk/pkg/transports"
	"github.com/voxhall/frontdesk/pkg/transports/twilio"
	"github.com/voxhall/frontdesk/pkg/turn"
	"github.com/voxhall/frontdesk/pkg/vad"
)

// Engine wires the stream dispatcher, session registry, transport and
// receptionist glue for one process.
type Engine struct {
	cfg        Config
	registry   *stream.Registry
	dispatcher *stream.Dispatcher
	transport  transports.Transport
	responder  respond.Responder
	transcript *respond.Transcript
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("frontdesk_init",
		"environment", cfg.Environment,
		"transport", cfg.Transport.Provider,
		"responder", cfg.Responder.Provider,
	)

	transcript := respond.NewTranscript(cfg.Observability.ArtifactsDir)
	if cfg.Observability.RetentionDays > 0 {
		maxAge := time.Duration(cfg.Observability.RetentionDays) * 24 * time.Hour
		if removed, err := respond.PurgeTranscripts(cfg.Observability.ArtifactsDir, maxAge); err != nil {
			slog.Warn("transcript_purge_failed", "error", err.Error())
		} else if removed > 0 {
			slog.Info("transcripts_purged", "removed", removed)
		}
	}

	responder, err := buildResponder(ctx, cfg.Responder)
	if err != nil {
		return nil, err
	}

	factory := func(callSID, streamSID, traceID string, conn stream.Conn) *stream.Session {
		detector := vad.New(cfg.VAD)
		log := slog.Default().With("call_sid", callSID)
		return &stream.Session{
			CallSID:   callSID,
			StreamSID: streamSID,
			TraceID:   traceID,
			Created:   time.Now(),
			Recent:    audio.NewFrameRing(cfg.Audio.RingCapacity),
			Ctl:       turn.NewController(streamSID, detector, conn, log),
		}
	}
	registry := stream.NewRegistry(factory, logging.NewComponentLogger(slog.Default(), "registry"))
	dispatcher := stream.NewDispatcher(registry, logging.NewComponentLogger(slog.Default(), "dispatcher"))

	transport, err := buildTransport(cfg.Transport, dispatcher, registry, responder, transcript)
	if err != nil {
		return nil, err
	}

	engineCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		transport:  transport,
		responder:  responder,
		transcript: transcript,
		ctx:        engineCtx,
		cancel:     cancel,
	}, nil
}

func (e *Engine) Start() error {
	interval := time.Duration(e.cfg.Sessions.ReapIntervalMS) * time.Millisecond
	ttl := time.Duration(e.cfg.Sessions.IdleTTLMS) * time.Millisecond
	e.registry.StartReaper(e.ctx, interval, ttl)
	if err := e.transport.Start(e.ctx); err != nil {
		return err
	}
	if reporter, ok := e.transport.(transports.ReadyReporter); ok {
		fields := []any{"transport", e.transport.Name()}
		for k, v := range reporter.ReadyFields() {
			fields = append(fields, k, v)
		}
		slog.Info("frontdesk_ready", fields...)
	}
	return nil
}

func (e *Engine) Stop() error {
	e.cancel()
	err := e.transport.Stop()
	_ = e.transcript.Close()
	return err
}

// Drain waits for active calls to finish. The lifecycle runner bounds
// the wait with its own timeout.
func (e *Engine) Drain() error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if e.registry.Count() == 0 {
			return nil
		}
		select {
		case <-e.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// SetSpeaking is the in-process playback-state signal: the playback
// pipeline calls it when synthesized speech starts or finishes for a
// call. An unknown call is ignored since the signal may race a stop.
func (e *Engine) SetSpeaking(callSID string, speaking bool) error {
	sess, ok := e.registry.Get(callSID)
	if !ok {
		return errorsx.Wrap(fmt.Errorf("no active session for call %s", callSID), errorsx.ReasonUnknownCall)
	}
	sess.Ctl.SetPlaybackActive(speaking)
	return nil
}

func (e *Engine) Registry() *stream.Registry { return e.registry }

func (e *Engine) Transport() transports.Transport { return e.transport }

func buildResponder(ctx context.Context, cfg respond.Config) (respond.Responder, error) {
	switch cfg.Provider {
	case "gemini":
		var settings respond.GeminiSettings
		if err := configutil.DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("responder settings: %w", err)
		}
		return respond.NewGeminiResponder(ctx, settings)
	case "static", "":
		var settings struct {
			Text string `mapstructure:"text"`
		}
		if err := configutil.DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("responder settings: %w", err)
		}
		return respond.StaticResponder{Text: settings.Text}, nil
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}

func buildTransport(cfg TransportConfig, dispatcher *stream.Dispatcher, registry *stream.Registry, responder respond.Responder, transcript *respond.Transcript) (transports.Transport, error) {
	switch cfg.Provider {
	case "twilio", "":
		var settings twilio.Config
		if err := configutil.DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, fmt.Errorf("transport settings: %w", err)
		}
		return twilio.New(settings, dispatcher, registry, responder, transcript), nil
	default:
		return nil, fmt.Errorf("unknown transport provider %q", cfg.Provider)
	}
}
