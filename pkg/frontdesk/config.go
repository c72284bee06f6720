package frontdesk

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/voxhall/frontdesk/pkg/respond"
	"github.com/voxhall/frontdesk/pkg/vad"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Transport     TransportConfig     `mapstructure:"transport"`
	Audio         AudioConfig         `mapstructure:"audio"`
	VAD           vad.Config          `mapstructure:"vad"`
	Sessions      SessionsConfig      `mapstructure:"sessions"`
	Responder     respond.Config      `mapstructure:"responder"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type AudioConfig struct {
	// RingCapacity is how many recent decoded frames a session retains
	// (100 frames is ~2s at 20ms/frame).
	RingCapacity int `mapstructure:"ring_capacity"`
}

type SessionsConfig struct {
	ReapIntervalMS int `mapstructure:"reap_interval_ms"`
	IdleTTLMS      int `mapstructure:"idle_ttl_ms"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("transport.provider", "twilio")
	v.SetDefault("audio.ring_capacity", 100)
	v.SetDefault("vad.rms_threshold", 500)
	v.SetDefault("vad.speech_frames", 10)
	v.SetDefault("vad.silence_reset", 5)
	v.SetDefault("sessions.reap_interval_ms", 30000)
	v.SetDefault("sessions.idle_ttl_ms", 120000)
	v.SetDefault("responder.provider", "static")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
