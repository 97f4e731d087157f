package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper-native", "openai"},
	"tts": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Default] and validates
// the result. Unknown keys are rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	a := cfg.Audio
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate))
	}
	if a.Channels != 1 && a.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", a.Channels))
	}
	if a.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be positive, got %d", a.FrameSize))
	}

	l := cfg.Listen
	if !l.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("listen.mode %q is invalid; valid values: batch, streaming", l.Mode))
	}
	if l.RecordingThreshold < 0 {
		errs = append(errs, fmt.Errorf("listen.recording_threshold must not be negative, got %v", l.RecordingThreshold))
	}
	if l.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("listen.silence_timeout must be positive, got %s", l.SilenceTimeout))
	}
	if l.MaxRecordingTime <= 0 {
		errs = append(errs, fmt.Errorf("listen.max_recording_time must be positive, got %s", l.MaxRecordingTime))
	}
	if l.PreRollFrames < 1 {
		errs = append(errs, fmt.Errorf("listen.pre_roll_frames must be at least 1, got %d", l.PreRollFrames))
	}
	if l.StreamHangover < 0 {
		errs = append(errs, fmt.Errorf("listen.stream_hangover must not be negative, got %s", l.StreamHangover))
	}
	if l.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("listen.poll_interval must be positive, got %s", l.PollInterval))
	}

	if cfg.Trigger.KeyPressWindow <= 0 {
		errs = append(errs, fmt.Errorf("trigger.key_press_window must be positive, got %s", cfg.Trigger.KeyPressWindow))
	}

	g := cfg.Gate
	if g.TooShortMargin < 0 {
		errs = append(errs, fmt.Errorf("gate.too_short_margin must not be negative, got %s", g.TooShortMargin))
	}
	if g.MinConfidence < 0 || g.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("gate.min_confidence must be within [0, 1], got %v", g.MinConfidence))
	}
	if g.CommandKeyword == "" {
		errs = append(errs, errors.New("gate.command_keyword must not be empty"))
	}

	if err := validateProviderName("stt", cfg.STT.Provider); err != nil {
		errs = append(errs, err)
	}
	if cfg.STT.MaxBuffer <= 0 {
		errs = append(errs, fmt.Errorf("stt.max_buffer must be positive, got %s", cfg.STT.MaxBuffer))
	}
	if err := validateProviderName("tts", cfg.TTS.Provider); err != nil {
		errs = append(errs, err)
	}
	if cfg.TTS.SegmentLength <= 0 {
		errs = append(errs, fmt.Errorf("tts.segment_length must be positive, got %d", cfg.TTS.SegmentLength))
	}
	if cfg.Chat.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("chat.max_history must not be negative, got %d", cfg.Chat.MaxHistory))
	}

	s := cfg.Server
	if s.LogLevel != "" && !s.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", s.LogLevel))
	}
	if s.LogFormat != "" && s.LogFormat != "text" && s.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", s.LogFormat))
	}
	if (s.CertFile == "") != (s.KeyFile == "") {
		errs = append(errs, errors.New("server.cert_file and server.key_file must be set together"))
	}
	if cfg.Audio.RemoteAddr != "" && s.CertFile == "" {
		errs = append(errs, errors.New("audio.remote_addr requires server.cert_file and server.key_file"))
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) error {
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return nil
	}
	return fmt.Errorf("%s.provider %q is not supported; valid values: %v", kind, name, known)
}
