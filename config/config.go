// Package config provides the configuration schema, loader and hot-reload
// machinery for hark.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the slog level it names. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Mode selects the capture strategy.
type Mode string

const (
	// ModeBatch records whole utterances and transcribes them in one call.
	ModeBatch Mode = "batch"

	// ModeStreaming feeds audio to an incremental recognizer and cuts
	// phrases on inter-chunk gaps.
	ModeStreaming Mode = "streaming"
)

// IsValid reports whether m is a recognised capture mode.
func (m Mode) IsValid() bool {
	return m == ModeBatch || m == ModeStreaming
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Listen  ListenConfig  `yaml:"listen"`
	Trigger TriggerConfig `yaml:"trigger"`
	Gate    GateConfig    `yaml:"gate"`
	STT     STTConfig     `yaml:"stt"`
	TTS     TTSConfig     `yaml:"tts"`
	Chat    ChatConfig    `yaml:"chat"`
	Server  ServerConfig  `yaml:"server"`
}

// AudioConfig selects the capture and playback devices.
type AudioConfig struct {
	// InputDevice is an index, a name prefix, or empty for the default device.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`

	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	FrameSize  int `yaml:"frame_size"`

	// RemoteAddr, when set, replaces the local input device with a TLS
	// listener that accepts audio from a remote capture client.
	RemoteAddr  string `yaml:"remote_addr"`
	RemoteToken string `yaml:"remote_token"`

	// CuesDir holds speech_on.wav, speech_off.wav and speech_mis.wav.
	CuesDir string `yaml:"cues_dir"`
}

// ListenConfig holds the voice-activity parameters. All of them are read
// on every capture tick, so a reload takes effect immediately.
type ListenConfig struct {
	Mode               Mode          `yaml:"mode"`
	AudioTrigger       bool          `yaml:"audio_trigger"`
	RecordingThreshold float64       `yaml:"recording_threshold"`
	SilenceTimeout     time.Duration `yaml:"silence_timeout"`
	MaxRecordingTime   time.Duration `yaml:"max_recording_time"`
	PreRollFrames      int           `yaml:"pre_roll_frames"`

	// StreamHangover keeps the streaming producer transmitting for a while
	// after the level drops below threshold.
	StreamHangover time.Duration `yaml:"stream_hangover"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SoundFeedback  bool          `yaml:"sound_feedback"`
}

// TriggerConfig configures the hotkey and external trigger sources.
type TriggerConfig struct {
	// Hotkey names the key whose double press starts a recording or
	// interrupts speech, e.g. "space", "f9" or a single character.
	Hotkey         string        `yaml:"hotkey"`
	KeyPressWindow time.Duration `yaml:"key_press_window"`

	// Parameters lists transport parameter names that raise the external
	// trigger when set to a truthy value.
	Parameters []string `yaml:"parameters"`
}

// GateConfig configures transcription post-processing.
type GateConfig struct {
	TooShortMargin time.Duration `yaml:"too_short_margin"`
	MinConfidence  float64       `yaml:"min_confidence"`
	CommandKeyword string        `yaml:"command_keyword"`

	// Apology is spoken after an unintelligible utterance. Empty disables it.
	Apology string `yaml:"apology"`
}

// STTConfig selects the recognizer.
type STTConfig struct {
	// Provider is "whisper-native" or "openai".
	Provider string `yaml:"provider"`

	// Model is a ggml model path for whisper-native or a model name for openai.
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Prompt   string `yaml:"prompt"`

	// MaxBuffer bounds the audio the streaming adapter re-transcribes.
	MaxBuffer time.Duration `yaml:"max_buffer"`
}

// TTSConfig selects the synthesizer.
type TTSConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	Voice         string `yaml:"voice"`
	SegmentLength int    `yaml:"segment_length"`
}

// ChatConfig configures the conversation back end.
type ChatConfig struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxHistory   int    `yaml:"max_history"`

	// ParrotMode speaks the recognised text back instead of asking the model.
	ParrotMode bool `yaml:"parrot_mode"`
}

// ServerConfig holds the transport and logging settings.
type ServerConfig struct {
	// HTTPAddr is the address of the status/trigger API. Empty disables it.
	HTTPAddr  string   `yaml:"http_addr"`
	CertFile  string   `yaml:"cert_file"`
	KeyFile   string   `yaml:"key_file"`
	LogLevel  LogLevel `yaml:"log_level"`
	LogFormat string   `yaml:"log_format"`
}

// Default returns the configuration used for every field the file omits.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			FrameSize:  1024,
			CuesDir:    "sounds",
		},
		Listen: ListenConfig{
			Mode:               ModeBatch,
			AudioTrigger:       true,
			RecordingThreshold: 1024,
			SilenceTimeout:     1500 * time.Millisecond,
			MaxRecordingTime:   30 * time.Second,
			PreRollFrames:      5,
			StreamHangover:     300 * time.Millisecond,
			PollInterval:       25 * time.Millisecond,
			SoundFeedback:      true,
		},
		Trigger: TriggerConfig{
			Hotkey:         "space",
			KeyPressWindow: 400 * time.Millisecond,
			Parameters:     []string{"ListenTrigger"},
		},
		Gate: GateConfig{
			TooShortMargin: 300 * time.Millisecond,
			MinConfidence:  0.6,
			CommandKeyword: "system",
		},
		STT: STTConfig{
			Provider:  "openai",
			Model:     "whisper-1",
			MaxBuffer: 15 * time.Second,
		},
		TTS: TTSConfig{
			Provider:      "openai",
			Model:         "tts-1",
			Voice:         "alloy",
			SegmentLength: 142,
		},
		Chat: ChatConfig{
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a helpful voice assistant. Keep answers short.",
			MaxHistory:   20,
		},
		Server: ServerConfig{
			LogLevel:  LogInfo,
			LogFormat: "text",
		},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Trigger.Parameters = append([]string(nil), c.Trigger.Parameters...)
	return &out
}
