package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/bosley/hark/audio"
	"github.com/bosley/hark/chat"
	"github.com/bosley/hark/command"
	"github.com/bosley/hark/config"
	"github.com/bosley/hark/device"
	"github.com/bosley/hark/dispatch"
	"github.com/bosley/hark/gate"
	"github.com/bosley/hark/observe"
	"github.com/bosley/hark/recorder"
	"github.com/bosley/hark/scribe"
	"github.com/bosley/hark/scribe/whisper"
	"github.com/bosley/hark/server"
	"github.com/bosley/hark/session"
	"github.com/bosley/hark/speech"
	"github.com/bosley/hark/stream"
	"github.com/bosley/hark/trigger"
)

var version = "dev"

var _ stream.Adapter = (*scribe.Online)(nil)

func main() {
	configPath := flag.String("config", "hark.yaml", "Path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "List available audio input devices")
	playFile := flag.String("play", "", "Play audio file")
	mode := flag.String("mode", "", "Override listen mode (batch|streaming)")
	flag.Parse()

	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	if *listDevices {
		if err := printDevices(); err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}
		return
	}

	if *playFile != "" {
		if err := play(*playFile); err != nil {
			slog.Error("Failed to play audio file", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, watch, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Listen.Mode = config.Mode(*mode)
		if err := config.Validate(cfg); err != nil {
			slog.Error("Invalid mode", "error", err)
			os.Exit(1)
		}
	}

	level.Set(cfg.Server.LogLevel.Level())
	if cfg.Server.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, watch, level); err != nil {
		slog.Error("Hark stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Debug("Program exiting")
}

// loadConfig reads path, falling back to defaults when it does not exist.
// The returned bool reports whether the file should be watched.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Configuration file not found, using defaults", "path", path)
		return config.Default(), false, nil
	}
	cfg, err := config.Load(path)
	return cfg, err == nil, err
}

func run(ctx context.Context, cfg *config.Config, configPath string, watch bool, level *slog.LevelVar) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	live := config.NewLive(cfg)
	live.OnChange(func(prev, next *config.Config) {
		if prev.Server.LogLevel != next.Server.LogLevel {
			level.Set(next.Server.LogLevel.Level())
		}
	})

	provider, err := observe.InitProvider("hark", version)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down metrics", "error", err)
		}
	}()
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	if err := device.Initialize(); err != nil {
		return err
	}
	defer device.Terminate()

	state := session.New()
	arbiter := trigger.NewArbiter(state, live, metrics)
	srv := server.New(live, state, arbiter, provider.Handler())

	client := openai.NewClient(os.Getenv("OPENAI_API_KEY"))
	player := device.NewPlayer(cfg.Audio.OutputDevice, cfg.Audio.FrameSize)
	speaker := speech.NewSpeaker(speech.NewOpenAI(client, cfg.TTS.Model, cfg.TTS.Voice), player, state, live, metrics)
	cues, err := speech.LoadCues(cfg.Audio.CuesDir, player, live)
	if err != nil {
		return fmt.Errorf("failed to load sound cues: %w", err)
	}
	defer cues.Wait()

	history := chat.NewHistory(cfg.Chat.MaxHistory)
	dispatcher := dispatch.New(16)
	bot := chat.New(client, history, dispatcher, speaker, state, live, metrics)
	provider.GaugeFunc("dispatch_pending", "Messages waiting for the chat back end.", func() float64 {
		return float64(dispatcher.Pending())
	})
	provider.GaugeFunc("subscribers", "Connected websocket subscribers.", func() float64 {
		return float64(srv.Subscribers())
	})

	fb := &feedback{board: srv, cues: cues, speaker: speaker}
	registry := command.NewRegistry(fb)
	command.RegisterBuiltins(registry, command.Deps{
		Live:     live,
		Level:    level,
		History:  history,
		Shutdown: cancel,
	})
	classifier := gate.New(live, dispatcher, registry, fb, metrics)

	rec, closeRec, err := newRecognizer(cfg, client)
	if err != nil {
		return err
	}
	defer closeRec()
	engine := scribe.NewEngine(rec, metrics)

	hotkey, err := trigger.ParseHotkey(cfg.Trigger.Hotkey)
	if err != nil {
		return err
	}
	keys := trigger.NewKeyListener(arbiter, hotkey, cancel)

	var watcher *config.Watcher
	if watch {
		if watcher, err = config.NewWatcher(configPath, live); err != nil {
			return err
		}
	}

	format := audio.PCM16(cfg.Audio.SampleRate, cfg.Audio.Channels)
	src, err := openSource(cfg, format)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error {
		if err := keys.Run(gctx); err != nil {
			slog.Warn("Hotkey listener unavailable", "error", err)
		}
		return nil
	})
	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error { return srv.Run(gctx) })
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	switch cfg.Listen.Mode {
	case config.ModeStreaming:
		queue := stream.NewQueue()
		producer := stream.NewProducer(queue, live)
		online := scribe.NewOnline(engine, cfg.Audio.SampleRate, cfg.STT.MaxBuffer)
		segmenter := stream.NewSegmenter(queue, online, state, live, classifier)
		g.Go(func() error { return producer.Run(gctx, src) })
		g.Go(func() error { return segmenter.Run(gctx) })
	default:
		sc := scribe.New(engine, classifier, fb, 4)
		r := recorder.New(recorder.Config{
			State:     state,
			Live:      live,
			Arbiter:   arbiter,
			Sink:      sc,
			Feedback:  fb,
			Failures:  classifier,
			Metrics:   metrics,
			Format:    format,
			FrameSize: cfg.Audio.FrameSize,
		})
		g.Go(func() error { return sc.Run(gctx) })
		g.Go(func() error { return r.Run(gctx, src) })
	}

	slog.Info("Hark started",
		"version", version,
		"mode", cfg.Listen.Mode,
		"stt", cfg.STT.Provider,
		"audioTrigger", cfg.Listen.AudioTrigger)

	return g.Wait()
}

func newRecognizer(cfg *config.Config, client *openai.Client) (scribe.Recognizer, func(), error) {
	switch cfg.STT.Provider {
	case "whisper-native":
		r, err := whisper.New(cfg.STT.Model, cfg.STT.Language, cfg.STT.Prompt)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {
			if err := r.Close(); err != nil {
				slog.Warn("Failed to close whisper model", "error", err)
			}
		}, nil
	default:
		return scribe.NewOpenAI(client, cfg.STT.Model, cfg.STT.Language, cfg.STT.Prompt), func() {}, nil
	}
}

// openSource returns the remote capture listener when one is configured and
// the local input device otherwise.
func openSource(cfg *config.Config, format audio.Format) (audio.Source, error) {
	if cfg.Audio.RemoteAddr != "" {
		token := os.Getenv("HARK_REMOTE_TOKEN")
		if token == "" {
			token = cfg.Audio.RemoteToken
		}
		if token == "" {
			return nil, errors.New("remote capture requires HARK_REMOTE_TOKEN or audio.remote_token")
		}
		rs, err := audio.ListenRemote(cfg.Audio.RemoteAddr, cfg.Server.CertFile, cfg.Server.KeyFile, token, format, cfg.Audio.FrameSize)
		if err != nil {
			return nil, err
		}
		slog.Info("Waiting for remote capture client", "addr", rs.Addr())
		return rs, nil
	}

	s, err := device.Open(cfg.Audio.InputDevice, format, cfg.Audio.FrameSize)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func printDevices() error {
	if err := device.Initialize(); err != nil {
		return err
	}
	defer device.Terminate()

	devices, err := device.ListDevices()
	if err != nil {
		return err
	}

	fmt.Println("Available audio input devices:")
	for i, d := range devices {
		fmt.Printf("[%d] %s\n", i, d.Name)
		fmt.Printf("    Max Input Channels: %d\n", d.MaxInputChannels)
		fmt.Printf("    Default Sample Rate: %f\n", d.DefaultSampleRate)
		fmt.Println()
	}
	return nil
}

func play(path string) error {
	if err := device.Initialize(); err != nil {
		return err
	}
	defer device.Terminate()

	cfg := config.Default()
	return device.NewPlayer(cfg.Audio.OutputDevice, cfg.Audio.FrameSize).PlayFile(context.Background(), path)
}
