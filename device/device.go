// Package device binds the capture and playback contracts to host audio
// hardware through PortAudio.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bosley/hark/audio"
	"github.com/gordonklaus/portaudio"
)

// ErrDeviceNotFound is fatal at startup: capture cannot proceed.
var ErrDeviceNotFound = errors.New("audio device not found")

var _ audio.Source = (*Stream)(nil)

// Initialize must be called once before opening device streams.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate releases PortAudio.
func Terminate() {
	if err := portaudio.Terminate(); err != nil {
		slog.Error("Failed to terminate PortAudio", "error", err)
	}
}

// ListDevices returns every input-capable device.
func ListDevices() ([]portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	inputDevices := make([]portaudio.DeviceInfo, 0)
	for _, device := range devices {
		if device.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, *device)
		}
	}
	return inputDevices, nil
}

// FindDevice resolves a selector against the host's devices. An empty
// selector picks the default device, a number is a device index and anything
// else matches the first device whose name starts with it.
func FindDevice(selector string, input bool) (*portaudio.DeviceInfo, error) {
	if selector == "" {
		var (
			dev *portaudio.DeviceInfo
			err error
		)
		if input {
			dev, err = portaudio.DefaultInputDevice()
		} else {
			dev, err = portaudio.DefaultOutputDevice()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: default: %v", ErrDeviceNotFound, err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	usable := func(d *portaudio.DeviceInfo) bool {
		if input {
			return d.MaxInputChannels > 0
		}
		return d.MaxOutputChannels > 0
	}

	if id, err := strconv.Atoi(selector); err == nil {
		if id < 0 || id >= len(devices) || !usable(devices[id]) {
			return nil, fmt.Errorf("%w: index %d", ErrDeviceNotFound, id)
		}
		return devices[id], nil
	}
	for _, d := range devices {
		if usable(d) && strings.HasPrefix(d.Name, selector) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, selector)
}

// inputStream is the part of *portaudio.Stream a Stream drives.
type inputStream interface {
	Read() error
	Stop() error
	Close() error
}

// Stream is a blocking portaudio input stream.
type Stream struct {
	stream inputStream
	buffer []int16
	format audio.Format

	closed atomic.Bool
}

// Open starts capturing from the selected input device.
func Open(selector string, f audio.Format, frameSize int) (*Stream, error) {
	device, err := FindDevice(selector, true)
	if err != nil {
		return nil, err
	}

	slog.Info("Using audio input device",
		"deviceName", device.Name,
		"sampleRate", f.SampleRate,
		"inputChannels", f.Channels,
		"frameSize", frameSize)

	s := &Stream{
		buffer: make([]int16, frameSize*f.Channels),
		format: f,
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: f.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(f.SampleRate),
		FramesPerBuffer: frameSize,
	}
	stream, err := portaudio.OpenStream(params, &s.buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// ReadFrame blocks until the next frame is captured. Input overflow only
// means frames were dropped by the host, so it is logged and not returned.
func (s *Stream) ReadFrame() (audio.Frame, error) {
	if s.closed.Load() {
		return audio.Frame{}, audio.ErrStreamClosed
	}

	if err := s.stream.Read(); err != nil {
		// Close stops the stream under a pending Read.
		if s.closed.Load() {
			return audio.Frame{}, audio.ErrStreamClosed
		}
		if !errors.Is(err, portaudio.InputOverflowed) {
			return audio.Frame{}, fmt.Errorf("audio read: %w", err)
		}
		slog.Debug("Audio input overflowed")
	}
	return audio.NewFrame(s.buffer, s.format, time.Now()), nil
}

// Close stops the stream. Safe to call more than once.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		slog.Error("Failed to stop audio stream", "error", err)
	}
	return s.stream.Close()
}
