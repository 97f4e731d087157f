package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/bosley/hark/audio"
	"github.com/gordonklaus/portaudio"
)

// Player writes clips to an output device one frame at a time.
type Player struct {
	selector  string
	frameSize int

	mu     sync.Mutex
	device *portaudio.DeviceInfo
}

func NewPlayer(selector string, frameSize int) *Player {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}
	return &Player{selector: selector, frameSize: frameSize}
}

func (p *Player) outputDevice() (*portaudio.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		return p.device, nil
	}
	dev, err := FindDevice(p.selector, false)
	if err != nil {
		return nil, err
	}
	p.device = dev
	return dev, nil
}

// Play blocks until the clip has been written. abort is consulted after every
// frame write; when it reports true playback stops early and Play returns
// interrupted=true.
func (p *Player) Play(ctx context.Context, clip audio.Clip, abort func() bool) (interrupted bool, err error) {
	device, err := p.outputDevice()
	if err != nil {
		return false, err
	}

	channels := clip.Format.Channels
	buffer := make([]int16, p.frameSize*channels)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(clip.Format.SampleRate),
		FramesPerBuffer: p.frameSize,
	}
	stream, err := portaudio.OpenStream(params, &buffer)
	if err != nil {
		return false, fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return false, fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(clip.Samples); {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		n := copy(buffer, clip.Samples[offset:])
		offset += n
		// Fill remaining buffer with silence if needed
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return false, fmt.Errorf("audio write: %w", err)
		}
		if abort != nil && abort() {
			return true, nil
		}
	}
	return false, nil
}

// PlayFile decodes and plays a WAV file to completion.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	clip, err := audio.LoadWAV(path)
	if err != nil {
		return err
	}
	_, err = p.Play(ctx, clip, nil)
	return err
}
