// Package audio holds the PCM primitives shared by both recorders: frames,
// levels, the pre-roll ring, the WAV container and the network capture
// source. Host devices live in package device.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultFrameSize  = 1024
	sampleWidth       = 2 // int16
)

// Format describes how PCM was captured.
type Format struct {
	SampleRate  int
	Channels    int
	SampleWidth int // bytes per sample
}

// PCM16 returns a 16-bit format with the given rate and channel count.
func PCM16(sampleRate, channels int) Format {
	return Format{SampleRate: sampleRate, Channels: channels, SampleWidth: sampleWidth}
}

// BytesPerSecond is the data rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.SampleWidth
}

// Duration converts a byte count into playback time.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

// FramePeriod is the time covered by frameSize samples per channel.
func (f Format) FramePeriod(frameSize int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(frameSize) * int64(time.Second) / int64(f.SampleRate))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.SampleWidth*8)
}

// Frame is a fixed-size chunk of little-endian int16 PCM. Frames are never
// mutated after they are produced.
type Frame struct {
	Data     []byte
	Format   Format
	Captured time.Time
}

// NewFrame copies samples into a new frame.
func NewFrame(samples []int16, f Format, captured time.Time) Frame {
	return Frame{Data: Int16ToBytes(samples), Format: f, Captured: captured}
}

// Samples decodes the frame payload.
func (fr Frame) Samples() []int16 {
	return BytesToInt16(fr.Data)
}

// Duration is the playback time of the frame.
func (fr Frame) Duration() time.Duration {
	return fr.Format.Duration(len(fr.Data))
}

// Level is the RMS energy of the frame in raw int16 units.
func (fr Frame) Level() float64 {
	return RMS(fr.Samples())
}

// Int16ToBytes packs samples as little-endian PCM.
func Int16ToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

// BytesToInt16 unpacks little-endian PCM. A trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}

// ToFloat32 converts packed int16 PCM into samples normalised to [-1, 1).
func ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}

// MonoFloat32 down-mixes interleaved int16 samples to normalised mono.
func MonoFloat32(samples []int16, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		for i, s := range samples {
			out[i] = float32(s) / 32768.0
		}
		return out
	}
	n := len(samples) / channels
	out := make([]float32, n)
	for i := range n {
		var sum float32
		for ch := range channels {
			sum += float32(samples[i*channels+ch]) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// FromFloat32 converts normalised samples back to int16, clamping overshoot.
func FromFloat32(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// ErrStreamClosed is returned by ReadFrame after Close.
var ErrStreamClosed = errors.New("audio stream closed")

// Source produces fixed-size PCM frames. ReadFrame blocks for roughly one
// frame period; any error it returns is terminal for the stream.
type Source interface {
	ReadFrame() (Frame, error)
	Close() error
}
