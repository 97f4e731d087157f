package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/bosley/hark/audio"
)

func makeFrames(k, frameSize int, f audio.Format) []audio.Frame {
	frames := make([]audio.Frame, k)
	for i := range frames {
		samples := make([]int16, frameSize*f.Channels)
		for j := range samples {
			samples[j] = int16((i*frameSize + j) % 2000)
		}
		frames[i] = audio.NewFrame(samples, f, time.Time{})
	}
	return frames
}

func TestEncodeWAV_HeaderMatchesCapture(t *testing.T) {
	tests := []struct {
		name      string
		format    audio.Format
		k         int
		frameSize int
	}{
		{"mono 16k", audio.PCM16(16000, 1), 7, 1024},
		{"stereo 44.1k", audio.PCM16(44100, 2), 3, 512},
		{"empty", audio.PCM16(16000, 1), 0, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := audio.EncodeWAVBytes(tt.format, makeFrames(tt.k, tt.frameSize, tt.format))
			if err != nil {
				t.Fatalf("EncodeWAVBytes: %v", err)
			}

			var hdr audio.WavHeader
			if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
				t.Fatalf("read header: %v", err)
			}
			if int(hdr.NumChannels) != tt.format.Channels {
				t.Errorf("channels = %d, want %d", hdr.NumChannels, tt.format.Channels)
			}
			if int(hdr.SampleRate) != tt.format.SampleRate {
				t.Errorf("rate = %d, want %d", hdr.SampleRate, tt.format.SampleRate)
			}
			if hdr.BitsPerSample != 16 {
				t.Errorf("bits = %d, want 16", hdr.BitsPerSample)
			}
			declaredFrames := int(hdr.Subchunk2Size) / int(hdr.BlockAlign)
			if declaredFrames != tt.k*tt.frameSize {
				t.Errorf("declared frames = %d, want %d", declaredFrames, tt.k*tt.frameSize)
			}
			if len(data) != 44+int(hdr.Subchunk2Size) {
				t.Errorf("container size = %d, want %d", len(data), 44+hdr.Subchunk2Size)
			}
		})
	}
}

func TestEncodeWAV_RejectsMixedFormats(t *testing.T) {
	f := audio.PCM16(16000, 1)
	frames := makeFrames(2, 160, f)
	frames[1].Format = audio.PCM16(48000, 1)
	if _, err := audio.EncodeWAVBytes(f, frames); err == nil {
		t.Fatal("expected error for mismatched frame format")
	}
}

func TestDecodeWAV_ReadsEncodedSamples(t *testing.T) {
	f := audio.PCM16(16000, 1)
	frames := makeFrames(4, 256, f)
	data, err := audio.EncodeWAVBytes(f, frames)
	if err != nil {
		t.Fatalf("EncodeWAVBytes: %v", err)
	}

	clip, err := audio.DecodeWAVBytes(data)
	if err != nil {
		t.Fatalf("DecodeWAVBytes: %v", err)
	}
	if clip.Format != f {
		t.Errorf("format = %v, want %v", clip.Format, f)
	}
	var want []int16
	for _, fr := range frames {
		want = append(want, fr.Samples()...)
	}
	if len(clip.Samples) != len(want) {
		t.Fatalf("samples = %d, want %d", len(clip.Samples), len(want))
	}
	for i := range want {
		if clip.Samples[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, clip.Samples[i], want[i])
		}
	}
	if got, want := clip.Duration(), 64*time.Millisecond; got != want {
		t.Errorf("duration = %v, want %v", got, want)
	}
}
